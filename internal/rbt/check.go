package rbt

import (
	"bytes"
	"fmt"
)

// Check walks the whole arena and reports the first broken invariant: free
// list shape, parent/child symmetry, key order, red-black coloring, equal
// black height, and agreement between the sorted thread and the in-order
// traversal. It is O(n) and meant for tests and debugging.
func (a *Arena) Check() error {
	seen := make([]bool, len(a.slots))

	free := 0
	prev := None
	for h := a.firstFree; h != None; h = a.slots[h].free.next {
		if !a.valid(h) {
			return fmt.Errorf("free list: slot %d out of range", h)
		}
		if seen[h] {
			return fmt.Errorf("free list: cycle at slot %d", h)
		}
		seen[h] = true
		if a.slots[h].bound {
			return fmt.Errorf("free list: slot %d is bound", h)
		}
		if a.slots[h].free.prev != prev {
			return fmt.Errorf("free list: slot %d has prev %d, want %d", h, a.slots[h].free.prev, prev)
		}
		prev = h
		free++
	}

	if a.root == None {
		if a.least != None || a.greatest != None {
			return fmt.Errorf("empty tree with least %d greatest %d", a.least, a.greatest)
		}
	} else {
		if a.slots[a.root].tree.parent != None {
			return fmt.Errorf("root %d has parent %d", a.root, a.slots[a.root].tree.parent)
		}
		if !a.slots[a.root].tree.black {
			return fmt.Errorf("root %d is red", a.root)
		}
	}

	var order []int
	if _, err := a.checkSubtree(a.root, None, seen, &order); err != nil {
		return err
	}

	for i := 1; i < len(order); i++ {
		if bytes.Compare(a.key(order[i-1]), a.key(order[i])) >= 0 {
			return fmt.Errorf("keys of slots %d and %d are out of order", order[i-1], order[i])
		}
	}

	h := a.least
	prev = None
	for i, want := range order {
		if h != want {
			return fmt.Errorf("sorted thread: position %d is slot %d, in-order has %d", i, h, want)
		}
		if a.slots[h].tree.prev != prev {
			return fmt.Errorf("sorted thread: slot %d has prev %d, want %d", h, a.slots[h].tree.prev, prev)
		}
		prev = h
		h = a.slots[h].tree.next
	}
	if h != None {
		return fmt.Errorf("sorted thread continues past in-order end at slot %d", h)
	}
	if prev != a.greatest {
		return fmt.Errorf("greatest is %d, in-order ends at %d", a.greatest, prev)
	}

	if len(order) != a.bound {
		return fmt.Errorf("bound count is %d, tree holds %d", a.bound, len(order))
	}
	if free+len(order) != len(a.slots) {
		return fmt.Errorf("%d free + %d bound slots, capacity %d", free, len(order), len(a.slots))
	}
	return nil
}

// checkSubtree returns the black height of the subtree at h (nil leaves
// count as one) and appends its in-order slots to order.
func (a *Arena) checkSubtree(h, parent int, seen []bool, order *[]int) (int, error) {
	if h == None {
		return 1, nil
	}
	if !a.valid(h) {
		return 0, fmt.Errorf("tree: slot %d out of range", h)
	}
	if seen[h] {
		return 0, fmt.Errorf("tree: slot %d reached twice", h)
	}
	seen[h] = true

	t := a.slots[h].tree
	if !a.slots[h].bound {
		return 0, fmt.Errorf("tree: slot %d is not bound", h)
	}
	if t.parent != parent {
		return 0, fmt.Errorf("tree: slot %d has parent %d, want %d", h, t.parent, parent)
	}
	if !t.black {
		for _, c := range t.child {
			if c != None && a.valid(c) && !a.slots[c].tree.black {
				return 0, fmt.Errorf("tree: red slot %d has red child %d", h, c)
			}
		}
	}

	left, err := a.checkSubtree(t.child[lesser], h, seen, order)
	if err != nil {
		return 0, err
	}
	*order = append(*order, h)
	right, err := a.checkSubtree(t.child[greater], h, seen, order)
	if err != nil {
		return 0, err
	}
	if left != right {
		return 0, fmt.Errorf("tree: slot %d has black heights %d and %d", h, left, right)
	}
	if t.black {
		left++
	}
	return left, nil
}
