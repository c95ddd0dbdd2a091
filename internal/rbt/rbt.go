/*******************************************************************************
*  internal/rbt/rbt.go
*
*  Fixed-capacity red-black tree whose nodes live in a single slot array and
*  are addressed by integer ids ("hashes"). Keys are never stored here: the
*  tree compares against an externally owned array of fixed-stride key cells,
*  so the same arena can index any payload layout.
*
*  Every slot is either free (linked in the free list) or bound (linked in the
*  tree and in a sorted doubly-linked thread that always mirrors the in-order
*  traversal of the tree).
*******************************************************************************/

package rbt

/*******************************************************************************
*  IMPORTS
*******************************************************************************/

import (
	"bytes"
	"errors"
	"fmt"
)

/*******************************************************************************
*  TYPES
*******************************************************************************/

// None is the "no slot" sentinel used for every missing link.
const None = -1

var (
	ErrFull       = errors.New("rbt: no free slot")
	ErrNotFound   = errors.New("rbt: key not bound")
	ErrNotFree    = errors.New("rbt: slot is not free")
	ErrNotBound   = errors.New("rbt: slot is not bound")
	ErrKeySize    = errors.New("rbt: key has wrong size")
	ErrNoNeighbor = errors.New("rbt: no such neighbor")
)

const (
	lesser  = 0
	greater = 1
)

// freeLinks is the payload of a free slot.
type freeLinks struct {
	prev int
	next int
}

// treeLinks is the payload of a bound slot. prev/next form the sorted thread.
type treeLinks struct {
	parent int
	child  [2]int
	black  bool
	prev   int
	next   int
}

// slot is a tagged variant: free is meaningful only when !bound, tree only
// when bound.
type slot struct {
	bound bool
	free  freeLinks
	tree  treeLinks
}

// Arena is an array-backed red-black tree over externally stored keys.
// It is not safe for concurrent use.
type Arena struct {
	cells    []byte
	keySize  int
	cellSize int

	slots     []slot
	firstFree int
	root      int
	least     int
	greatest  int
	bound     int
}

/*******************************************************************************
*  FUNCTIONS
*******************************************************************************/

// New creates an arena of capacity slots. The key bound to slot h is
// cells[h*cellSize : h*cellSize+keySize]; cells must cover every slot.
func New(cells []byte, keySize, cellSize, capacity int) (*Arena, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("rbt: negative capacity %d", capacity)
	}
	if keySize <= 0 || keySize > cellSize {
		return nil, fmt.Errorf("rbt: key size %d does not fit cell size %d", keySize, cellSize)
	}
	if len(cells) < capacity*cellSize {
		return nil, fmt.Errorf("rbt: key array holds %d bytes, need %d", len(cells), capacity*cellSize)
	}

	a := &Arena{
		cells:     cells,
		keySize:   keySize,
		cellSize:  cellSize,
		slots:     make([]slot, capacity),
		firstFree: None,
		root:      None,
		least:     None,
		greatest:  None,
	}
	for i := range a.slots {
		a.slots[i].free = freeLinks{prev: i - 1, next: i + 1}
	}
	if capacity > 0 {
		a.slots[0].free.prev = None
		a.slots[capacity-1].free.next = None
		a.firstFree = 0
	}
	return a, nil
}

// Cap returns the number of slots.
func (a *Arena) Cap() int { return len(a.slots) }

// Len returns the number of bound slots.
func (a *Arena) Len() int { return a.bound }

// KeySize returns the number of compared bytes per key.
func (a *Arena) KeySize() int { return a.keySize }

func (a *Arena) valid(h int) bool { return h >= 0 && h < len(a.slots) }

// IsFree reports whether h is a slot id currently in the free list.
func (a *Arena) IsFree(h int) bool { return a.valid(h) && !a.slots[h].bound }

// IsBound reports whether h is a slot id currently bound in the tree.
func (a *Arena) IsBound(h int) bool { return a.valid(h) && a.slots[h].bound }

// GetFree returns the head of the free list without removing it.
func (a *Arena) GetFree() (int, error) {
	if a.firstFree == None {
		return None, ErrFull
	}
	return a.firstFree, nil
}

func (a *Arena) key(h int) []byte {
	off := h * a.cellSize
	return a.cells[off : off+a.keySize]
}

// find descends from the root. It returns the matching slot and 0, or the
// last visited slot (None on an empty tree) and the sign of the final
// comparison.
func (a *Arena) find(key []byte) (int, int) {
	node, last, c := a.root, None, -1
	for node != None {
		c = bytes.Compare(key, a.key(node))
		last = node
		if c == 0 {
			return node, 0
		}
		if c < 0 {
			node = a.slots[node].tree.child[lesser]
		} else {
			node = a.slots[node].tree.child[greater]
		}
	}
	return last, c
}

// Lookup returns the slot bound to key.
func (a *Arena) Lookup(key []byte) (int, error) {
	if len(key) != a.keySize {
		return None, ErrKeySize
	}
	h, c := a.find(key)
	if h == None || c != 0 {
		return None, ErrNotFound
	}
	return h, nil
}

// Bind inserts key at the free slot candidate and returns candidate. If key is
// already bound its existing slot is returned and candidate is left alone.
// The caller must have written key into candidate's cell beforehand, since
// later comparisons read the cell, not key.
func (a *Arena) Bind(key []byte, candidate int) (int, error) {
	if len(key) != a.keySize {
		return None, ErrKeySize
	}
	parent, c := a.find(key)
	if parent != None && c == 0 {
		return parent, nil
	}
	if !a.IsFree(candidate) {
		return None, ErrNotFree
	}

	a.unlinkFree(candidate)
	s := &a.slots[candidate]
	s.bound = true
	s.tree = treeLinks{parent: parent, child: [2]int{None, None}, prev: None, next: None}

	switch {
	case parent == None:
		a.root = candidate
		a.least = candidate
		a.greatest = candidate
	case c > 0:
		// New greater leaf: in-order successor of parent.
		next := a.slots[parent].tree.next
		s.tree.prev = parent
		s.tree.next = next
		if next != None {
			a.slots[next].tree.prev = candidate
		} else {
			a.greatest = candidate
		}
		a.slots[parent].tree.next = candidate
		a.slots[parent].tree.child[greater] = candidate
	default:
		prev := a.slots[parent].tree.prev
		s.tree.next = parent
		s.tree.prev = prev
		if prev != None {
			a.slots[prev].tree.next = candidate
		} else {
			a.least = candidate
		}
		a.slots[parent].tree.prev = candidate
		a.slots[parent].tree.child[lesser] = candidate
	}

	a.bound++
	a.insertRepair(candidate)
	return candidate, nil
}

// Unbind removes h from the tree and pushes it on the free list.
func (a *Arena) Unbind(h int) error {
	if !a.IsBound(h) {
		return ErrNotBound
	}

	prev, next := a.slots[h].tree.prev, a.slots[h].tree.next
	if next == None {
		a.greatest = prev
	} else {
		a.slots[next].tree.prev = prev
	}
	if prev == None {
		a.least = next
	} else {
		a.slots[prev].tree.next = next
	}

	// With a lesser subtree the thread predecessor is the in-order
	// predecessor: it has no greater child, so after trading places h has at
	// most one child.
	if a.slots[h].tree.child[lesser] != None {
		a.swapPositions(h, prev)
	}

	t := a.slots[h].tree
	child := t.child[lesser]
	if child == None {
		child = t.child[greater]
	}
	if child != None {
		// A single child under a node with one nil side is always red.
		a.slots[child].tree.black = true
		a.slots[child].tree.parent = t.parent
	} else if t.black {
		a.deleteRepair(h)
	}

	parent := a.slots[h].tree.parent
	if parent == None {
		a.root = child
	} else {
		pt := &a.slots[parent].tree
		if pt.child[lesser] == h {
			pt.child[lesser] = child
		} else {
			pt.child[greater] = child
		}
	}

	a.bound--
	a.pushFree(h)
	return nil
}

// Least returns the slot bound to the smallest key.
func (a *Arena) Least() (int, error) {
	if a.least == None {
		return None, ErrNoNeighbor
	}
	return a.least, nil
}

// Greatest returns the slot bound to the largest key.
func (a *Arena) Greatest() (int, error) {
	if a.greatest == None {
		return None, ErrNoNeighbor
	}
	return a.greatest, nil
}

// Next returns the in-order successor of the bound slot h.
func (a *Arena) Next(h int) (int, error) {
	if !a.IsBound(h) {
		return None, ErrNotBound
	}
	if n := a.slots[h].tree.next; n != None {
		return n, nil
	}
	return None, ErrNoNeighbor
}

// Previous returns the in-order predecessor of the bound slot h.
func (a *Arena) Previous(h int) (int, error) {
	if !a.IsBound(h) {
		return None, ErrNotBound
	}
	if p := a.slots[h].tree.prev; p != None {
		return p, nil
	}
	return None, ErrNoNeighbor
}

func (a *Arena) unlinkFree(h int) {
	f := a.slots[h].free
	if f.prev == None {
		a.firstFree = f.next
	} else {
		a.slots[f.prev].free.next = f.next
	}
	if f.next != None {
		a.slots[f.next].free.prev = f.prev
	}
	a.slots[h].free = freeLinks{prev: None, next: None}
}

func (a *Arena) pushFree(h int) {
	a.slots[h] = slot{free: freeLinks{prev: None, next: a.firstFree}}
	if a.firstFree != None {
		a.slots[a.firstFree].free.prev = h
	}
	a.firstFree = h
}
