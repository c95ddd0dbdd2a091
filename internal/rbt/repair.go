package rbt

// Rebalancing works on slot ids only; no key is compared here.

func (a *Arena) isBlack(h int) bool {
	return h == None || a.slots[h].tree.black
}

// side returns which child of its parent h is. h must not be the root.
func (a *Arena) side(h int) int {
	if a.slots[a.slots[h].tree.parent].tree.child[lesser] == h {
		return lesser
	}
	return greater
}

// rotate lifts node.child[dir] into node's position.
func (a *Arena) rotate(node, dir int) {
	parent := a.slots[node].tree.parent
	sub := a.slots[node].tree.child[dir]
	inner := a.slots[sub].tree.child[1-dir]

	a.slots[node].tree.child[dir] = inner
	if inner != None {
		a.slots[inner].tree.parent = node
	}

	if parent == None {
		a.root = sub
	} else if a.slots[parent].tree.child[lesser] == node {
		a.slots[parent].tree.child[lesser] = sub
	} else {
		a.slots[parent].tree.child[greater] = sub
	}
	a.slots[sub].tree.parent = parent

	a.slots[sub].tree.child[1-dir] = node
	a.slots[node].tree.parent = sub
}

// insertRepair restores the red-black properties after node was linked in as
// a red leaf. Every other red node has a black parent and all black heights
// match when it is called.
func (a *Arena) insertRepair(node int) {
	for {
		parent := a.slots[node].tree.parent
		if parent == None {
			a.slots[node].tree.black = true
			return
		}
		if a.slots[parent].tree.black {
			return
		}
		gparent := a.slots[parent].tree.parent
		if gparent == None {
			a.slots[parent].tree.black = true
			return
		}

		pdir := a.side(parent)
		uncle := a.slots[gparent].tree.child[1-pdir]
		if !a.isBlack(uncle) {
			a.slots[parent].tree.black = true
			a.slots[uncle].tree.black = true
			a.slots[gparent].tree.black = false
			node = gparent
			continue
		}

		if a.side(node) != pdir {
			a.rotate(parent, 1-pdir)
			parent = node
		}
		a.rotate(gparent, pdir)
		a.slots[parent].tree.black = true
		a.slots[gparent].tree.black = false
		return
	}
}

// deleteRepair is called on a black leaf that is about to be detached; its
// side of the tree is one black node short once it goes.
func (a *Arena) deleteRepair(node int) {
	for node != a.root && a.slots[node].tree.black {
		parent := a.slots[node].tree.parent
		dir := a.side(node)
		far := 1 - dir
		sibling := a.slots[parent].tree.child[far]

		if !a.isBlack(sibling) {
			a.slots[sibling].tree.black = true
			a.slots[parent].tree.black = false
			a.rotate(parent, far)
			sibling = a.slots[parent].tree.child[far]
		}

		st := a.slots[sibling].tree
		if a.isBlack(st.child[lesser]) && a.isBlack(st.child[greater]) {
			a.slots[sibling].tree.black = false
			node = parent
			continue
		}

		if a.isBlack(st.child[far]) {
			a.slots[st.child[dir]].tree.black = true
			a.slots[sibling].tree.black = false
			a.rotate(sibling, dir)
			sibling = a.slots[parent].tree.child[far]
		}

		a.slots[sibling].tree.black = a.slots[parent].tree.black
		a.slots[parent].tree.black = true
		a.slots[a.slots[sibling].tree.child[far]].tree.black = true
		a.rotate(parent, far)
		return
	}
	a.slots[node].tree.black = true
}

// swapPositions exchanges the tree positions (parent, children, color) of two
// bound slots. Their sorted-thread links stay with the slots.
func (a *Arena) swapPositions(x, y int) {
	relabel := func(h int) int {
		switch h {
		case x:
			return y
		case y:
			return x
		}
		return h
	}
	moved := func(from treeLinks, keep treeLinks) treeLinks {
		return treeLinks{
			parent: relabel(from.parent),
			child:  [2]int{relabel(from.child[lesser]), relabel(from.child[greater])},
			black:  from.black,
			prev:   keep.prev,
			next:   keep.next,
		}
	}

	tx, ty := a.slots[x].tree, a.slots[y].tree
	a.slots[x].tree = moved(ty, tx)
	a.slots[y].tree = moved(tx, ty)

	for _, pair := range [2][2]int{{x, y}, {y, x}} {
		h, old := pair[0], pair[1]
		t := a.slots[h].tree
		switch {
		case t.parent == None:
			a.root = h
		case t.parent != x && t.parent != y:
			pt := &a.slots[t.parent].tree
			if pt.child[lesser] == old {
				pt.child[lesser] = h
			} else {
				pt.child[greater] = h
			}
		}
		for _, c := range t.child {
			if c != None && c != x && c != y {
				a.slots[c].tree.parent = h
			}
		}
	}
}
