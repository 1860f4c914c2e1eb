// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

type (
	treeColor bool
)

const (
	red, black treeColor = false, true
)

type rbnode struct {
	parent, left, right *rbnode
	key                 uint64
	val                 *Frame
	color               treeColor
}

// RBTree is a red-black tree of frames ordered by logical sequence.
type RBTree struct {
	root   *rbnode
	length int
}

// NewTree creates a new red-black tree.
func NewTree() *RBTree {
	return &RBTree{}
}

// Insert adds a frame keyed by its sequence. It returns false and leaves the
// tree untouched when a frame with the same sequence is already present.
func (t *RBTree) Insert(frame *Frame) bool {
	var parent *rbnode
	current := t.root
	for current != nil {
		parent = current
		switch {
		case frame.Sequence == current.key:
			return false
		case frame.Sequence < current.key:
			current = current.left
		default:
			current = current.right
		}
	}

	node := &rbnode{parent: parent, key: frame.Sequence, val: frame, color: red}
	switch {
	case parent == nil:
		t.root = node
	case node.key < parent.key:
		parent.left = node
	default:
		parent.right = node
	}
	t.length++

	t.fixInsert(node)

	return true
}

func (t *RBTree) fixInsert(node *rbnode) {
	for node != t.root && node.parent.color == red {
		if !t.fixInsertCase(&node) {
			break
		}
	}
	t.root.color = black
}

// fixInsertCase handles a single case of insertion fix-up.
// Returns false if no more fix-up is needed.
func (t *RBTree) fixInsertCase(node **rbnode) bool {
	grandparent := (*node).parent.parent
	parentIsLeft := (*node).parent == grandparent.left
	uncle := grandparent.left
	if parentIsLeft {
		uncle = grandparent.right
	}

	if uncle != nil && uncle.color == red {
		(*node).parent.color = black
		uncle.color = black
		grandparent.color = red
		*node = grandparent

		return true
	}

	if parentIsLeft {
		if *node == (*node).parent.right {
			*node = (*node).parent
			t.rotateLeft(*node)
		}
		(*node).parent.color = black
		(*node).parent.parent.color = red
		t.rotateRight((*node).parent.parent)
	} else {
		if *node == (*node).parent.left {
			*node = (*node).parent
			t.rotateRight(*node)
		}
		(*node).parent.color = black
		(*node).parent.parent.color = red
		t.rotateLeft((*node).parent.parent)
	}

	return false
}

func (t *RBTree) rotateLeft(node *rbnode) {
	if node == nil || node.right == nil {
		return
	}

	pivot := node.right
	node.right = pivot.left
	if pivot.left != nil {
		pivot.left.parent = node
	}
	t.replaceChild(node, pivot)
	pivot.left = node
	node.parent = pivot
}

func (t *RBTree) rotateRight(node *rbnode) {
	if node == nil || node.left == nil {
		return
	}

	pivot := node.left
	node.left = pivot.right
	if pivot.right != nil {
		pivot.right.parent = node
	}
	t.replaceChild(node, pivot)
	pivot.right = node
	node.parent = pivot
}

// replaceChild hangs v where u was in u's parent.
func (t *RBTree) replaceChild(u, v *rbnode) {
	switch {
	case u.parent == nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}

	if v != nil {
		v.parent = u.parent
	}
}

func (t *RBTree) lookup(key uint64) *rbnode {
	node := t.root
	for node != nil && node.key != key {
		if key < node.key {
			node = node.left
		} else {
			node = node.right
		}
	}

	return node
}

// Find returns the frame with the given sequence.
func (t *RBTree) Find(key uint64) (*Frame, error) {
	if node := t.lookup(key); node != nil {
		return node.val, nil
	}

	return nil, ErrNotFound
}

func (t *RBTree) deleteNode(node *rbnode) {
	var child, childParent *rbnode
	removedColor := node.color

	switch {
	case node.left == nil:
		child, childParent = node.right, node.parent
		t.replaceChild(node, node.right)
	case node.right == nil:
		child, childParent = node.left, node.parent
		t.replaceChild(node, node.left)
	default:
		successor := minimum(node.right)
		removedColor = successor.color
		child = successor.right

		if successor.parent == node {
			childParent = successor
		} else {
			childParent = successor.parent
			t.replaceChild(successor, successor.right)
			successor.right = node.right
			successor.right.parent = successor
		}

		t.replaceChild(node, successor)
		successor.left = node.left
		successor.left.parent = successor
		successor.color = node.color
	}

	if removedColor == black {
		t.fixDelete(child, childParent)
	}
}

func (t *RBTree) fixDelete(node, parent *rbnode) {
	for node != t.root && isBlack(node) && parent != nil {
		if !t.fixDeleteCase(&node, &parent) {
			return
		}
	}

	if node != nil {
		node.color = black
	}
}

// fixDeleteCase handles a single case of deletion fix-up.
// Returns false if no more fix-up is needed.
func (t *RBTree) fixDeleteCase(node, parent **rbnode) bool {
	nodeIsLeft := *node == (*parent).left
	sibling := siblingOf(*parent, nodeIsLeft)
	if sibling == nil {
		return false
	}

	if sibling.color == red {
		sibling.color = black
		(*parent).color = red
		t.rotateToward(*parent, nodeIsLeft)
		if sibling = siblingOf(*parent, nodeIsLeft); sibling == nil {
			return false
		}
	}

	inner, outer := sibling.right, sibling.left
	if nodeIsLeft {
		inner, outer = sibling.left, sibling.right
	}

	if isBlack(inner) && isBlack(outer) {
		sibling.color = red
		if (*parent).color == red {
			(*parent).color = black

			return false
		}
		*node = *parent
		*parent = (*node).parent

		return true
	}

	if isBlack(outer) {
		inner.color = black
		sibling.color = red
		t.rotateToward(sibling, !nodeIsLeft)
		if sibling = siblingOf(*parent, nodeIsLeft); sibling == nil {
			return false
		}
		outer = sibling.left
		if nodeIsLeft {
			outer = sibling.right
		}
	}

	sibling.color = (*parent).color
	(*parent).color = black
	if outer != nil {
		outer.color = black
	}
	t.rotateToward(*parent, nodeIsLeft)

	return false
}

// rotateToward rotates node so that its child on the other side moves up.
func (t *RBTree) rotateToward(node *rbnode, left bool) {
	if left {
		t.rotateLeft(node)
	} else {
		t.rotateRight(node)
	}
}

func siblingOf(parent *rbnode, nodeIsLeft bool) *rbnode {
	if nodeIsLeft {
		return parent.right
	}

	return parent.left
}

func isBlack(node *rbnode) bool {
	return node == nil || node.color == black
}

func minimum(node *rbnode) *rbnode {
	for node.left != nil {
		node = node.left
	}

	return node
}

// Length returns the number of frames in the tree.
func (t *RBTree) Length() int {
	return t.length
}

// Min returns the frame with the lowest sequence.
func (t *RBTree) Min() (*Frame, error) {
	if t.root == nil {
		return nil, ErrNotFound
	}

	return minimum(t.root).val, nil
}

// PopMin removes and returns the frame with the lowest sequence.
func (t *RBTree) PopMin() (*Frame, error) {
	if t.root == nil {
		return nil, ErrNotFound
	}
	node := minimum(t.root)
	t.deleteNode(node)
	t.length--

	return node.val, nil
}

// PopAt removes and returns the frame with the given sequence.
func (t *RBTree) PopAt(key uint64) (*Frame, error) {
	node := t.lookup(key)
	if node == nil {
		return nil, ErrNotFound
	}
	t.deleteNode(node)
	t.length--

	return node.val, nil
}
