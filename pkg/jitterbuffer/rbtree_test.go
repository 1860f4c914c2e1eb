// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jitterbuffer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRootNotBlack        = errors.New("root node is not black")
	errRedNodeRedParent    = errors.New("red node has red parent")
	errBlackHeightMismatch = errors.New("black height mismatch")
	errOrder               = errors.New("keys out of order")
)

func frameAt(seq uint64) *Frame {
	return &Frame{Sequence: seq, SourceSequence: seq, Payload: []byte{byte(seq)}}
}

func TestTreeOperations(t *testing.T) {
	tests := []struct {
		name     string
		ops      func(*RBTree)
		validate func(*testing.T, *RBTree)
	}{
		{
			name: "TreeRotation",
			ops: func(tree *RBTree) {
				// 5 -> 7 -> 9 down the right spine.
				root := &rbnode{key: 5, color: black}
				right := &rbnode{key: 7, color: red}
				rightRight := &rbnode{key: 9, color: red}

				tree.root = root
				root.right = right
				right.parent = root
				right.right = rightRight
				rightRight.parent = right

				tree.rotateLeft(root)
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				assert.Equal(uint64(7), tree.root.key)
				assert.Equal(uint64(5), tree.root.left.key)
				assert.Equal(uint64(9), tree.root.right.key)
				assert.Nil(tree.root.parent)
				assert.Equal(tree.root, tree.root.left.parent)
				assert.Equal(tree.root, tree.root.right.parent)
			},
		},
		{
			name: "OrderedPopMin",
			ops: func(tree *RBTree) {
				for _, seq := range []uint64{70004, 70000, 70002, 70001, 70003, 70005, 70006, 70007, 70008, 70009, 70010} {
					tree.Insert(frameAt(seq))
				}
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				for seq := uint64(70000); seq <= 70010; seq++ {
					frame, err := tree.PopMin()
					assert.NoError(err)
					assert.Equal(seq, frame.Sequence)
				}
				assert.Equal(0, tree.Length())
			},
		},
		{
			name: "RedBlackProperties",
			ops: func(tree *RBTree) {
				for i := uint64(0); i < 101; i++ {
					tree.Insert(frameAt(i))
				}
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				assert.True(checkRedBlackProperties(tree.root, assert), "Red-black properties violated")
				_, valid := checkBlackHeight(tree.root, assert)
				assert.True(valid, "Black height property violated")
			},
		},
		{
			name: "DuplicateRejected",
			ops: func(tree *RBTree) {
				tree.Insert(frameAt(3))
				tree.Insert(&Frame{Sequence: 3, Payload: []byte{0xFF}})
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				assert.Equal(1, tree.Length())
				frame, err := tree.Find(3)
				assert.NoError(err)
				assert.Equal([]byte{3}, frame.Payload)
			},
		},
		{
			name: "Min",
			ops: func(tree *RBTree) {
				for _, seq := range []uint64{1 << 40, 12, 1<<40 + 7, 13} {
					tree.Insert(frameAt(seq))
				}
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				lowest, err := tree.Min()
				assert.NoError(err)
				assert.Equal(uint64(12), lowest.Sequence)
				highest, err := tree.Find(1<<40 + 7)
				assert.NoError(err)
				assert.Equal(uint64(1<<40+7), highest.Sequence)
			},
		},
		{
			name: "TreeEdgeCases",
			ops: func(tree *RBTree) {
				for seq := uint64(1); seq <= 5; seq++ {
					tree.Insert(frameAt(seq))
				}
			},
			validate: func(t *testing.T, tree *RBTree) {
				t.Helper()
				assert := assert.New(t)
				assert.NoError(validateRBProperties(tree))
				assert.Equal(5, tree.Length())

				frame, err := tree.PopAt(3)
				assert.NoError(err)
				assert.Equal(uint64(3), frame.Sequence)
				_, err = tree.PopAt(3)
				assert.ErrorIs(err, ErrNotFound)
				_, err = tree.PopAt(999)
				assert.ErrorIs(err, ErrNotFound)

				for tree.Length() > 0 {
					_, err = tree.PopMin()
					assert.NoError(err)
				}
				_, err = tree.PopMin()
				assert.ErrorIs(err, ErrNotFound)
				_, err = tree.Min()
				assert.ErrorIs(err, ErrNotFound)
				_, err = tree.Find(1)
				assert.ErrorIs(err, ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree()
			tt.ops(tree)
			tt.validate(t, tree)
		})
	}
}

func TestTreeRandomInsertDelete(t *testing.T) {
	tree := NewTree()
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	present := map[uint64]bool{}

	for i := 0; i < 5000; i++ {
		key := uint64(rng.Intn(500)) //nolint:gosec // G115
		if rng.Intn(3) == 0 {
			_, err := tree.PopAt(key)
			if present[key] {
				require.NoError(t, err)
				delete(present, key)
			} else {
				require.ErrorIs(t, err, ErrNotFound)
			}
		} else {
			assert.Equal(t, !present[key], tree.Insert(frameAt(key)))
			present[key] = true
		}

		if i%250 == 0 {
			require.NoError(t, validateRBProperties(tree))
			require.NoError(t, validateOrder(tree.root))
		}
	}

	require.NoError(t, validateRBProperties(tree))
	assert.Equal(t, len(present), tree.Length())

	var last uint64
	for i := 0; tree.Length() > 0; i++ {
		frame, err := tree.PopMin()
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, frame.Sequence, last)
		}
		last = frame.Sequence
		require.NoError(t, validateRBProperties(tree))
	}
}

// Helper functions for tree validation.
func checkRedBlackProperties(node *rbnode, assert *assert.Assertions) bool {
	if node == nil {
		return true
	}

	if node.parent == nil && node.color != black {
		assert.Fail("Root node is not black")

		return false
	}

	if node.color == red {
		if node.left != nil && node.left.color == red {
			assert.Failf("Red node has red left child", "Node key: %v", node.key)

			return false
		}
		if node.right != nil && node.right.color == red {
			assert.Failf("Red node has red right child", "Node key: %v", node.key)

			return false
		}
	}

	return checkRedBlackProperties(node.left, assert) && checkRedBlackProperties(node.right, assert)
}

func checkBlackHeight(node *rbnode, assert *assert.Assertions) (int, bool) {
	if node == nil {
		return 1, true
	}

	leftHeight, leftValid := checkBlackHeight(node.left, assert)
	rightHeight, rightValid := checkBlackHeight(node.right, assert)

	if !leftValid || !rightValid {
		return 0, false
	}

	if leftHeight != rightHeight {
		assert.Failf("Black height mismatch", "Node key: %v", node.key)

		return 0, false
	}

	if node.color == black {
		return leftHeight + 1, true
	}

	return leftHeight, true
}

func validateRBProperties(tree *RBTree) error {
	if tree.root == nil {
		return nil
	}

	if tree.root.color != black {
		return errRootNotBlack
	}

	_, err := validateNode(tree.root, black)

	return err
}

func validateNode(node *rbnode, parentColor treeColor) (int, error) {
	if node == nil {
		return 1, nil
	}

	if node.color == red && parentColor == red {
		return 0, errRedNodeRedParent
	}

	leftHeight, err := validateNode(node.left, node.color)
	if err != nil {
		return 0, err
	}

	rightHeight, err := validateNode(node.right, node.color)
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, errBlackHeightMismatch
	}

	if node.color == black {
		return leftHeight + 1, nil
	}

	return leftHeight, nil
}

func validateOrder(node *rbnode) error {
	if node == nil {
		return nil
	}
	if node.left != nil && (node.left.key >= node.key || node.left.parent != node) {
		return errOrder
	}
	if node.right != nil && (node.right.key <= node.key || node.right.parent != node) {
		return errOrder
	}
	if err := validateOrder(node.left); err != nil {
		return err
	}

	return validateOrder(node.right)
}
