package nsstore

import (
	"github.com/pkvartsianyi/spatio/pkg/record"
	"github.com/pkvartsianyi/spatio/pkg/types"
)

// node is one entry of the AVL tree: a single key/value pair with two
// children, rebalanced by rotation after every insert and delete so the
// tree's height — and therefore every Get/Upsert/Delete — stays
// O(log n) regardless of insertion order.
type node struct {
	key    types.Comparable
	value  *record.Record
	left   *node
	right  *node
	height int
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balanceFactor(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func updateHeight(n *node) {
	lh, rh := height(n.left), height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}

// rotateRight promotes n.left to the subtree root, the standard single
// right rotation; n.left must be non-nil.
func rotateRight(n *node) *node {
	pivot := n.left
	n.left = pivot.right
	pivot.right = n

	updateHeight(n)
	updateHeight(pivot)
	return pivot
}

// rotateLeft promotes n.right to the subtree root, the mirror of
// rotateRight; n.right must be non-nil.
func rotateLeft(n *node) *node {
	pivot := n.right
	n.right = pivot.left
	pivot.left = n

	updateHeight(n)
	updateHeight(pivot)
	return pivot
}

// rebalance restores the AVL invariant (|balanceFactor| <= 1) at n after
// one of its subtrees changed height, choosing a single or double
// rotation depending on which side is heavy.
func rebalance(n *node) *node {
	updateHeight(n)

	switch bf := balanceFactor(n); {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	default:
		return n
	}
}

// upsert inserts key into the subtree rooted at n or, if it is already
// present, runs fn against the existing value and replaces it. It returns
// the subtree's new root and whether a new node was created (so the
// caller can maintain a live count without a separate tree walk).
func upsert(n *node, key types.Comparable, fn func(old *record.Record, exists bool) (*record.Record, error)) (*node, bool, error) {
	if n == nil {
		newValue, err := fn(nil, false)
		if err != nil {
			return nil, false, err
		}
		return &node{key: key, value: newValue, height: 1}, true, nil
	}

	switch c := key.Compare(n.key); {
	case c < 0:
		left, inserted, err := upsert(n.left, key, fn)
		if err != nil {
			return n, false, err
		}
		n.left = left
		if !inserted {
			return n, false, nil
		}
		return rebalance(n), true, nil

	case c > 0:
		right, inserted, err := upsert(n.right, key, fn)
		if err != nil {
			return n, false, err
		}
		n.right = right
		if !inserted {
			return n, false, nil
		}
		return rebalance(n), true, nil

	default:
		newValue, err := fn(n.value, true)
		if err != nil {
			return n, false, err
		}
		n.value = newValue
		return n, false, nil
	}
}

// get walks the subtree rooted at n for key, iteratively since no
// rebalancing is needed on a read.
func get(n *node, key types.Comparable) (*record.Record, bool) {
	for n != nil {
		switch c := key.Compare(n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	return nil, false
}

// deleteKey removes key from the subtree rooted at n, splicing in the
// in-order successor when the matched node has two children, and
// rebalancing every node on the path back to the root. It reports
// whether key was present.
func deleteKey(n *node, key types.Comparable) (*node, bool) {
	if n == nil {
		return nil, false
	}

	var removed bool
	switch c := key.Compare(n.key); {
	case c < 0:
		n.left, removed = deleteKey(n.left, key)
	case c > 0:
		n.right, removed = deleteKey(n.right, key)
	default:
		removed = true
		switch {
		case n.left == nil:
			return n.right, true
		case n.right == nil:
			return n.left, true
		default:
			succ := n.right
			for succ.left != nil {
				succ = succ.left
			}
			n.key, n.value = succ.key, succ.value
			n.right, _ = deleteKey(n.right, succ.key)
		}
	}

	if !removed {
		return n, false
	}
	return rebalance(n), true
}

// inorder visits every (key, value) pair ascending by key, stopping early
// if fn returns false.
func inorder(n *node, fn func(rec *record.Record) bool) bool {
	if n == nil {
		return true
	}
	if !inorder(n.left, fn) {
		return false
	}
	if !fn(n.value) {
		return false
	}
	return inorder(n.right, fn)
}
