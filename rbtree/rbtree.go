// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rbtree implements an intrusive-style, generic red-black tree
// ordered by a 64-bit key, supporting duplicate keys. It is built to
// back a hash table bucket: nodes are cheap to allocate individually
// and the tree tracks its own leftmost/rightmost node for O(1) minimum
// and maximum access.
package rbtree

type color bool

const (
	red   color = true
	black color = false
)

// Node is one tree element. Its zero value is not a valid node; obtain
// one from [Tree.Insert].
type Node[V any] struct {
	parent, left, right *Node[V]
	clr                  color
	key                  uint64

	Value V
}

// Key returns the ordering key n was inserted with.
func (n *Node[V]) Key() uint64 { return n.key }

func (n *Node[V]) isRed() bool {
	return n != nil && n.clr == red
}

// Tree is a red-black tree ordered by an explicit uint64 key, allowing
// duplicates. The zero value is an empty, ready-to-use tree.
type Tree[V any] struct {
	root               *Node[V]
	leftmost, rightmost *Node[V]
	count              uint
}

// Len returns the number of nodes currently in t.
func (t *Tree[V]) Len() uint { return t.count }

// Min returns the leftmost (smallest-keyed) node, or nil if t is empty.
func (t *Tree[V]) Min() *Node[V] { return t.leftmost }

// Max returns the rightmost (largest-keyed) node, or nil if t is empty.
func (t *Tree[V]) Max() *Node[V] { return t.rightmost }

// Find returns a node with the given key, or nil if none exists. When
// duplicates are present the specific node returned among those with
// an equal key is unspecified; use [Tree.FindLeft] for the first
// in-order occurrence.
func (t *Tree[V]) Find(key uint64) *Node[V] {
	n := t.root
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// FindLeft returns the first in-order node with the given key, or nil
// if none exists.
func (t *Tree[V]) FindLeft(key uint64) *Node[V] {
	var candidate *Node[V]
	n := t.root
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			candidate = n
			n = n.left
		}
	}
	return candidate
}

// Insert places a new node carrying key and value into t and returns
// it. Equal keys are permitted: the descent goes right on an equal key,
// so a new node lands after every existing node with the same key, and
// duplicates are visited in insertion order by an in-order traversal.
func (t *Tree[V]) Insert(key uint64, value V) *Node[V] {
	n := &Node[V]{key: key, Value: value, clr: red}

	if t.root == nil {
		t.root = n
		t.leftmost = n
		t.rightmost = n
		t.count++
		n.clr = black
		return n
	}

	parent := t.root
	var goLeft bool
	for {
		if key < parent.key {
			goLeft = true
			if parent.left == nil {
				break
			}
			parent = parent.left
		} else {
			goLeft = false
			if parent.right == nil {
				break
			}
			parent = parent.right
		}
	}

	n.parent = parent
	if goLeft {
		parent.left = n
		if parent == t.leftmost {
			t.leftmost = n
		}
	} else {
		parent.right = n
		if parent == t.rightmost {
			t.rightmost = n
		}
	}

	t.count++
	t.insertFixup(n)
	return n
}

func (t *Tree[V]) insertFixup(n *Node[V]) {
	for n.parent.isRed() {
		parent := n.parent
		grandparent := parent.parent

		if parent == grandparent.left {
			uncle := grandparent.right
			if uncle.isRed() {
				parent.clr = black
				uncle.clr = black
				grandparent.clr = red
				n = grandparent
				continue
			}
			if n == parent.right {
				n = parent
				t.rotateLeft(n)
				parent = n.parent
			}
			parent.clr = black
			grandparent.clr = red
			t.rotateRight(grandparent)
		} else {
			uncle := grandparent.left
			if uncle.isRed() {
				parent.clr = black
				uncle.clr = black
				grandparent.clr = red
				n = grandparent
				continue
			}
			if n == parent.left {
				n = parent
				t.rotateRight(n)
				parent = n.parent
			}
			parent.clr = black
			grandparent.clr = red
			t.rotateLeft(grandparent)
		}
	}
	t.root.clr = black
}

// rotateLeft and rotateRight re-seat x's subtree, updating whichever
// slot used to hold x: the root pointer, or the left/right field of
// x's former parent. This substitutes for the anchor pointer-to-pointer
// the non-Go original uses to update a node's parent slot uniformly.
func (t *Tree[V]) rotateLeft(x *Node[V]) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	t.replaceInParent(x, y)
	y.left = x
	x.parent = y
}

func (t *Tree[V]) rotateRight(x *Node[V]) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	t.replaceInParent(x, y)
	y.right = x
	x.parent = y
}

func (t *Tree[V]) replaceInParent(oldNode, newNode *Node[V]) {
	parent := oldNode.parent
	switch {
	case parent == nil:
		t.root = newNode
	case parent.left == oldNode:
		parent.left = newNode
	default:
		parent.right = newNode
	}
}

// Increment returns the in-order successor of n, or nil if n is the
// rightmost node.
func Increment[V any](n *Node[V]) *Node[V] {
	if n == nil {
		return nil
	}
	if n.right != nil {
		n = n.right
		for n.left != nil {
			n = n.left
		}
		return n
	}
	p := n.parent
	for p != nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

// Decrement returns the in-order predecessor of n, or nil if n is the
// leftmost node.
func Decrement[V any](n *Node[V]) *Node[V] {
	if n == nil {
		return nil
	}
	if n.left != nil {
		n = n.left
		for n.right != nil {
			n = n.right
		}
		return n
	}
	p := n.parent
	for p != nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

// Unlink removes n from t. n must currently be a member of t.
func (t *Tree[V]) Unlink(n *Node[V]) {
	if t.leftmost == n {
		t.leftmost = Increment(n)
	}
	if t.rightmost == n {
		t.rightmost = Decrement(n)
	}

	y := n
	var x, xParent *Node[V]
	yWasRed := y.isRed()

	if n.left == nil {
		x = n.right
		xParent = n.parent
		t.replaceInParent(n, x)
		if x != nil {
			x.parent = n.parent
		}
	} else if n.right == nil {
		x = n.left
		xParent = n.parent
		t.replaceInParent(n, x)
		if x != nil {
			x.parent = n.parent
		}
	} else {
		// Two children: splice in the in-order successor, which has
		// no left child, in place of n.
		y = n.right
		for y.left != nil {
			y = y.left
		}
		yWasRed = y.isRed()
		x = y.right

		if y.parent == n {
			xParent = y
		} else {
			xParent = y.parent
			t.replaceInParent(y, x)
			if x != nil {
				x.parent = y.parent
			}
			y.right = n.right
			y.right.parent = y
		}

		t.replaceInParent(n, y)
		y.parent = n.parent
		y.left = n.left
		y.left.parent = y
		y.clr = n.clr
	}

	t.count--

	if !yWasRed {
		t.unlinkFixup(x, xParent)
	}
}

func (t *Tree[V]) unlinkFixup(x, parent *Node[V]) {
	for x != t.root && !x.isRed() {
		if x == parent.left {
			sibling := parent.right
			if sibling.isRed() {
				sibling.clr = black
				parent.clr = red
				t.rotateLeft(parent)
				sibling = parent.right
			}
			if !sibling.left.isRed() && !sibling.right.isRed() {
				sibling.clr = red
				x = parent
				parent = x.parent
				continue
			}
			if !sibling.right.isRed() {
				sibling.left.clr = black
				sibling.clr = red
				t.rotateRight(sibling)
				sibling = parent.right
			}
			sibling.clr = parent.clr
			parent.clr = black
			sibling.right.clr = black
			t.rotateLeft(parent)
			x = t.root
			parent = nil
		} else {
			sibling := parent.left
			if sibling.isRed() {
				sibling.clr = black
				parent.clr = red
				t.rotateRight(parent)
				sibling = parent.left
			}
			if !sibling.right.isRed() && !sibling.left.isRed() {
				sibling.clr = red
				x = parent
				parent = x.parent
				continue
			}
			if !sibling.left.isRed() {
				sibling.right.clr = black
				sibling.clr = red
				t.rotateLeft(sibling)
				sibling = parent.left
			}
			sibling.clr = parent.clr
			parent.clr = black
			sibling.left.clr = black
			t.rotateRight(parent)
			x = t.root
			parent = nil
		}
	}
	if x != nil {
		x.clr = black
	}
}
