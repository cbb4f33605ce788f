package interval

import "math"

type color uint8

const (
	black color = iota
	red
)

// nodeRef addresses a node in the arena. The sentinel lives at index 0.
type nodeRef int32

// sentinel stands for every leaf and for the parent of the root.
const sentinel nodeRef = 0

type node struct {
	iv      Interval
	key     float64 // iv.Low()
	high    float64 // iv.High()
	maxHigh float64 // max high in this subtree
	color   color

	left, right, parent nodeRef
}

// Tree is an augmented red-black tree keyed by interval low bound. Every node
// caches the maximum high bound of its subtree, which lets overlap queries
// skip subtrees that end before the query starts.
//
// Thread-safety: NOT thread-safe. Callers driving one Tree from several
// goroutines must serialize Insert/Delete against FindAllIntersections.
type Tree struct {
	nodes []node
	free  []nodeRef
	root  nodeRef
	count int
}

// NewTree returns an empty index.
func NewTree() *Tree {
	t := &Tree{
		nodes: make([]node, 1, 16),
		root:  sentinel,
	}
	t.nodes[sentinel] = node{
		color:   black,
		maxHigh: math.Inf(-1),
		left:    sentinel,
		right:   sentinel,
		parent:  sentinel,
	}
	return t
}

// Len returns the number of intervals in the index.
func (t *Tree) Len() int {
	return t.count
}

func (t *Tree) alloc(iv Interval) nodeRef {
	nd := node{
		iv:      iv,
		key:     iv.low,
		high:    iv.high,
		maxHigh: iv.high,
		color:   red,
		left:    sentinel,
		right:   sentinel,
		parent:  sentinel,
	}
	if k := len(t.free); k > 0 {
		r := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[r] = nd
		return r
	}
	t.nodes = append(t.nodes, nd)
	return nodeRef(len(t.nodes) - 1)
}

func (t *Tree) release(r nodeRef) {
	t.nodes[r] = node{}
	t.free = append(t.free, r)
}

// refresh recomputes maxHigh of r from its own high and its children.
// It reports whether the cached value changed.
func (t *Tree) refresh(r nodeRef) bool {
	x := &t.nodes[r]
	m := x.high
	if l := t.nodes[x.left].maxHigh; l > m {
		m = l
	}
	if rr := t.nodes[x.right].maxHigh; rr > m {
		m = rr
	}
	if m == x.maxHigh {
		return false
	}
	x.maxHigh = m
	return true
}

// propagateUp refreshes maxHigh from r to the root. With earlyStop the walk
// ends at the first node whose value did not change.
func (t *Tree) propagateUp(r nodeRef, earlyStop bool) {
	for r != sentinel {
		if !t.refresh(r) && earlyStop {
			return
		}
		r = t.nodes[r].parent
	}
}

func (t *Tree) rotateLeft(x nodeRef) {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if yl := t.nodes[y].left; yl != sentinel {
		t.nodes[yl].parent = x
	}
	p := t.nodes[x].parent
	t.nodes[y].parent = p
	switch {
	case p == sentinel:
		t.root = y
	case x == t.nodes[p].left:
		t.nodes[p].left = y
	default:
		t.nodes[p].right = y
	}
	t.nodes[y].left = x
	t.nodes[x].parent = y

	// x is now below y
	t.refresh(x)
	t.refresh(y)
}

func (t *Tree) rotateRight(x nodeRef) {
	y := t.nodes[x].left
	t.nodes[x].left = t.nodes[y].right
	if yr := t.nodes[y].right; yr != sentinel {
		t.nodes[yr].parent = x
	}
	p := t.nodes[x].parent
	t.nodes[y].parent = p
	switch {
	case p == sentinel:
		t.root = y
	case x == t.nodes[p].right:
		t.nodes[p].right = y
	default:
		t.nodes[p].left = y
	}
	t.nodes[y].right = x
	t.nodes[x].parent = y

	t.refresh(x)
	t.refresh(y)
}

func (t *Tree) colorOf(r nodeRef) color     { return t.nodes[r].color }
func (t *Tree) setColor(r nodeRef, c color) { t.nodes[r].color = c }
func (t *Tree) parentOf(r nodeRef) nodeRef  { return t.nodes[r].parent }
func (t *Tree) leftOf(r nodeRef) nodeRef    { return t.nodes[r].left }
func (t *Tree) rightOf(r nodeRef) nodeRef   { return t.nodes[r].right }

func (t *Tree) minimum(r nodeRef) nodeRef {
	for t.nodes[r].left != sentinel {
		r = t.nodes[r].left
	}
	return r
}

// Insert adds iv to the index. Intervals with equal low bounds are kept in
// insertion order relative to each other (ties descend right).
func (t *Tree) Insert(iv Interval) {
	z := t.alloc(iv)
	key := iv.low

	y := sentinel
	x := t.root
	for x != sentinel {
		y = x
		if key < t.nodes[x].key {
			x = t.nodes[x].left
		} else {
			x = t.nodes[x].right
		}
	}

	t.nodes[z].parent = y
	switch {
	case y == sentinel:
		t.root = z
	case key < t.nodes[y].key:
		t.nodes[y].left = z
	default:
		t.nodes[y].right = z
	}
	t.count++

	// Ancestors must be current before rotations recompute from children.
	t.propagateUp(y, true)
	t.insertFixup(z)
}

func (t *Tree) insertFixup(z nodeRef) {
	for t.colorOf(t.parentOf(z)) == red {
		p := t.parentOf(z)
		g := t.parentOf(p)
		if p == t.leftOf(g) {
			u := t.rightOf(g)
			if t.colorOf(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.rightOf(p) {
				z = p
				t.rotateLeft(z)
			}
			p = t.parentOf(z)
			g = t.parentOf(p)
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateRight(g)
		} else {
			u := t.leftOf(g)
			if t.colorOf(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.leftOf(p) {
				z = p
				t.rotateRight(z)
			}
			p = t.parentOf(z)
			g = t.parentOf(p)
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateLeft(g)
		}
	}
	t.setColor(t.root, black)
}

// find locates the node holding iv by identity. Equal keys may sit on either
// side of a node after rotations, so both subtrees are searched on a key match.
func (t *Tree) find(r nodeRef, iv Interval) nodeRef {
	for r != sentinel {
		nd := &t.nodes[r]
		switch {
		case iv.low < nd.key:
			r = nd.left
		case iv.low > nd.key:
			r = nd.right
		default:
			if nd.iv.id == iv.id {
				return r
			}
			if f := t.find(nd.left, iv); f != sentinel {
				return f
			}
			r = nd.right
		}
	}
	return sentinel
}

// Contains reports whether iv (by identity) is in the index.
func (t *Tree) Contains(iv Interval) bool {
	return t.find(t.root, iv) != sentinel
}

// Delete removes iv, located by identity. Deleting an interval that is not in
// the index is a no-op and returns false.
func (t *Tree) Delete(iv Interval) bool {
	z := t.find(t.root, iv)
	if z == sentinel {
		return false
	}

	// y is the node physically spliced out: z itself, or z's in-order
	// successor when z has two children.
	y := z
	if t.leftOf(z) != sentinel && t.rightOf(z) != sentinel {
		y = t.minimum(t.rightOf(z))
	}

	x := t.rightOf(y)
	if t.leftOf(y) != sentinel {
		x = t.leftOf(y)
	}

	yp := t.parentOf(y)
	// x may be the sentinel; its parent is needed by deleteFixup.
	t.nodes[x].parent = yp
	switch {
	case yp == sentinel:
		t.root = x
	case y == t.leftOf(yp):
		t.nodes[yp].left = x
	default:
		t.nodes[yp].right = x
	}

	if y != z {
		t.nodes[z].iv = t.nodes[y].iv
		t.nodes[z].key = t.nodes[y].key
		t.nodes[z].high = t.nodes[y].high
	}

	yColor := t.colorOf(y)
	t.release(y)
	t.count--

	// z's own high may have changed, so no early stop here.
	t.propagateUp(yp, false)

	if yColor == black {
		t.deleteFixup(x)
	}
	t.nodes[sentinel].parent = sentinel
	return true
}

func (t *Tree) deleteFixup(x nodeRef) {
	for x != t.root && t.colorOf(x) == black {
		p := t.parentOf(x)
		if x == t.leftOf(p) {
			w := t.rightOf(p)
			if t.colorOf(w) == red {
				t.setColor(w, black)
				t.setColor(p, red)
				t.rotateLeft(p)
				w = t.rightOf(t.parentOf(x))
			}
			if t.colorOf(t.leftOf(w)) == black && t.colorOf(t.rightOf(w)) == black {
				t.setColor(w, red)
				x = t.parentOf(x)
				continue
			}
			if t.colorOf(t.rightOf(w)) == black {
				t.setColor(t.leftOf(w), black)
				t.setColor(w, red)
				t.rotateRight(w)
				w = t.rightOf(t.parentOf(x))
			}
			p = t.parentOf(x)
			t.setColor(w, t.colorOf(p))
			t.setColor(p, black)
			t.setColor(t.rightOf(w), black)
			t.rotateLeft(p)
			x = t.root
		} else {
			w := t.leftOf(p)
			if t.colorOf(w) == red {
				t.setColor(w, black)
				t.setColor(p, red)
				t.rotateRight(p)
				w = t.leftOf(t.parentOf(x))
			}
			if t.colorOf(t.rightOf(w)) == black && t.colorOf(t.leftOf(w)) == black {
				t.setColor(w, red)
				x = t.parentOf(x)
				continue
			}
			if t.colorOf(t.leftOf(w)) == black {
				t.setColor(t.rightOf(w), black)
				t.setColor(w, red)
				t.rotateLeft(w)
				w = t.leftOf(t.parentOf(x))
			}
			p = t.parentOf(x)
			t.setColor(w, t.colorOf(p))
			t.setColor(p, black)
			t.setColor(t.leftOf(w), black)
			t.rotateRight(p)
			x = t.root
		}
	}
	t.setColor(x, black)
}

// FindAllIntersections returns every interval i in the index with
// i.Low() <= qHigh and i.High() >= qLow. Result order is unspecified.
func (t *Tree) FindAllIntersections(qLow, qHigh float64) []Interval {
	var out []Interval
	t.collect(t.root, qLow, qHigh, &out)
	return out
}

func (t *Tree) collect(r nodeRef, qLow, qHigh float64, out *[]Interval) {
	if r == sentinel {
		return
	}
	nd := &t.nodes[r]
	if nd.maxHigh < qLow {
		return
	}
	// nothing in the left subtree reaches qLow
	if l := nd.left; l != sentinel && t.nodes[l].maxHigh >= qLow {
		t.collect(l, qLow, qHigh, out)
	}
	if nd.key > qHigh {
		return
	}
	if nd.high >= qLow {
		*out = append(*out, nd.iv)
	}
	t.collect(nd.right, qLow, qHigh, out)
}

// InOrder returns all intervals sorted by low bound.
func (t *Tree) InOrder() []Interval {
	out := make([]Interval, 0, t.count)
	var walk func(r nodeRef)
	walk = func(r nodeRef) {
		if r == sentinel {
			return
		}
		walk(t.nodes[r].left)
		out = append(out, t.nodes[r].iv)
		walk(t.nodes[r].right)
	}
	walk(t.root)
	return out
}

// Height is the number of levels in the tree; one node has height 1.
func (t *Tree) Height() int {
	var h func(r nodeRef) int
	h = func(r nodeRef) int {
		if r == sentinel {
			return 0
		}
		return 1 + max(h(t.nodes[r].left), h(t.nodes[r].right))
	}
	return h(t.root)
}

// MaxHeight is the red-black bound on height for the current size.
func (t *Tree) MaxHeight() int {
	return int(2 * math.Log2(float64(t.count+1)))
}
