package interval

import (
	"fmt"
	"math"
)

// CheckInvariants walks the whole tree and returns the first violation of the
// ordering, red-black or augmentation invariants, or nil. It is O(n) and meant
// for tests and debugging, not for the simulation hot path.
func (t *Tree) CheckInvariants() error {
	s := t.nodes[sentinel]
	if s.color != black {
		return fmt.Errorf("sentinel is red")
	}
	if !math.IsInf(s.maxHigh, -1) {
		return fmt.Errorf("sentinel maxHigh = %g, want -Inf", s.maxHigh)
	}
	if t.root != sentinel {
		if t.colorOf(t.root) != black {
			return fmt.Errorf("root %v is red", t.nodes[t.root].iv)
		}
		if t.parentOf(t.root) != sentinel {
			return fmt.Errorf("root %v has a parent", t.nodes[t.root].iv)
		}
	}
	n, _, err := t.checkSubtree(t.root, math.Inf(-1), math.Inf(1))
	if err != nil {
		return err
	}
	if n != t.count {
		return fmt.Errorf("reachable nodes = %d, count = %d", n, t.count)
	}
	if live := len(t.nodes) - 1 - len(t.free); live != t.count {
		return fmt.Errorf("arena holds %d live nodes, count = %d", live, t.count)
	}
	return nil
}

// checkSubtree returns the node count and black height of the subtree at r.
func (t *Tree) checkSubtree(r nodeRef, lo, hi float64) (int, int, error) {
	if r == sentinel {
		return 0, 1, nil
	}
	nd := t.nodes[r]
	if nd.key < lo || nd.key > hi {
		return 0, 0, fmt.Errorf("node %v key %g outside [%g, %g]", nd.iv, nd.key, lo, hi)
	}
	if nd.key != nd.iv.low || nd.high != nd.iv.high {
		return 0, 0, fmt.Errorf("node %v caches key %g high %g", nd.iv, nd.key, nd.high)
	}
	for _, c := range []nodeRef{nd.left, nd.right} {
		if c == sentinel {
			continue
		}
		if t.nodes[c].parent != r {
			return 0, 0, fmt.Errorf("child %v of %v has wrong parent", t.nodes[c].iv, nd.iv)
		}
		if nd.color == red && t.nodes[c].color == red {
			return 0, 0, fmt.Errorf("red node %v has red child %v", nd.iv, t.nodes[c].iv)
		}
	}

	lc, lbh, err := t.checkSubtree(nd.left, lo, nd.key)
	if err != nil {
		return 0, 0, err
	}
	rc, rbh, err := t.checkSubtree(nd.right, nd.key, hi)
	if err != nil {
		return 0, 0, err
	}
	if lbh != rbh {
		return 0, 0, fmt.Errorf("node %v black height left %d != right %d", nd.iv, lbh, rbh)
	}

	want := math.Max(nd.high, math.Max(t.nodes[nd.left].maxHigh, t.nodes[nd.right].maxHigh))
	if nd.maxHigh != want {
		return 0, 0, fmt.Errorf("node %v maxHigh = %g, want %g", nd.iv, nd.maxHigh, want)
	}

	bh := lbh
	if nd.color == black {
		bh++
	}
	return lc + rc + 1, bh, nil
}
