package interval

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, f *Factory, low, high float64) Interval {
	t.Helper()
	iv, err := f.New(low, high)
	require.NoError(t, err)
	return iv
}

func ids(ivs []Interval) []ID {
	out := make([]ID, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, iv.ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// oracle is the linear-scan reference for FindAllIntersections.
func oracle(live map[ID]Interval, qLow, qHigh float64) []ID {
	var out []ID
	for id, iv := range live {
		if iv.Low() <= qHigh && iv.High() >= qLow {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestTree_EmptyIndex(t *testing.T) {
	tr := NewTree()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.FindAllIntersections(0, 100))
	assert.Empty(t, tr.InOrder())
	assert.Equal(t, 0, tr.Height())
	require.NoError(t, tr.CheckInvariants())
}

func TestTree_FindAllIntersections_ConcreteCase(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	a := mustNew(t, f, 0, 10)
	b := mustNew(t, f, 5, 15)
	c := mustNew(t, f, 20, 30)
	d := mustNew(t, f, 12, 18)
	for _, iv := range []Interval{a, b, c, d} {
		tr.Insert(iv)
	}
	require.NoError(t, tr.CheckInvariants())

	got := tr.FindAllIntersections(14, 16)
	assert.ElementsMatch(t, []ID{b.ID(), d.ID()}, ids(got))

	assert.Empty(t, tr.FindAllIntersections(40, 50))
}

func TestTree_QueryBoundariesAreInclusive(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	a := mustNew(t, f, 0, 10)
	tr.Insert(a)

	assert.Len(t, tr.FindAllIntersections(10, 20), 1, "touching at high bound")
	assert.Len(t, tr.FindAllIntersections(-5, 0), 1, "touching at low bound")
	assert.Empty(t, tr.FindAllIntersections(10.5, 20))
}

func TestTree_DeleteMissIsNoop(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	a := mustNew(t, f, 0, 10)
	stranger := mustNew(t, f, 0, 10) // same bounds, different identity
	tr.Insert(a)

	assert.False(t, tr.Delete(stranger))
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Delete(a))
	assert.False(t, tr.Delete(a), "second delete of the same interval")
	assert.Equal(t, 0, tr.Len())
	require.NoError(t, tr.CheckInvariants())
}

func TestTree_DeleteDisambiguatesEqualKeysByIdentity(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	var same []Interval
	for i := 0; i < 32; i++ {
		iv := mustNew(t, f, 100, 100+float64(i))
		same = append(same, iv)
		tr.Insert(iv)
	}
	// Delete from the middle so the target is rarely the first key match.
	for _, i := range []int{17, 3, 30, 0, 16} {
		require.True(t, tr.Delete(same[i]), "delete #%d", i)
		assert.False(t, tr.Contains(same[i]))
		require.NoError(t, tr.CheckInvariants())
	}
	assert.Equal(t, 27, tr.Len())
	for i, iv := range same {
		switch i {
		case 17, 3, 30, 0, 16:
		default:
			assert.True(t, tr.Contains(iv), "interval #%d lost", i)
		}
	}
}

func TestTree_InsertThenDeleteRestoresInOrderSequence(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		lo := float64(rng.Intn(1000))
		tr.Insert(mustNew(t, f, lo, lo+float64(rng.Intn(50))))
	}
	before := ids(tr.InOrder())
	beforeOrder := tr.InOrder()

	extra := mustNew(t, f, 500, 520)
	tr.Insert(extra)
	require.NoError(t, tr.CheckInvariants())
	require.True(t, tr.Delete(extra))
	require.NoError(t, tr.CheckInvariants())

	assert.Equal(t, before, ids(tr.InOrder()))
	after := tr.InOrder()
	for i := range beforeOrder {
		assert.Equal(t, beforeOrder[i].Low(), after[i].Low(), "in-order low at %d", i)
	}
}

func TestTree_HeightStaysLogarithmic(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	// ascending keys degenerate an unbalanced BST into a list
	for i := 0; i < 1024; i++ {
		tr.Insert(mustNew(t, f, float64(i), float64(i)+1))
	}
	require.NoError(t, tr.CheckInvariants())
	if tr.Height() > tr.MaxHeight() {
		t.Errorf("Height() = %d exceeds red-black bound %d", tr.Height(), tr.MaxHeight())
	}
}

func TestTree_ArenaReusesFreedNodes(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	a := mustNew(t, f, 0, 1)
	b := mustNew(t, f, 2, 3)
	tr.Insert(a)
	tr.Insert(b)
	arena := len(tr.nodes)

	tr.Delete(a)
	tr.Insert(mustNew(t, f, 4, 5))
	assert.Equal(t, arena, len(tr.nodes), "freed slot should be reused")
	require.NoError(t, tr.CheckInvariants())
}

// TestTree_RandomizedAgainstOracle drives random insert/delete sequences and
// checks every invariant plus query results against a linear scan.
func TestTree_RandomizedAgainstOracle(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42, 1234} {
		rng := rand.New(rand.NewSource(seed))
		f := NewFactory()
		tr := NewTree()
		live := make(map[ID]Interval)
		var order []ID // insertion order, for picking deletion victims

		for step := 0; step < 2000; step++ {
			if len(live) == 0 || rng.Float64() < 0.6 {
				// small key space forces many equal keys
				lo := float64(rng.Intn(200))
				iv := mustNew(t, f, lo, lo+float64(rng.Intn(40)))
				tr.Insert(iv)
				live[iv.ID()] = iv
				order = append(order, iv.ID())
			} else {
				idx := rng.Intn(len(order))
				victim := live[order[idx]]
				order = append(order[:idx], order[idx+1:]...)
				delete(live, victim.ID())
				if !tr.Delete(victim) {
					t.Fatalf("seed %d step %d: Delete(%v) missed a live interval", seed, step, victim)
				}
			}

			if step%50 == 0 {
				if err := tr.CheckInvariants(); err != nil {
					t.Fatalf("seed %d step %d: %v", seed, step, err)
				}
			}
			if tr.Len() != len(live) {
				t.Fatalf("seed %d step %d: Len() = %d, want %d", seed, step, tr.Len(), len(live))
			}

			qLow := float64(rng.Intn(260) - 10)
			qHigh := qLow + float64(rng.Intn(30))
			got := ids(tr.FindAllIntersections(qLow, qHigh))
			want := oracle(live, qLow, qHigh)
			if len(got) != len(want) {
				t.Fatalf("seed %d step %d: query [%g,%g] got %d matches, want %d",
					seed, step, qLow, qHigh, len(got), len(want))
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("seed %d step %d: query [%g,%g] got %v, want %v", seed, step, qLow, qHigh, got, want)
				}
			}
		}
		require.NoError(t, tr.CheckInvariants())

		// drain completely; the tree must stay valid down to empty
		for _, id := range order {
			require.True(t, tr.Delete(live[id]))
		}
		require.NoError(t, tr.CheckInvariants())
		assert.Equal(t, 0, tr.Len())
	}
}

func TestTree_CheckInvariantsDetectsCorruption(t *testing.T) {
	f := NewFactory()
	tr := NewTree()
	for i := 0; i < 8; i++ {
		tr.Insert(mustNew(t, f, float64(i), float64(i)+2))
	}
	require.NoError(t, tr.CheckInvariants())

	tr.nodes[tr.root].maxHigh = -1
	assert.Error(t, tr.CheckInvariants(), "stale augmentation must be reported")
	tr.refresh(tr.root)
	require.NoError(t, tr.CheckInvariants())

	tr.nodes[tr.root].color = red
	assert.Error(t, tr.CheckInvariants(), "red root must be reported")
}
