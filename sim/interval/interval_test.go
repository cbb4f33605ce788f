package interval

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_IdentitiesAreMonotonicAndUnique(t *testing.T) {
	f := NewFactory()
	a, err := f.New(0, 1)
	require.NoError(t, err)
	b, err := f.New(0, 1)
	require.NoError(t, err)

	assert.Equal(t, ID(1), a.ID())
	assert.Equal(t, ID(2), b.ID())
	assert.Equal(t, uint64(2), f.Issued())
}

func TestFactory_IndependentFactoriesDoNotShareCounters(t *testing.T) {
	f1, f2 := NewFactory(), NewFactory()
	a, _ := f1.New(0, 1)
	b, _ := f2.New(0, 1)
	assert.Equal(t, a.ID(), b.ID())
}

func TestFactory_RejectsMalformedBounds(t *testing.T) {
	f := NewFactory()
	tests := []struct {
		name      string
		low, high float64
	}{
		{"high below low", 10, 5},
		{"NaN low", math.NaN(), 5},
		{"infinite high", 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.New(tt.low, tt.high)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("New(%g, %g) error = %v, want ErrMalformed", tt.low, tt.high, err)
			}
		})
	}
	// rejected constructions consume no identity
	assert.Equal(t, uint64(0), f.Issued())
}

func TestFactory_PointIntervalIsValid(t *testing.T) {
	iv, err := NewFactory().New(7, 7)
	require.NoError(t, err)
	assert.Equal(t, 0.0, iv.Width())
}

func TestFactory_NewBand(t *testing.T) {
	f := NewFactory()
	iv, err := f.NewBand(2.44e9, 20e6, -60)
	require.NoError(t, err)
	assert.Equal(t, KindFrequency, iv.Kind())
	assert.InDelta(t, 2.43e9, iv.Low(), 1)
	assert.InDelta(t, 2.45e9, iv.High(), 1)
	assert.Equal(t, 2.44e9, iv.Center())
	assert.Equal(t, -60.0, iv.PSD())
	assert.Equal(t, NoHandle, iv.Owner())

	_, err = f.NewBand(1e9, -1, 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFactory_CloneGetsFreshIdentity(t *testing.T) {
	f := NewFactory()
	orig, _ := f.NewFrequency(100, 200, 150, -70)
	c := f.Clone(orig)

	assert.NotEqual(t, orig.ID(), c.ID())
	assert.Equal(t, orig.Low(), c.Low())
	assert.Equal(t, orig.High(), c.High())
	assert.Equal(t, orig.Center(), c.Center())
	assert.Equal(t, orig.PSD(), c.PSD())
	assert.Equal(t, orig.Kind(), c.Kind())
}

func TestFactory_Bind(t *testing.T) {
	f := NewFactory()
	plain, _ := f.New(10, 20)

	rx := f.BindReceiver(plain, 3)
	assert.Equal(t, KindReceiver, rx.Kind())
	assert.Equal(t, Handle(3), rx.Owner())
	assert.Equal(t, 15.0, rx.Center(), "plain intervals get a midpoint center when bound")
	assert.NotEqual(t, plain.ID(), rx.ID())

	wf := f.BindWaveform(rx, 9)
	assert.Equal(t, KindWaveform, wf.Kind())
	assert.Equal(t, Handle(9), wf.Owner())
}

func TestOverlaps(t *testing.T) {
	f := NewFactory()
	mk := func(lo, hi float64) Interval {
		iv, err := f.New(lo, hi)
		require.NoError(t, err)
		return iv
	}
	tests := []struct {
		a, b  Interval
		want  bool
		width float64
	}{
		{mk(0, 10), mk(5, 15), true, 5},
		{mk(0, 10), mk(10, 20), true, 0}, // inclusive bounds touch
		{mk(0, 10), mk(11, 20), false, 0},
		{mk(0, 100), mk(20, 30), true, 10},
	}
	for _, tt := range tests {
		if got := Overlaps(tt.a, tt.b); got != tt.want {
			t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := Overlaps(tt.b, tt.a); got != tt.want {
			t.Errorf("Overlaps is not symmetric for %v, %v", tt.a, tt.b)
		}
		if got := OverlapWidth(tt.a, tt.b); got != tt.width {
			t.Errorf("OverlapWidth(%v, %v) = %g, want %g", tt.a, tt.b, got, tt.width)
		}
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "waveform", KindWaveform.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
