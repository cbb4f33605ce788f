// Package interval provides frequency intervals and an augmented red-black
// interval index answering "which intervals overlap [low, high]" queries.
//
// Intervals are immutable values created by a Factory, which owns the identity
// counter. The index stores interval values in an arena of nodes addressed by
// integer handles, so nothing outside the index can observe or invalidate a node.
package interval

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned by Factory constructors when high < low or a bound
// is not a finite number.
var ErrMalformed = errors.New("malformed interval")

// ID identifies an interval. Zero means "no interval".
type ID uint64

// Handle indexes an owner-side table (receiver table, waveform table).
type Handle int

// NoHandle marks an interval that is not bound to an owner.
const NoHandle Handle = -1

// Kind is the closed set of interval variants.
type Kind uint8

const (
	KindPlain     Kind = iota // bare [low, high]
	KindFrequency             // carries a center frequency and power spectral density
	KindReceiver              // frequency interval bound to a receiver
	KindWaveform              // frequency interval bound to a transmitted waveform
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindFrequency:
		return "frequency"
	case KindReceiver:
		return "receiver"
	case KindWaveform:
		return "waveform"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Interval is an inclusive [Low, High] range with a unique identity.
// The zero value is not a valid interval; use a Factory.
type Interval struct {
	id     ID
	low    float64
	high   float64
	kind   Kind
	center float64
	psd    float64 // dBm/Hz
	owner  Handle
}

func (iv Interval) ID() ID          { return iv.id }
func (iv Interval) Low() float64    { return iv.low }
func (iv Interval) High() float64   { return iv.high }
func (iv Interval) Kind() Kind      { return iv.kind }
func (iv Interval) Center() float64 { return iv.center }
func (iv Interval) PSD() float64    { return iv.psd }
func (iv Interval) Owner() Handle   { return iv.owner }

// Width returns High - Low.
func (iv Interval) Width() float64 { return iv.high - iv.low }

func (iv Interval) String() string {
	return fmt.Sprintf("%s#%d[%g,%g]", iv.kind, iv.id, iv.low, iv.high)
}

// Overlaps reports whether the inclusive ranges of a and b intersect.
func Overlaps(a, b Interval) bool {
	return a.low <= b.high && a.high >= b.low
}

// OverlapWidth returns the width of the intersection of a and b, or 0 if they
// are disjoint or only touch at a point.
func OverlapWidth(a, b Interval) float64 {
	lo := math.Max(a.low, b.low)
	hi := math.Min(a.high, b.high)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Factory assigns interval identities. Each simulator owns one, which keeps
// identity assignment deterministic and independent across tests.
//
// Thread-safety: NOT thread-safe.
type Factory struct {
	next ID
}

// NewFactory returns a Factory whose first identity is 1.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) nextID() ID {
	f.next++
	return f.next
}

// Issued returns the number of identities handed out so far.
func (f *Factory) Issued() uint64 {
	return uint64(f.next)
}

func validBounds(low, high float64) error {
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return fmt.Errorf("%w: non-finite bound [%g, %g]", ErrMalformed, low, high)
	}
	if high < low {
		return fmt.Errorf("%w: high %g < low %g", ErrMalformed, high, low)
	}
	return nil
}

// New creates a plain interval.
func (f *Factory) New(low, high float64) (Interval, error) {
	if err := validBounds(low, high); err != nil {
		return Interval{}, err
	}
	return Interval{id: f.nextID(), low: low, high: high, kind: KindPlain, owner: NoHandle}, nil
}

// NewFrequency creates a frequency interval with an explicit center and PSD.
func (f *Factory) NewFrequency(low, high, center, psd float64) (Interval, error) {
	if err := validBounds(low, high); err != nil {
		return Interval{}, err
	}
	return Interval{
		id:     f.nextID(),
		low:    low,
		high:   high,
		kind:   KindFrequency,
		center: center,
		psd:    psd,
		owner:  NoHandle,
	}, nil
}

// NewBand creates a frequency interval centered on center with the given
// bandwidth. A zero bandwidth yields a single-frequency interval.
func (f *Factory) NewBand(center, bandwidth, psd float64) (Interval, error) {
	if bandwidth < 0 || math.IsNaN(bandwidth) {
		return Interval{}, fmt.Errorf("%w: negative bandwidth %g", ErrMalformed, bandwidth)
	}
	half := bandwidth / 2
	return f.NewFrequency(center-half, center+half, center, psd)
}

// Clone returns an independent copy of iv with a fresh identity.
func (f *Factory) Clone(iv Interval) Interval {
	iv.id = f.nextID()
	return iv
}

// BindReceiver returns a receiver-bound copy of iv with a fresh identity.
func (f *Factory) BindReceiver(iv Interval, h Handle) Interval {
	iv = f.bind(iv, h)
	iv.kind = KindReceiver
	return iv
}

// BindWaveform returns a waveform-bound copy of iv with a fresh identity.
func (f *Factory) BindWaveform(iv Interval, h Handle) Interval {
	iv = f.bind(iv, h)
	iv.kind = KindWaveform
	return iv
}

func (f *Factory) bind(iv Interval, h Handle) Interval {
	if iv.kind == KindPlain {
		iv.center = (iv.low + iv.high) / 2
	}
	iv.owner = h
	iv.id = f.nextID()
	return iv
}
