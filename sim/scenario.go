package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/radio-sim/sim/interval"
	"github.com/inference-sim/radio-sim/sim/observe"
	"github.com/inference-sim/radio-sim/sim/trace"
)

// Scenario describes a complete simulation run, loadable from a YAML file.
// Times are in ticks (nanoseconds), frequencies in Hz, powers in dBm.
type Scenario struct {
	Seed              int64              `yaml:"seed"`
	Horizon           int64              `yaml:"horizon"`
	MilestoneInterval int64              `yaml:"milestone_interval"`
	Propagation       PropagationConfig  `yaml:"propagation"`
	Reception         ReceptionConfig    `yaml:"reception"`
	Nodes             []NodeSpec         `yaml:"nodes"`
	Transmissions     []TransmissionSpec `yaml:"transmissions"`
	Traffic           []TrafficSpec      `yaml:"traffic"`
}

// BandSpec is a frequency interval given either as low/high edges or as a
// center frequency and bandwidth. A non-zero bandwidth selects the second form.
type BandSpec struct {
	Low       float64 `yaml:"low,omitempty"`
	High      float64 `yaml:"high,omitempty"`
	Center    float64 `yaml:"center,omitempty"`
	Bandwidth float64 `yaml:"bandwidth,omitempty"`
	PSD       float64 `yaml:"psd,omitempty"`
}

// Waypoint moves a node to a new position at a given time.
type Waypoint struct {
	At int64   `yaml:"at"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
	Z  float64 `yaml:"z,omitempty"`
}

// NodeSpec describes one radio node.
type NodeSpec struct {
	ID          string     `yaml:"id"`
	Birth       int64      `yaml:"birth"`
	BirthJitter int64      `yaml:"birth_jitter"` // birth drawn from [birth, birth+jitter)
	Leave       *int64     `yaml:"leave"`        // nil: stays until the end
	Position    Position   `yaml:"position"`
	TxPowerDbm  float64    `yaml:"tx_power_dbm"`
	Bands       []BandSpec `yaml:"bands"`
	Waypoints   []Waypoint `yaml:"waypoints"`
}

// TransmissionSpec is one explicitly scheduled transmission.
type TransmissionSpec struct {
	Node     string   `yaml:"node"`
	At       int64    `yaml:"at"`
	Duration int64    `yaml:"duration"`
	Band     BandSpec `yaml:",inline"`
	Frame    *bool    `yaml:"frame"`     // nil means true
	CancelAt *int64   `yaml:"cancel_at"` // cancel before it starts
}

// IsFrame reports whether the transmission carries a decodable frame.
func (t TransmissionSpec) IsFrame() bool {
	return t.Frame == nil || *t.Frame
}

// TrafficSpec generates Poisson frame arrivals for one node.
type TrafficSpec struct {
	Node     string   `yaml:"node"`
	Start    int64    `yaml:"start"`
	Rate     float64  `yaml:"rate"` // frames per second
	Duration int64    `yaml:"duration"`
	Band     BandSpec `yaml:",inline"`
	Count    int      `yaml:"count"` // 0: until the horizon
}

// LoadScenario reads and parses a YAML scenario file. Reception parameters
// absent from the file keep their defaults. Unknown keys are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a YAML scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	scn := Scenario{Reception: DefaultReceptionConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scn); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &scn, nil
}

func (b BandSpec) validate() error {
	for _, v := range []float64{b.Low, b.High, b.Center, b.Bandwidth, b.PSD} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("band values must be finite")
		}
	}
	if b.Bandwidth != 0 {
		if b.Bandwidth < 0 {
			return fmt.Errorf("bandwidth must be > 0, got %g", b.Bandwidth)
		}
		if b.Low != 0 || b.High != 0 {
			return fmt.Errorf("band sets both low/high and center/bandwidth")
		}
		if b.Center-b.Bandwidth/2 <= 0 {
			return fmt.Errorf("band must lie above 0 Hz, got center %g bandwidth %g", b.Center, b.Bandwidth)
		}
		return nil
	}
	if b.High < b.Low {
		return fmt.Errorf("band high %g < low %g", b.High, b.Low)
	}
	if b.Low <= 0 {
		return fmt.Errorf("band must lie above 0 Hz, got low %g", b.Low)
	}
	return nil
}

func (b BandSpec) width() float64 {
	if b.Bandwidth != 0 {
		return b.Bandwidth
	}
	return b.High - b.Low
}

// interval turns the band into a frequency interval issued by f.
func (b BandSpec) interval(f *interval.Factory) (interval.Interval, error) {
	if b.Bandwidth != 0 {
		return f.NewBand(b.Center, b.Bandwidth, b.PSD)
	}
	return f.NewFrequency(b.Low, b.High, (b.Low+b.High)/2, b.PSD)
}

// Validate checks references, time ranges and band bounds across the scenario.
func (s *Scenario) Validate() error {
	if s.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative, got %d", s.Horizon)
	}
	if s.MilestoneInterval < 0 {
		return fmt.Errorf("milestone_interval must be non-negative, got %d", s.MilestoneInterval)
	}
	if _, err := NewPropagationModel(s.Propagation); err != nil {
		return err
	}

	known := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id must not be empty", i)
		}
		if known[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate node id %q", i, n.ID)
		}
		known[n.ID] = true
		if n.Birth < 0 {
			return fmt.Errorf("node %s: birth must be non-negative, got %d", n.ID, n.Birth)
		}
		if n.BirthJitter < 0 {
			return fmt.Errorf("node %s: birth_jitter must be non-negative, got %d", n.ID, n.BirthJitter)
		}
		if n.Leave != nil && *n.Leave < n.Birth+n.BirthJitter {
			return fmt.Errorf("node %s: leave %d is before birth %d (+%d jitter)", n.ID, *n.Leave, n.Birth, n.BirthJitter)
		}
		for j, b := range n.Bands {
			if err := b.validate(); err != nil {
				return fmt.Errorf("node %s bands[%d]: %w", n.ID, j, err)
			}
			if b.width() == 0 {
				logrus.Warnf("node %s bands[%d] has zero width and only hears zero-width signals", n.ID, j)
			}
		}
		for j, w := range n.Waypoints {
			if w.At < 0 {
				return fmt.Errorf("node %s waypoints[%d]: time must be non-negative, got %d", n.ID, j, w.At)
			}
		}
		if len(n.Bands) == 0 {
			logrus.Warnf("node %s has no receive bands and will hear nothing", n.ID)
		}
	}

	for i, t := range s.Transmissions {
		if !known[t.Node] {
			return fmt.Errorf("transmissions[%d]: unknown node %q", i, t.Node)
		}
		if t.At < 0 {
			return fmt.Errorf("transmissions[%d]: at must be non-negative, got %d", i, t.At)
		}
		if t.Duration <= 0 {
			return fmt.Errorf("transmissions[%d]: duration must be positive, got %d", i, t.Duration)
		}
		if err := t.Band.validate(); err != nil {
			return fmt.Errorf("transmissions[%d]: %w", i, err)
		}
		if t.CancelAt != nil && (*t.CancelAt < 0 || *t.CancelAt >= t.At) {
			return fmt.Errorf("transmissions[%d]: cancel_at %d must be in [0, %d)", i, *t.CancelAt, t.At)
		}
		if s.Horizon > 0 && t.At >= s.Horizon {
			logrus.Warnf("transmissions[%d] at %d is beyond the horizon %d and will never start", i, t.At, s.Horizon)
		}
	}

	for i, t := range s.Traffic {
		if !known[t.Node] {
			return fmt.Errorf("traffic[%d]: unknown node %q", i, t.Node)
		}
		if t.Start < 0 {
			return fmt.Errorf("traffic[%d]: start must be non-negative, got %d", i, t.Start)
		}
		if t.Rate <= 0 || math.IsNaN(t.Rate) || math.IsInf(t.Rate, 0) {
			return fmt.Errorf("traffic[%d]: rate must be positive, got %g", i, t.Rate)
		}
		if t.Rate > TicksPerSecond {
			return fmt.Errorf("traffic[%d]: rate %g exceeds one frame per tick", i, t.Rate)
		}
		if t.Duration <= 0 {
			return fmt.Errorf("traffic[%d]: duration must be positive, got %d", i, t.Duration)
		}
		if t.Count < 0 {
			return fmt.Errorf("traffic[%d]: count must be non-negative, got %d", i, t.Count)
		}
		if t.Count == 0 && s.Horizon == 0 {
			return fmt.Errorf("traffic[%d]: unbounded traffic needs a count or a horizon", i)
		}
		if err := t.Band.validate(); err != nil {
			return fmt.Errorf("traffic[%d]: %w", i, err)
		}
	}
	return nil
}

// BuildOptions carries the run settings that do not belong in a scenario file.
type BuildOptions struct {
	TraceLevel trace.TraceLevel
	Collector  *observe.Collector
}

// BuildSimulator validates scn and creates a Simulator with every node,
// waypoint, departure, transmission and traffic arrival scheduled.
func BuildSimulator(scn *Scenario, opts BuildOptions) (*Simulator, error) {
	if err := scn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	s, err := NewSimulator(SimConfig{
		Horizon:           scn.Horizon,
		MilestoneInterval: scn.MilestoneInterval,
		Seed:              scn.Seed,
		Propagation:       scn.Propagation,
		Reception:         scn.Reception,
		TraceLevel:        opts.TraceLevel,
		Collector:         opts.Collector,
	})
	if err != nil {
		return nil, err
	}

	for _, n := range scn.Nodes {
		if err := s.addNodeSpec(n); err != nil {
			return nil, err
		}
	}
	for i, t := range scn.Transmissions {
		if err := s.addTransmissionSpec(t); err != nil {
			return nil, fmt.Errorf("transmissions[%d]: %w", i, err)
		}
	}
	for i, t := range scn.Traffic {
		if err := s.addTrafficSpec(t); err != nil {
			return nil, fmt.Errorf("traffic[%d]: %w", i, err)
		}
	}
	return s, nil
}

func (s *Simulator) addNodeSpec(spec NodeSpec) error {
	bands := make([]interval.Interval, 0, len(spec.Bands))
	for j, b := range spec.Bands {
		iv, err := b.interval(s.Factory)
		if err != nil {
			return fmt.Errorf("node %s bands[%d]: %w", spec.ID, j, err)
		}
		bands = append(bands, iv)
	}
	id := NodeID(spec.ID)
	birth := spec.Birth
	if spec.BirthJitter > 0 {
		birth += s.RNG.ForSubsystem(SubsystemScenario).Int63n(spec.BirthJitter)
	}
	if _, err := s.AddNode(id, spec.Position, spec.TxPowerDbm, bands, birth); err != nil {
		return err
	}
	for _, w := range spec.Waypoints {
		if err := s.ScheduleMobility(id, w.At, Position{X: w.X, Y: w.Y, Z: w.Z}); err != nil {
			return err
		}
	}
	if spec.Leave != nil {
		if _, err := s.ScheduleLeave(id, *spec.Leave); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) addTransmissionSpec(spec TransmissionSpec) error {
	iv, err := spec.Band.interval(s.Factory)
	if err != nil {
		return err
	}
	id, err := s.ScheduleTransmission(NodeID(spec.Node), spec.At, spec.Duration, []interval.Interval{iv}, spec.IsFrame())
	if err != nil {
		return err
	}
	if spec.CancelAt != nil {
		s.Scheduler.AddEvent(NewCallbackEvent(*spec.CancelAt, "cancel", func(sim *Simulator) {
			sim.CancelCallback(id)
		}, s.Scheduler.NewEventID()))
	}
	return nil
}

// addTrafficSpec schedules Poisson arrivals drawn from the node's traffic
// RNG stream, stopping at Count frames or at the horizon. Consecutive
// arrivals are at least one tick apart.
func (s *Simulator) addTrafficSpec(spec TrafficSpec) error {
	iv, err := spec.Band.interval(s.Factory)
	if err != nil {
		return err
	}
	node := NodeID(spec.Node)
	rng := s.RNG.ForSubsystem(SubsystemTraffic(node))
	at := spec.Start
	for i := 0; spec.Count == 0 || i < spec.Count; i++ {
		gap := rng.ExpFloat64() / spec.Rate * TicksPerSecond
		if gap >= math.MaxInt64 {
			break
		}
		step := max(1, int64(gap))
		if step > math.MaxInt64-at {
			break // past any representable time
		}
		at += step
		if s.Horizon > 0 && at >= s.Horizon {
			break
		}
		if _, err := s.ScheduleTransmission(node, at, spec.Duration, []interval.Interval{iv}, true); err != nil {
			return err
		}
	}
	return nil
}
