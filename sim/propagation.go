package sim

import (
	"fmt"
	"math"
	"sort"
)

// SpeedOfLight in meters per second.
const SpeedOfLight = 299_792_458.0

// TicksPerSecond is the simulation clock resolution (1 tick = 1 ns).
const TicksPerSecond = 1e9

// minDistanceM clamps path-loss distance so co-located nodes stay finite.
const minDistanceM = 1.0

// Position is a point in meters.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z,omitempty"`
}

// Distance returns the euclidean distance to q in meters.
func (p Position) Distance(q Position) float64 {
	return math.Sqrt((p.X-q.X)*(p.X-q.X) + (p.Y-q.Y)*(p.Y-q.Y) + (p.Z-q.Z)*(p.Z-q.Z))
}

// PropagationModel computes the path loss between two points.
// Implementations must be pure: the same inputs always give the same loss.
type PropagationModel interface {
	Name() string
	PathLossDb(distanceM, freqHz float64) float64
}

// FreeSpace is the Friis free-space model.
type FreeSpace struct{}

func (FreeSpace) Name() string { return "free-space" }

// PathLossDb returns 20log10(d) + 20log10(f) - 147.55.
func (FreeSpace) PathLossDb(distanceM, freqHz float64) float64 {
	d := math.Max(distanceM, minDistanceM)
	return 20*math.Log10(d) + 20*math.Log10(freqHz) - 147.55
}

// LogDistance is the log-distance model: ReferenceLossDb at 1 m plus
// 10·Exponent·log10(d). A zero ReferenceLossDb uses free-space loss at 1 m.
type LogDistance struct {
	Exponent        float64
	ReferenceLossDb float64
}

func (LogDistance) Name() string { return "log-distance" }

func (m LogDistance) PathLossDb(distanceM, freqHz float64) float64 {
	d := math.Max(distanceM, minDistanceM)
	ref := m.ReferenceLossDb
	if ref == 0 {
		ref = FreeSpace{}.PathLossDb(minDistanceM, freqHz)
	}
	return ref + 10*m.Exponent*math.Log10(d)
}

// ConstantLoss applies the same loss to every link.
type ConstantLoss struct {
	LossDb float64
}

func (ConstantLoss) Name() string { return "constant" }

func (m ConstantLoss) PathLossDb(_, _ float64) float64 {
	return m.LossDb
}

// PropagationConfig selects and parameterizes a PropagationModel.
type PropagationConfig struct {
	Model           string  `yaml:"model"`
	Exponent        float64 `yaml:"exponent,omitempty"`
	ReferenceLossDb float64 `yaml:"reference_loss_db,omitempty"`
	LossDb          float64 `yaml:"loss_db,omitempty"`
	// Delay enables distance-based propagation delay. When false every link
	// has the minimum delay of one tick.
	Delay bool `yaml:"delay"`
}

// defaultPathLossExponent matches a 3GPP indoor LOS model (dB per decade / 10).
const defaultPathLossExponent = 1.73

var propagationModels = map[string]func(PropagationConfig) PropagationModel{
	"free-space": func(PropagationConfig) PropagationModel { return FreeSpace{} },
	"log-distance": func(cfg PropagationConfig) PropagationModel {
		exp := cfg.Exponent
		if exp == 0 {
			exp = defaultPathLossExponent
		}
		return LogDistance{Exponent: exp, ReferenceLossDb: cfg.ReferenceLossDb}
	},
	"constant": func(cfg PropagationConfig) PropagationModel { return ConstantLoss{LossDb: cfg.LossDb} },
}

// ValidPropagationModels returns the registered model names, sorted.
// The empty name is accepted everywhere and means "free-space".
func ValidPropagationModels() []string {
	names := make([]string, 0, len(propagationModels))
	for name := range propagationModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPropagationModel creates a PropagationModel by name.
func NewPropagationModel(cfg PropagationConfig) (PropagationModel, error) {
	name := cfg.Model
	if name == "" {
		name = "free-space"
	}
	ctor, ok := propagationModels[name]
	if !ok {
		return nil, fmt.Errorf("unknown propagation model %q (valid: %v)", cfg.Model, ValidPropagationModels())
	}
	return ctor(cfg), nil
}

// DbmToMw converts dBm to milliwatts.
func DbmToMw(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// MwToDbm converts milliwatts to dBm. Zero power maps to -Inf.
func MwToDbm(mw float64) float64 {
	return 10 * math.Log10(mw)
}

// delayTicks is the light travel time over distanceM, at least one tick so
// reception always follows the transmission instant.
func delayTicks(distanceM float64) int64 {
	return max(int64(math.Round(distanceM/SpeedOfLight*TicksPerSecond)), 1)
}
