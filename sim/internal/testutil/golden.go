// Package testutil provides shared test infrastructure for the radio simulator:
// the golden scenario dataset and float assertion helpers.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_scenarios.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase pairs a scenario file with the metrics it must produce.
type GoldenTestCase struct {
	Name     string        `json:"name"`
	Scenario string        `json:"scenario"` // relative to testdata/
	Metrics  GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected metrics from a golden test case.
type GoldenMetrics struct {
	// Exact match counters
	TransmissionsStarted   int   `json:"transmissions_started"`
	TransmissionsCancelled int   `json:"transmissions_cancelled"`
	FramesSent             int   `json:"frames_sent"`
	FramesDelivered        int   `json:"frames_delivered"`
	FramesCollided         int   `json:"frames_collided"`
	FramesMissed           int   `json:"frames_missed"`
	SimEndedTime           int64 `json:"sim_ended_time"`

	// Derived floating-point values
	DeliveryRatio float64 `json:"delivery_ratio"`
	MinSINRDb     float64 `json:"min_sinr_db"` // over delivered frames, 0 when none
}

// TestdataDir returns the repo-root testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func TestdataDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata")
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(TestdataDir(t), "golden_scenarios.json"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
