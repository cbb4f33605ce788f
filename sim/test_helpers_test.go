package sim

import (
	"bytes"
	"math"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/radio-sim/sim/interval"
	"github.com/inference-sim/radio-sim/sim/trace"
)

const (
	testCenterHz  = 2.4e9
	testBandwidth = 2e6
)

// newTestSimulator returns a simulator with default reception parameters,
// free-space propagation without delay, and full tracing.
func newTestSimulator(t *testing.T, horizon int64) *Simulator {
	t.Helper()
	s, err := NewSimulator(SimConfig{
		Horizon:    horizon,
		Reception:  DefaultReceptionConfig(),
		TraceLevel: trace.TraceLevelEvents,
	})
	require.NoError(t, err)
	return s
}

// testBand returns one 2 MHz channel at 2.4 GHz issued by s's factory.
func testBand(t *testing.T, s *Simulator) []interval.Interval {
	t.Helper()
	iv, err := s.Factory.NewBand(testCenterHz, testBandwidth, 0)
	require.NoError(t, err)
	return []interval.Interval{iv}
}

// addTestNode adds a 0 dBm node born at time 0 listening on the test band.
func addTestNode(t *testing.T, s *Simulator, id NodeID, x, y float64) *Node {
	t.Helper()
	n, err := s.AddNode(id, Position{X: x, Y: y}, 0, testBand(t, s), 0)
	require.NoError(t, err)
	return n
}

// transmitTest schedules a frame from src on the test band.
func transmitTest(t *testing.T, s *Simulator, src NodeID, at, duration int64) uint64 {
	t.Helper()
	id, err := s.ScheduleTransmission(src, at, duration, testBand(t, s), true)
	require.NoError(t, err)
	return id
}

// freeSpaceRxDbm is the power of a 0 dBm test-band signal at distanceM.
func freeSpaceRxDbm(distanceM float64) float64 {
	return -(20*math.Log10(distanceM) + 20*math.Log10(testCenterHz) - 147.55)
}

// priorityByName maps Priority.String() back to the Priority.
func priorityByName() map[string]Priority {
	out := make(map[string]Priority)
	for _, p := range AllPriorities() {
		out[p.String()] = p
	}
	return out
}

// captureLogOutput runs fn at warning level and returns what was logged.
func captureLogOutput(fn func()) string {
	var buf bytes.Buffer
	origOutput := logrus.StandardLogger().Out
	origLevel := logrus.GetLevel()
	logrus.SetOutput(&buf)
	logrus.SetLevel(logrus.WarnLevel)
	defer func() {
		if origOutput != nil {
			logrus.SetOutput(origOutput)
		} else {
			logrus.SetOutput(os.Stderr)
		}
		logrus.SetLevel(origLevel)
	}()
	fn()
	return buf.String()
}
