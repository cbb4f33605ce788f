// Tracks run-wide counters: events dispatched, transmissions and frame outcomes.

package sim

import (
	"fmt"
	"io"
	"sort"
)

// Metrics aggregates statistics about one simulation run for final reporting.
type Metrics struct {
	EventsDispatched    int              // events executed (suppressed callbacks excluded)
	EventsByPriority    map[Priority]int // dispatched count per priority class
	SuppressedCallbacks int              // cancelled callbacks dropped at retrieval

	TransmissionsStarted   int
	TransmissionsCancelled int
	TransmissionsDropped   int // refused because the source was off or already on the air

	FramesSent      int
	FramesDelivered int
	FramesCollided  int
	FramesMissed    int // busy, deaf or aborted receptions

	PeakQueueDepth    int
	PeakActiveSignals int
	SimEndedTime      int64

	PerNode map[NodeID]NodeStats
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsByPriority: make(map[Priority]int),
		PerNode:          make(map[NodeID]NodeStats),
	}
}

// recordOutcome bumps the run-wide frame counter for outcome.
func (m *Metrics) recordOutcome(outcome ReceptionOutcome) {
	switch outcome {
	case OutcomeDelivered:
		m.FramesDelivered++
	case OutcomeCollided:
		m.FramesCollided++
	default:
		m.FramesMissed++
	}
}

// DeliveryRatio is delivered over locked frames (delivered + collided), or 0
// when nothing was locked.
func (m *Metrics) DeliveryRatio() float64 {
	locked := m.FramesDelivered + m.FramesCollided
	if locked == 0 {
		return 0
	}
	return float64(m.FramesDelivered) / float64(locked)
}

// Print writes the aggregated metrics to w at the end of the simulation.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulation Ended     : %d ticks\n", m.SimEndedTime)
	fmt.Fprintf(w, "Events Dispatched    : %d\n", m.EventsDispatched)
	for _, p := range AllPriorities() {
		if n := m.EventsByPriority[p]; n > 0 {
			fmt.Fprintf(w, "  %-18s : %d\n", p, n)
		}
	}
	fmt.Fprintf(w, "Suppressed Callbacks : %d\n", m.SuppressedCallbacks)
	fmt.Fprintf(w, "Peak Queue Depth     : %d\n", m.PeakQueueDepth)
	fmt.Fprintf(w, "Transmissions        : %d started, %d cancelled, %d dropped\n",
		m.TransmissionsStarted, m.TransmissionsCancelled, m.TransmissionsDropped)
	fmt.Fprintf(w, "Peak Active Signals  : %d\n", m.PeakActiveSignals)
	fmt.Fprintf(w, "Frames Sent          : %d\n", m.FramesSent)
	fmt.Fprintf(w, "Frames Delivered     : %d\n", m.FramesDelivered)
	fmt.Fprintf(w, "Frames Collided      : %d\n", m.FramesCollided)
	fmt.Fprintf(w, "Frames Missed        : %d\n", m.FramesMissed)
	if m.FramesDelivered+m.FramesCollided > 0 {
		fmt.Fprintf(w, "Delivery Ratio       : %.3f\n", m.DeliveryRatio())
	}

	if len(m.PerNode) == 0 {
		return
	}
	ids := make([]NodeID, 0, len(m.PerNode))
	for id := range m.PerNode {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fmt.Fprintln(w, "=== Per Node ===")
	for _, id := range ids {
		s := m.PerNode[id]
		fmt.Fprintf(w, "%-12s sent=%d delivered=%d collided=%d missed=%d tx_dropped=%d\n",
			id, s.FramesSent, s.FramesDelivered, s.FramesCollided, s.FramesMissed, s.TxDropped)
	}
}
