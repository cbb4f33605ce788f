package sim

import (
	"math"

	"github.com/inference-sim/radio-sim/sim/interval"
)

// NodeID identifies a radio node.
type NodeID string

// ReceptionOutcome classifies how a frame reception ended.
type ReceptionOutcome string

const (
	OutcomeDelivered ReceptionOutcome = "delivered" // locked and SINR stayed above threshold
	OutcomeCollided  ReceptionOutcome = "collided"  // locked but SINR dropped below threshold
	OutcomeBusy      ReceptionOutcome = "busy"      // receiver already locked on another frame
	OutcomeDeaf      ReceptionOutcome = "deaf"      // receiver was transmitting (half duplex)
	OutcomeAborted   ReceptionOutcome = "aborted"   // receiver started transmitting or left mid-frame
)

// NodeStats counts per-node radio activity.
type NodeStats struct {
	FramesSent      int
	FramesDelivered int
	FramesCollided  int
	FramesMissed    int // busy, deaf or aborted
	TxDropped       int // transmissions refused because the radio was busy or off
}

// Node is a half-duplex radio with a position, a transmit power and a set of
// receive bands.
type Node struct {
	ID         NodeID
	Position   Position
	TxPowerDbm float64
	Bands      []interval.Interval
	Alive      bool

	// Transmitting is the signal this node has on the air, or nil.
	Transmitting *Signal

	// incoming holds the power (mW) of every signal currently reaching the node.
	incoming map[SignalID]float64
	// locked is the frame being decoded, or nil.
	locked        *Signal
	lockedPowerMw float64
	minSINRDb     float64

	Stats NodeStats
}

// NewNode creates a node that is not yet alive; a BirthEvent brings it up.
func NewNode(id NodeID, pos Position, txPowerDbm float64, bands []interval.Interval) *Node {
	return &Node{
		ID:         id,
		Position:   pos,
		TxPowerDbm: txPowerDbm,
		Bands:      bands,
		incoming:   make(map[SignalID]float64),
	}
}

// Locked returns the frame being decoded, or nil.
func (n *Node) Locked() *Signal {
	return n.locked
}

// IncomingCount returns the number of signals currently reaching the node.
func (n *Node) IncomingCount() int {
	return len(n.incoming)
}

// interferenceMw sums the power of every incoming signal except exclude.
func (n *Node) interferenceMw(exclude SignalID) float64 {
	var sum float64
	for id, mw := range n.incoming {
		if id != exclude {
			sum += mw
		}
	}
	return sum
}

// sinrDb is the SINR of a signal of powerMw against everything else arriving.
func (n *Node) sinrDb(sig SignalID, powerMw, noiseFloorMw float64) float64 {
	return MwToDbm(powerMw) - MwToDbm(noiseFloorMw+n.interferenceMw(sig))
}

func (n *Node) addIncoming(sig SignalID, powerMw, noiseFloorMw float64) {
	n.incoming[sig] = powerMw
	n.refreshSINR(noiseFloorMw)
}

func (n *Node) removeIncoming(sig SignalID, noiseFloorMw float64) {
	delete(n.incoming, sig)
	n.refreshSINR(noiseFloorMw)
}

// refreshSINR lowers the locked frame's minimum SINR if interference grew.
func (n *Node) refreshSINR(noiseFloorMw float64) {
	if n.locked == nil {
		return
	}
	n.minSINRDb = math.Min(n.minSINRDb, n.sinrDb(n.locked.ID, n.lockedPowerMw, noiseFloorMw))
}

func (n *Node) lock(sig *Signal, powerMw, noiseFloorMw float64) {
	n.locked = sig
	n.lockedPowerMw = powerMw
	n.minSINRDb = n.sinrDb(sig.ID, powerMw, noiseFloorMw)
}

func (n *Node) unlock() {
	n.locked = nil
	n.lockedPowerMw = 0
	n.minSINRDb = 0
}

// clearRadio forgets all incoming energy and any frame in progress.
func (n *Node) clearRadio() {
	n.unlock()
	clear(n.incoming)
}
