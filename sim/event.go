package sim

import "fmt"

// Priority orders events that share a timestamp. Lower values are processed
// first. The set is closed; a priority never changes after an event is built.
type Priority int

const (
	PriorityBirth Priority = iota
	PriorityMobility
	PriorityTxEnd
	PriorityRxEnd
	PriorityRxBegin
	PriorityRxSignalBegin
	PriorityTxSignalEnd
	PriorityRxSignalEnd
	PriorityCallback
	PriorityMilestone
	PriorityQuit

	numPriorities
)

var priorityNames = [numPriorities]string{
	PriorityBirth:         "Birth",
	PriorityMobility:      "Mobility",
	PriorityTxEnd:         "TxEnd",
	PriorityRxEnd:         "RxEnd",
	PriorityRxBegin:       "RxBegin",
	PriorityRxSignalBegin: "RxSignalBegin",
	PriorityTxSignalEnd:   "TxSignalEnd",
	PriorityRxSignalEnd:   "RxSignalEnd",
	PriorityCallback:      "Callback",
	PriorityMilestone:     "Milestone",
	PriorityQuit:          "Quit",
}

func (p Priority) String() string {
	if p >= 0 && p < numPriorities {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// AllPriorities lists every priority class in processing order.
func AllPriorities() []Priority {
	out := make([]Priority, 0, numPriorities)
	for p := Priority(0); p < numPriorities; p++ {
		out = append(out, p)
	}
	return out
}

// Event defines the interface for all simulation events.
// Each event carries an immutable (timestamp, priority, id) triple and an
// Execute method that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	EventID() uint64
	Priority() Priority
	Execute(*Simulator)
}

// BaseEvent provides the ordering fields shared by all events.
type BaseEvent struct {
	timestamp int64
	eventID   uint64
	priority  Priority
}

func newBaseEvent(timestamp int64, priority Priority, eventID uint64) BaseEvent {
	return BaseEvent{
		timestamp: timestamp,
		eventID:   eventID,
		priority:  priority,
	}
}

func (e *BaseEvent) Timestamp() int64 {
	return e.timestamp
}

func (e *BaseEvent) EventID() uint64 {
	return e.eventID
}

func (e *BaseEvent) Priority() Priority {
	return e.priority
}

// Less orders events by timestamp, then priority, then event ID. Event IDs are
// unique, so two distinct events never compare equal.
func Less(a, b Event) bool {
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	if a.Priority() != b.Priority() {
		return a.Priority() < b.Priority()
	}
	return a.EventID() < b.EventID()
}

// BirthEvent brings a node onto the air: its receive bands are registered
// with the spectrum.
type BirthEvent struct {
	BaseEvent
	Node NodeID
}

func NewBirthEvent(timestamp int64, node NodeID, eventID uint64) *BirthEvent {
	return &BirthEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityBirth, eventID),
		Node:      node,
	}
}

func (e *BirthEvent) Execute(sim *Simulator) {
	sim.handleBirth(e)
}

// MobilityEvent moves a node to a new position.
type MobilityEvent struct {
	BaseEvent
	Node     NodeID
	Position Position
}

func NewMobilityEvent(timestamp int64, node NodeID, pos Position, eventID uint64) *MobilityEvent {
	return &MobilityEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityMobility, eventID),
		Node:      node,
		Position:  pos,
	}
}

func (e *MobilityEvent) Execute(sim *Simulator) {
	sim.handleMobility(e)
}

// TxEndEvent tells a transmitter its frame has left the air.
type TxEndEvent struct {
	BaseEvent
	Node   NodeID
	Signal *Signal
}

func NewTxEndEvent(timestamp int64, node NodeID, sig *Signal, eventID uint64) *TxEndEvent {
	return &TxEndEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityTxEnd, eventID),
		Node:      node,
		Signal:    sig,
	}
}

func (e *TxEndEvent) Execute(sim *Simulator) {
	sim.handleTxEnd(e)
}

// RxEndEvent closes a frame reception at a receiver.
type RxEndEvent struct {
	BaseEvent
	Receiver NodeID
	Signal   *Signal
}

func NewRxEndEvent(timestamp int64, rx NodeID, sig *Signal, eventID uint64) *RxEndEvent {
	return &RxEndEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityRxEnd, eventID),
		Receiver:  rx,
		Signal:    sig,
	}
}

func (e *RxEndEvent) Execute(sim *Simulator) {
	sim.handleRxEnd(e)
}

// RxBeginEvent offers a frame to a receiver.
type RxBeginEvent struct {
	BaseEvent
	Receiver NodeID
	Signal   *Signal
	PowerDbm float64
}

func NewRxBeginEvent(timestamp int64, rx NodeID, sig *Signal, powerDbm float64, eventID uint64) *RxBeginEvent {
	return &RxBeginEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityRxBegin, eventID),
		Receiver:  rx,
		Signal:    sig,
		PowerDbm:  powerDbm,
	}
}

func (e *RxBeginEvent) Execute(sim *Simulator) {
	sim.handleRxBegin(e)
}

// RxSignalBeginEvent marks signal energy arriving at a receiver.
type RxSignalBeginEvent struct {
	BaseEvent
	Receiver NodeID
	Signal   *Signal
	PowerDbm float64
}

func NewRxSignalBeginEvent(timestamp int64, rx NodeID, sig *Signal, powerDbm float64, eventID uint64) *RxSignalBeginEvent {
	return &RxSignalBeginEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityRxSignalBegin, eventID),
		Receiver:  rx,
		Signal:    sig,
		PowerDbm:  powerDbm,
	}
}

func (e *RxSignalBeginEvent) Execute(sim *Simulator) {
	sim.handleRxSignalBegin(e)
}

// TxSignalEndEvent marks the end of a transmission on the air.
type TxSignalEndEvent struct {
	BaseEvent
	Signal *Signal
}

func NewTxSignalEndEvent(timestamp int64, sig *Signal, eventID uint64) *TxSignalEndEvent {
	return &TxSignalEndEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityTxSignalEnd, eventID),
		Signal:    sig,
	}
}

func (e *TxSignalEndEvent) Execute(sim *Simulator) {
	sim.handleTxSignalEnd(e)
}

// RxSignalEndEvent marks signal energy leaving a receiver.
type RxSignalEndEvent struct {
	BaseEvent
	Receiver NodeID
	Signal   *Signal
}

func NewRxSignalEndEvent(timestamp int64, rx NodeID, sig *Signal, eventID uint64) *RxSignalEndEvent {
	return &RxSignalEndEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityRxSignalEnd, eventID),
		Receiver:  rx,
		Signal:    sig,
	}
}

func (e *RxSignalEndEvent) Execute(sim *Simulator) {
	sim.handleRxSignalEnd(e)
}

// CallbackEvent runs an arbitrary function. It is the only event class that
// can be cancelled, via Scheduler.DeleteEvent.
type CallbackEvent struct {
	BaseEvent
	Name string
	Fn   func(*Simulator)
}

func NewCallbackEvent(timestamp int64, name string, fn func(*Simulator), eventID uint64) *CallbackEvent {
	return &CallbackEvent{
		BaseEvent: newBaseEvent(timestamp, PriorityCallback, eventID),
		Name:      name,
		Fn:        fn,
	}
}

func (e *CallbackEvent) Execute(sim *Simulator) {
	if e.Fn != nil {
		e.Fn(sim)
	}
}

// MilestoneEvent logs progress and re-arms itself.
type MilestoneEvent struct {
	BaseEvent
}

func NewMilestoneEvent(timestamp int64, eventID uint64) *MilestoneEvent {
	return &MilestoneEvent{BaseEvent: newBaseEvent(timestamp, PriorityMilestone, eventID)}
}

func (e *MilestoneEvent) Execute(sim *Simulator) {
	sim.handleMilestone(e)
}

// QuitEvent stops the run loop.
type QuitEvent struct {
	BaseEvent
}

func NewQuitEvent(timestamp int64, eventID uint64) *QuitEvent {
	return &QuitEvent{BaseEvent: newBaseEvent(timestamp, PriorityQuit, eventID)}
}

func (e *QuitEvent) Execute(sim *Simulator) {
	sim.handleQuit(e)
}
