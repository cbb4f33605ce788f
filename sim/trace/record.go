// Package trace records what happened during a radio simulation: every
// dispatched event and every frame reception outcome.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// EventRecord captures one dispatched event.
type EventRecord struct {
	Clock    int64
	EventID  uint64
	Priority string
}

// ReceptionRecord captures how one frame reception ended at one receiver.
type ReceptionRecord struct {
	Clock    int64
	Receiver string
	Source   string
	SignalID uint64
	Outcome  string
	SINRDb   float64 // minimum SINR over the frame; 0 when the receiver never locked
}
