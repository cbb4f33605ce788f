// Package sim provides the core discrete-event simulation engine for radio networks.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: Event types and the (time, priority, id) ordering
//   - scheduler.go: the event heap and callback cancellation
//   - spectrum.go: which receivers hear which transmissions
//   - simulator.go: the event loop and the half-duplex receiver model
//
// # Architecture
//
// The sim package owns the simulation state; supporting code lives in
// sub-packages:
//   - sim/interval/: frequency intervals and the augmented interval tree
//   - sim/trace/: dispatch and reception trace recording
//   - sim/observe/: Prometheus export of run counters
//
// # Key Interfaces
//
//   - Event: one scheduled occurrence, executed against the Simulator
//   - Channel: received power and delay of a signal at a receiver
//   - PropagationModel: path loss as a function of distance and frequency
//
// Scenarios are YAML files loaded with LoadScenario and turned into a ready
// Simulator by BuildSimulator.
package sim
