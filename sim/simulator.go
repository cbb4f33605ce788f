package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/radio-sim/sim/interval"
	"github.com/inference-sim/radio-sim/sim/observe"
	"github.com/inference-sim/radio-sim/sim/trace"
)

// ReceptionConfig holds the receiver model parameters shared by all nodes.
type ReceptionConfig struct {
	NoiseFloorDbm   float64 `yaml:"noise_floor_dbm"`
	SensitivityDbm  float64 `yaml:"sensitivity_dbm"`   // frames arriving weaker are not offered to receivers
	SINRThresholdDb float64 `yaml:"sinr_threshold_db"` // minimum SINR over the whole frame for delivery
}

// DefaultReceptionConfig returns the receiver parameters used when a scenario
// does not override them.
func DefaultReceptionConfig() ReceptionConfig {
	return ReceptionConfig{
		NoiseFloorDbm:   -95,
		SensitivityDbm:  -100,
		SINRThresholdDb: 4,
	}
}

// SimConfig configures a Simulator.
type SimConfig struct {
	Horizon           int64 // 0 runs until the queue drains
	MilestoneInterval int64 // 0 disables progress milestones
	Seed              int64
	Propagation       PropagationConfig
	Reception         ReceptionConfig
	TraceLevel        trace.TraceLevel
	Collector         *observe.Collector // optional
}

// Simulator drives a radio network: it owns the clock, the scheduler, the
// spectrum and the nodes, and executes events in (time, priority, id) order.
//
// Thread-safety: NOT thread-safe. Run and all scheduling calls must come from
// one goroutine.
type Simulator struct {
	Clock             int64
	Horizon           int64
	MilestoneInterval int64

	Scheduler *Scheduler
	Spectrum  *Spectrum
	Factory   *interval.Factory
	Nodes     map[NodeID]*Node

	Propagation      PropagationModel
	PropagationDelay bool
	Reception        ReceptionConfig
	noiseFloorMw     float64

	RNG       *PartitionedRNG
	Metrics   *Metrics
	Trace     *trace.SimulationTrace // nil when tracing is off
	Collector *observe.Collector     // nil when metrics export is off

	nextSignalID SignalID
	pendingTx    map[uint64]struct{} // transmit callbacks not yet run or cancelled
}

// NewSimulator creates a Simulator and schedules its Quit and first Milestone
// events.
func NewSimulator(cfg SimConfig) (*Simulator, error) {
	if cfg.Horizon < 0 {
		return nil, fmt.Errorf("horizon must be >= 0, got %d", cfg.Horizon)
	}
	if cfg.MilestoneInterval < 0 {
		return nil, fmt.Errorf("milestone interval must be >= 0, got %d", cfg.MilestoneInterval)
	}
	if !trace.IsValidTraceLevel(string(cfg.TraceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q", cfg.TraceLevel)
	}
	model, err := NewPropagationModel(cfg.Propagation)
	if err != nil {
		return nil, fmt.Errorf("creating propagation model: %w", err)
	}

	s := &Simulator{
		Horizon:           cfg.Horizon,
		MilestoneInterval: cfg.MilestoneInterval,
		Scheduler:         NewScheduler(),
		Factory:           interval.NewFactory(),
		Nodes:             make(map[NodeID]*Node),
		Propagation:       model,
		PropagationDelay:  cfg.Propagation.Delay,
		Reception:         cfg.Reception,
		noiseFloorMw:      DbmToMw(cfg.Reception.NoiseFloorDbm),
		RNG:               NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		Metrics:           NewMetrics(),
		Collector:         cfg.Collector,
		pendingTx:         make(map[uint64]struct{}),
	}
	s.Spectrum = NewSpectrum(s.Scheduler, s.Factory, s, cfg.Reception.SensitivityDbm)
	if cfg.TraceLevel != "" && cfg.TraceLevel != trace.TraceLevelNone {
		s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.TraceLevel})
	}

	if s.Horizon > 0 {
		s.Scheduler.AddEvent(NewQuitEvent(s.Horizon, s.Scheduler.NewEventID()))
		if s.MilestoneInterval > 0 && s.MilestoneInterval < s.Horizon {
			s.Scheduler.AddEvent(NewMilestoneEvent(s.MilestoneInterval, s.Scheduler.NewEventID()))
		}
	}
	return s, nil
}

// AddNode creates a node and schedules its birth. The node has no presence in
// the spectrum until the BirthEvent runs.
func (s *Simulator) AddNode(id NodeID, pos Position, txPowerDbm float64, bands []interval.Interval, birth int64) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("node id must not be empty")
	}
	if _, exists := s.Nodes[id]; exists {
		return nil, fmt.Errorf("node %s already exists", id)
	}
	if birth < s.Clock {
		return nil, fmt.Errorf("node %s: birth %d is before the current clock %d", id, birth, s.Clock)
	}
	n := NewNode(id, pos, txPowerDbm, bands)
	s.Nodes[id] = n
	s.Scheduler.AddEvent(NewBirthEvent(birth, id, s.Scheduler.NewEventID()))
	return n, nil
}

// NodeIDs returns all node IDs in sorted order.
func (s *Simulator) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScheduleMobility moves node to pos at time at.
func (s *Simulator) ScheduleMobility(node NodeID, at int64, pos Position) error {
	if _, ok := s.Nodes[node]; !ok {
		return fmt.Errorf("unknown node %s", node)
	}
	if at < s.Clock {
		return fmt.Errorf("mobility for %s at %d is before the current clock %d", node, at, s.Clock)
	}
	s.Scheduler.AddEvent(NewMobilityEvent(at, node, pos, s.Scheduler.NewEventID()))
	return nil
}

// ScheduleTransmission arranges for src to transmit waveform for duration
// ticks starting at time at. It returns the ID of the callback event, which
// can be passed to CancelCallback until the transmission starts.
func (s *Simulator) ScheduleTransmission(src NodeID, at, duration int64, waveform []interval.Interval, frame bool) (uint64, error) {
	if _, ok := s.Nodes[src]; !ok {
		return 0, fmt.Errorf("unknown node %s", src)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("transmission from %s: duration must be > 0, got %d", src, duration)
	}
	if at < s.Clock {
		return 0, fmt.Errorf("transmission from %s at %d is before the current clock %d", src, at, s.Clock)
	}
	if len(waveform) == 0 {
		return 0, fmt.Errorf("transmission from %s: empty waveform", src)
	}
	id := s.Scheduler.NewEventID()
	s.pendingTx[id] = struct{}{}
	s.Scheduler.AddEvent(NewCallbackEvent(at, "transmit", func(sim *Simulator) {
		delete(sim.pendingTx, id)
		sim.startTransmission(src, duration, waveform, frame)
	}, id))
	return id, nil
}

// ScheduleLeave takes node off the air at time at. It returns the ID of the
// callback event.
func (s *Simulator) ScheduleLeave(node NodeID, at int64) (uint64, error) {
	if _, ok := s.Nodes[node]; !ok {
		return 0, fmt.Errorf("unknown node %s", node)
	}
	if at < s.Clock {
		return 0, fmt.Errorf("leave for %s at %d is before the current clock %d", node, at, s.Clock)
	}
	id := s.Scheduler.NewEventID()
	s.Scheduler.AddEvent(NewCallbackEvent(at, "leave", func(sim *Simulator) {
		sim.leave(node)
	}, id))
	return id, nil
}

// CancelCallback cancels a pending callback event. It reports whether a new
// cancellation was recorded. Only cancelled transmissions are counted in
// Metrics.TransmissionsCancelled.
func (s *Simulator) CancelCallback(id uint64) bool {
	before := s.Scheduler.Cancelled()
	s.Scheduler.DeleteEvent(id)
	if s.Scheduler.Cancelled() == before {
		return false
	}
	if _, ok := s.pendingTx[id]; ok {
		delete(s.pendingTx, id)
		s.Metrics.TransmissionsCancelled++
	}
	return true
}

// ReceivedPowerDbm implements Channel: transmit power minus path loss between
// the current node positions, scaled by the captured fraction.
func (s *Simulator) ReceivedPowerDbm(sig *Signal, rx NodeID, fraction float64) float64 {
	src, dst := s.Nodes[sig.Source], s.Nodes[rx]
	if src == nil || dst == nil || fraction <= 0 {
		return math.Inf(-1)
	}
	loss := s.Propagation.PathLossDb(src.Position.Distance(dst.Position), sig.CenterHz())
	return sig.TxPowerDbm - loss + 10*math.Log10(fraction)
}

// Delay implements Channel.
func (s *Simulator) Delay(sig *Signal, rx NodeID) int64 {
	src, dst := s.Nodes[sig.Source], s.Nodes[rx]
	if !s.PropagationDelay || src == nil || dst == nil {
		return 1
	}
	return delayTicks(src.Position.Distance(dst.Position))
}

// Run executes events until the horizon, an empty queue, or ctx is done.
func (s *Simulator) Run(ctx context.Context) *Metrics {
	for {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("[tick %07d] simulation interrupted: %v", s.Clock, err)
			break
		}

		ev := s.Scheduler.NextEvent()
		if ev == nil {
			if !s.Scheduler.Running() {
				break
			}
			s.Metrics.SuppressedCallbacks++
			s.Collector.IncSuppressed()
			continue
		}

		if ev.Timestamp() < s.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.Timestamp(), s.Clock))
		}
		s.Clock = ev.Timestamp()

		logrus.Debugf("[tick %07d] %-13s event=%d", s.Clock, ev.Priority(), ev.EventID())
		ev.Execute(s)
		s.recordDispatch(ev)

		if !s.Scheduler.Running() {
			break
		}
	}

	s.Metrics.SimEndedTime = s.Clock
	for id, n := range s.Nodes {
		s.Metrics.PerNode[id] = n.Stats
	}
	return s.Metrics
}

func (s *Simulator) recordDispatch(ev Event) {
	m := s.Metrics
	m.EventsDispatched++
	m.EventsByPriority[ev.Priority()]++

	depth := s.Scheduler.CountEvents()
	m.PeakQueueDepth = max(m.PeakQueueDepth, depth)
	active := len(s.Spectrum.ActiveSignals())
	m.PeakActiveSignals = max(m.PeakActiveSignals, active)

	if s.Trace != nil {
		s.Trace.RecordEvent(trace.EventRecord{
			Clock:    s.Clock,
			EventID:  ev.EventID(),
			Priority: ev.Priority().String(),
		})
	}
	s.Collector.ObserveEvent(ev.Priority().String())
	s.Collector.SetQueueDepth(depth)
	s.Collector.SetActiveSignals(active)
}

// aliveNode returns the node if it exists and is on the air.
func (s *Simulator) aliveNode(id NodeID) *Node {
	n := s.Nodes[id]
	if n == nil || !n.Alive {
		return nil
	}
	return n
}

func (s *Simulator) startTransmission(src NodeID, duration int64, waveform []interval.Interval, frame bool) {
	n := s.Nodes[src]
	if n == nil || !n.Alive {
		logrus.Warnf("[tick %07d] %s is not on the air, transmission dropped", s.Clock, src)
		s.Metrics.TransmissionsDropped++
		if n != nil {
			n.Stats.TxDropped++
		}
		return
	}
	if n.Transmitting != nil {
		logrus.Warnf("[tick %07d] %s is already transmitting %s, transmission dropped", s.Clock, src, n.Transmitting)
		s.Metrics.TransmissionsDropped++
		n.Stats.TxDropped++
		return
	}

	s.nextSignalID++
	sig := &Signal{
		ID:         s.nextSignalID,
		Source:     src,
		Begin:      s.Clock,
		End:        s.Clock + duration,
		TxPowerDbm: n.TxPowerDbm,
		Frame:      frame,
		Waveform:   waveform,
	}

	// half duplex: going on the air abandons any frame being decoded
	if locked := n.Locked(); locked != nil {
		s.finishReception(n, locked, OutcomeAborted, true)
	}
	n.Transmitting = sig
	s.Metrics.TransmissionsStarted++

	reached := s.Spectrum.OnTransmissionBegin(sig, s.Clock)
	s.Spectrum.OnReceptionBegin(sig, s.Clock)
	logrus.Debugf("[tick %07d] %s begins %s until %d, reaching %d receivers", s.Clock, src, sig, sig.End, len(reached))
}

func (s *Simulator) leave(id NodeID) {
	n := s.aliveNode(id)
	if n == nil {
		return
	}
	if locked := n.Locked(); locked != nil {
		s.finishReception(n, locked, OutcomeAborted, true)
	}
	n.Alive = false
	n.clearRadio()
	s.Spectrum.UnregisterReceiver(id)
	logrus.Debugf("[tick %07d] %s left", s.Clock, id)
}

// finishReception closes a reception attempt at n and reports its outcome.
func (s *Simulator) finishReception(n *Node, sig *Signal, outcome ReceptionOutcome, locked bool) {
	var sinr float64
	if locked {
		sinr = n.minSINRDb
		n.unlock()
	}

	switch outcome {
	case OutcomeDelivered:
		n.Stats.FramesDelivered++
	case OutcomeCollided:
		n.Stats.FramesCollided++
	default:
		n.Stats.FramesMissed++
	}
	s.Metrics.recordOutcome(outcome)

	if s.Trace != nil {
		s.Trace.RecordReception(trace.ReceptionRecord{
			Clock:    s.Clock,
			Receiver: string(n.ID),
			Source:   string(sig.Source),
			SignalID: uint64(sig.ID),
			Outcome:  string(outcome),
			SINRDb:   sinr,
		})
	}
	s.Collector.ObserveReception(string(outcome), sinr, locked)
	logrus.Debugf("[tick %07d] %s: %s from %s %s (sinr %.2f dB)", s.Clock, n.ID, sig, sig.Source, outcome, sinr)
}

// Event handlers

func (s *Simulator) handleBirth(e *BirthEvent) {
	n := s.Nodes[e.Node]
	if n == nil || n.Alive {
		return
	}
	n.Alive = true
	catchUp := s.Spectrum.RegisterReceiver(n.ID, n.Bands)
	for _, sig := range catchUp {
		exp, ok := s.Spectrum.Exposure(sig, n.ID)
		if !ok {
			continue
		}
		// energy already on the air; the frame itself cannot be decoded mid-way
		s.Scheduler.AddEvent(NewRxSignalBeginEvent(s.Clock, n.ID, sig, exp.PowerDbm, s.Scheduler.NewEventID()))
	}
	logrus.Debugf("[tick %07d] %s born at (%.1f, %.1f), %d signals in progress", s.Clock, n.ID, n.Position.X, n.Position.Y, len(catchUp))
}

func (s *Simulator) handleMobility(e *MobilityEvent) {
	n := s.Nodes[e.Node]
	if n == nil {
		return
	}
	n.Position = e.Position
}

func (s *Simulator) handleTxEnd(e *TxEndEvent) {
	n := s.Nodes[e.Node]
	if n == nil || n.Transmitting != e.Signal {
		return
	}
	n.Transmitting = nil
	if e.Signal.Frame {
		n.Stats.FramesSent++
		s.Metrics.FramesSent++
	}
}

func (s *Simulator) handleTxSignalEnd(e *TxSignalEndEvent) {
	// reception end must be scheduled while begin-time delays are still known
	s.Spectrum.OnReceptionEnd(e.Signal, s.Clock)
	s.Spectrum.OnTransmissionEnd(e.Signal, s.Clock)
}

func (s *Simulator) handleRxSignalBegin(e *RxSignalBeginEvent) {
	n := s.aliveNode(e.Receiver)
	if n == nil {
		return
	}
	n.addIncoming(e.Signal.ID, DbmToMw(e.PowerDbm), s.noiseFloorMw)
}

func (s *Simulator) handleRxSignalEnd(e *RxSignalEndEvent) {
	n := s.aliveNode(e.Receiver)
	if n == nil {
		return
	}
	n.removeIncoming(e.Signal.ID, s.noiseFloorMw)
}

func (s *Simulator) handleRxBegin(e *RxBeginEvent) {
	n := s.aliveNode(e.Receiver)
	if n == nil {
		return
	}
	switch {
	case n.Transmitting != nil:
		s.finishReception(n, e.Signal, OutcomeDeaf, false)
	case n.Locked() != nil:
		s.finishReception(n, e.Signal, OutcomeBusy, false)
	default:
		n.lock(e.Signal, DbmToMw(e.PowerDbm), s.noiseFloorMw)
	}
}

func (s *Simulator) handleRxEnd(e *RxEndEvent) {
	n := s.aliveNode(e.Receiver)
	if n == nil || n.Locked() != e.Signal {
		return
	}
	outcome := OutcomeCollided
	if n.minSINRDb >= s.Reception.SINRThresholdDb {
		outcome = OutcomeDelivered
	}
	s.finishReception(n, e.Signal, outcome, true)
}

func (s *Simulator) handleMilestone(e *MilestoneEvent) {
	m := s.Metrics
	logrus.Infof("[tick %07d] milestone: %d events dispatched, %d pending, %d on air, %d delivered, %d collided",
		s.Clock, m.EventsDispatched, s.Scheduler.CountEvents(), len(s.Spectrum.ActiveSignals()), m.FramesDelivered, m.FramesCollided)
	if next := s.Clock + s.MilestoneInterval; s.MilestoneInterval > 0 && next < s.Horizon {
		s.Scheduler.AddEvent(NewMilestoneEvent(next, s.Scheduler.NewEventID()))
	}
}

func (s *Simulator) handleQuit(e *QuitEvent) {
	logrus.Infof("[tick %07d] horizon reached, %d events left unprocessed", s.Clock, s.Scheduler.CountEvents())
	s.Scheduler.Stop()
}
