package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/inference-sim/radio-sim/sim/interval"
)

// SignalID identifies a transmission.
type SignalID uint64

// Signal is one transmission on the air: who sent it, when, with what power,
// and which frequency intervals it occupies.
type Signal struct {
	ID         SignalID
	Source     NodeID
	Begin      int64
	End        int64
	TxPowerDbm float64
	// Frame is true when the signal carries a decodable frame; false for
	// pure energy (jamming, noise sources).
	Frame    bool
	Waveform []interval.Interval
}

// Duration returns End - Begin in ticks.
func (s *Signal) Duration() int64 {
	return s.End - s.Begin
}

// Range returns the lowest and highest frequency the signal occupies.
func (s *Signal) Range() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range s.Waveform {
		lo = math.Min(lo, w.Low())
		hi = math.Max(hi, w.High())
	}
	return lo, hi
}

// CenterHz returns the midpoint of the occupied range.
func (s *Signal) CenterHz() float64 {
	lo, hi := s.Range()
	return (lo + hi) / 2
}

func (s *Signal) String() string {
	return fmt.Sprintf("signal#%d(%s)", s.ID, s.Source)
}

// Channel computes what a receiver sees of a signal. The Simulator implements
// it from node positions and its PropagationModel.
type Channel interface {
	// ReceivedPowerDbm is the power of sig at rx when fraction of the signal's
	// power falls inside rx's bands.
	ReceivedPowerDbm(sig *Signal, rx NodeID, fraction float64) float64
	// Delay is the propagation delay from sig's source to rx, at least 1 tick.
	Delay(sig *Signal, rx NodeID) int64
}

// Exposure describes how much of a signal reaches one receiver.
type Exposure struct {
	Receiver NodeID
	Fraction float64 // share of the signal's power inside the receiver's bands, in (0, 1]
	PowerDbm float64
	Delay    int64
}

type receiverEntry struct {
	id    NodeID
	bands []interval.Interval // bound to this entry's handle
}

type waveformEntry struct {
	sig   *Signal
	bands []interval.Interval // bound to this entry's handle
	// delays fixed at transmission begin, so end events pair with begin events
	delays map[NodeID]int64
}

// Spectrum is the registry of receiving and transmitting frequency intervals.
// It keeps one interval index for receiver bands and one for the waveforms of
// active transmissions, and turns signal lifecycle calls into scheduler events.
//
// Index entries refer back to their owners through handles into the
// receivers and waveforms tables; freed handles are reused.
//
// Thread-safety: NOT thread-safe. Driven by the simulation goroutine only.
type Spectrum struct {
	sched          *Scheduler
	factory        *interval.Factory
	channel        Channel
	sensitivityDbm float64

	rxIndex *interval.Tree
	txIndex *interval.Tree

	receivers  []receiverEntry
	freeRx     []interval.Handle
	rxByNode   map[NodeID]interval.Handle
	waveforms  []waveformEntry
	freeWf     []interval.Handle
	wfBySignal map[SignalID]interval.Handle
}

// NewSpectrum creates an empty spectrum. Frames arriving below sensitivityDbm
// are not offered to receivers (their energy still counts as interference).
func NewSpectrum(sched *Scheduler, factory *interval.Factory, channel Channel, sensitivityDbm float64) *Spectrum {
	return &Spectrum{
		sched:          sched,
		factory:        factory,
		channel:        channel,
		sensitivityDbm: sensitivityDbm,
		rxIndex:        interval.NewTree(),
		txIndex:        interval.NewTree(),
		rxByNode:       make(map[NodeID]interval.Handle),
		wfBySignal:     make(map[SignalID]interval.Handle),
	}
}

// ReceiverCount returns the number of registered receivers.
func (s *Spectrum) ReceiverCount() int {
	return len(s.rxByNode)
}

// IsRegistered reports whether rx has bands in the spectrum.
func (s *Spectrum) IsRegistered(rx NodeID) bool {
	_, ok := s.rxByNode[rx]
	return ok
}

// ActiveSignals returns the signals currently on the air, ordered by ID.
func (s *Spectrum) ActiveSignals() []*Signal {
	out := make([]*Signal, 0, len(s.wfBySignal))
	for _, h := range s.wfBySignal {
		out = append(out, s.waveforms[h].sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsActive reports whether sig is on the air.
func (s *Spectrum) IsActive(sig *Signal) bool {
	_, ok := s.wfBySignal[sig.ID]
	return ok
}

// RegisterReceiver adds rx's bands to the index and returns the active
// signals that already overlap them, so a late-joining receiver can catch up.
// Signals sent by rx itself are not returned. Registering an already
// registered receiver replaces its bands.
func (s *Spectrum) RegisterReceiver(rx NodeID, bands []interval.Interval) []*Signal {
	s.UnregisterReceiver(rx)

	h := s.allocReceiver()
	entry := receiverEntry{id: rx}
	for _, b := range bands {
		bound := s.factory.BindReceiver(b, h)
		s.rxIndex.Insert(bound)
		entry.bands = append(entry.bands, bound)
	}
	s.receivers[h] = entry
	s.rxByNode[rx] = h

	seen := make(map[SignalID]bool)
	var catchUp []*Signal
	for _, b := range entry.bands {
		for _, w := range s.txIndex.FindAllIntersections(b.Low(), b.High()) {
			sig := s.waveforms[w.Owner()].sig
			if seen[sig.ID] || sig.Source == rx {
				continue
			}
			seen[sig.ID] = true
			catchUp = append(catchUp, sig)
		}
	}
	sort.Slice(catchUp, func(i, j int) bool { return catchUp[i].ID < catchUp[j].ID })
	return catchUp
}

// UnregisterReceiver removes all of rx's bands. Unknown receivers are ignored.
func (s *Spectrum) UnregisterReceiver(rx NodeID) bool {
	h, ok := s.rxByNode[rx]
	if !ok {
		return false
	}
	for _, b := range s.receivers[h].bands {
		s.rxIndex.Delete(b)
	}
	s.receivers[h] = receiverEntry{}
	s.freeRx = append(s.freeRx, h)
	delete(s.rxByNode, rx)
	return true
}

func (s *Spectrum) allocReceiver() interval.Handle {
	if k := len(s.freeRx); k > 0 {
		h := s.freeRx[k-1]
		s.freeRx = s.freeRx[:k-1]
		return h
	}
	s.receivers = append(s.receivers, receiverEntry{})
	return interval.Handle(len(s.receivers) - 1)
}

func (s *Spectrum) allocWaveform() interval.Handle {
	if k := len(s.freeWf); k > 0 {
		h := s.freeWf[k-1]
		s.freeWf = s.freeWf[:k-1]
		return h
	}
	s.waveforms = append(s.waveforms, waveformEntry{})
	return interval.Handle(len(s.waveforms) - 1)
}

// Affected returns the receivers (other than the source) whose bands overlap
// sig, with the share of sig's power each one captures. Receivers that only
// touch an edge of the signal capture no power and are left out. The result
// is ordered by receiver registration handle, which keeps event IDs
// deterministic.
func (s *Spectrum) Affected(sig *Signal) []Exposure {
	var total float64
	for _, w := range sig.Waveform {
		total += w.Width()
	}

	share := make(map[interval.Handle]float64)
	for _, w := range sig.Waveform {
		for _, b := range s.rxIndex.FindAllIntersections(w.Low(), w.High()) {
			h := b.Owner()
			if s.receivers[h].id == sig.Source {
				continue
			}
			if total == 0 {
				share[h] += 1 / float64(len(sig.Waveform))
			} else {
				share[h] += interval.OverlapWidth(w, b) / total
			}
		}
	}

	handles := make([]interval.Handle, 0, len(share))
	for h, f := range share {
		if f > 0 {
			handles = append(handles, h)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	out := make([]Exposure, 0, len(handles))
	for _, h := range handles {
		rx := s.receivers[h].id
		// overlapping receiver bands can double count
		f := math.Min(share[h], 1)
		out = append(out, Exposure{
			Receiver: rx,
			Fraction: f,
			PowerDbm: s.channel.ReceivedPowerDbm(sig, rx, f),
			Delay:    s.channel.Delay(sig, rx),
		})
	}
	return out
}

// Exposure returns what rx sees of sig, or false if rx's bands do not
// capture any of sig's power.
func (s *Spectrum) Exposure(sig *Signal, rx NodeID) (Exposure, bool) {
	for _, e := range s.Affected(sig) {
		if e.Receiver == rx {
			return e, true
		}
	}
	return Exposure{}, false
}

func receiverIDs(exps []Exposure) []NodeID {
	out := make([]NodeID, 0, len(exps))
	for _, e := range exps {
		out = append(out, e.Receiver)
	}
	return out
}

// OnTransmissionBegin puts sig on the air. Every affected receiver gets an
// RxSignalBeginEvent after its propagation delay; the source gets a TxEndEvent
// and the spectrum a TxSignalEndEvent at sig.End. Starting an already active
// signal does nothing.
func (s *Spectrum) OnTransmissionBegin(sig *Signal, now int64) []NodeID {
	if s.IsActive(sig) {
		return nil
	}
	h := s.allocWaveform()
	entry := waveformEntry{sig: sig, delays: make(map[NodeID]int64)}
	for _, w := range sig.Waveform {
		bound := s.factory.BindWaveform(w, h)
		s.txIndex.Insert(bound)
		entry.bands = append(entry.bands, bound)
	}

	exps := s.Affected(sig)
	for _, e := range exps {
		entry.delays[e.Receiver] = e.Delay
		s.sched.AddEvent(NewRxSignalBeginEvent(now+e.Delay, e.Receiver, sig, e.PowerDbm, s.sched.NewEventID()))
	}
	s.waveforms[h] = entry
	s.wfBySignal[sig.ID] = h

	s.sched.AddEvent(NewTxEndEvent(sig.End, sig.Source, sig, s.sched.NewEventID()))
	s.sched.AddEvent(NewTxSignalEndEvent(sig.End, sig, s.sched.NewEventID()))
	return receiverIDs(exps)
}

// OnTransmissionEnd takes sig off the air and schedules an RxSignalEndEvent
// for every receiver it currently reaches. Ending an inactive signal does
// nothing.
func (s *Spectrum) OnTransmissionEnd(sig *Signal, now int64) []NodeID {
	h, ok := s.wfBySignal[sig.ID]
	if !ok {
		return nil
	}
	entry := s.waveforms[h]
	for _, b := range entry.bands {
		s.txIndex.Delete(b)
	}
	s.waveforms[h] = waveformEntry{}
	s.freeWf = append(s.freeWf, h)
	delete(s.wfBySignal, sig.ID)

	exps := s.Affected(sig)
	for _, e := range exps {
		s.sched.AddEvent(NewRxSignalEndEvent(now+entry.delayFor(e), e.Receiver, sig, s.sched.NewEventID()))
	}
	return receiverIDs(exps)
}

// OnReceptionBegin offers a frame-carrying sig to every affected receiver
// that hears it at or above sensitivity, via RxBeginEvents.
func (s *Spectrum) OnReceptionBegin(sig *Signal, now int64) []NodeID {
	if !sig.Frame {
		return nil
	}
	entry := s.entryFor(sig)
	var out []NodeID
	for _, e := range s.Affected(sig) {
		if e.PowerDbm < s.sensitivityDbm {
			continue
		}
		s.sched.AddEvent(NewRxBeginEvent(now+entry.delayFor(e), e.Receiver, sig, e.PowerDbm, s.sched.NewEventID()))
		out = append(out, e.Receiver)
	}
	return out
}

// OnReceptionEnd schedules an RxEndEvent for every receiver sig reaches.
// Receivers that never locked onto the frame ignore it. Call it before
// OnTransmissionEnd so the begin-time delays are still known.
func (s *Spectrum) OnReceptionEnd(sig *Signal, now int64) []NodeID {
	if !sig.Frame {
		return nil
	}
	entry := s.entryFor(sig)
	exps := s.Affected(sig)
	for _, e := range exps {
		s.sched.AddEvent(NewRxEndEvent(now+entry.delayFor(e), e.Receiver, sig, s.sched.NewEventID()))
	}
	return receiverIDs(exps)
}

func (s *Spectrum) entryFor(sig *Signal) waveformEntry {
	if h, ok := s.wfBySignal[sig.ID]; ok {
		return s.waveforms[h]
	}
	return waveformEntry{}
}

func (w waveformEntry) delayFor(e Exposure) int64 {
	if d, ok := w.delays[e.Receiver]; ok {
		return d
	}
	return e.Delay
}
