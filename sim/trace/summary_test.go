package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	assert.Zero(t, summary.TotalEvents)
	assert.Zero(t, summary.TotalReceptions)
	assert.Zero(t, summary.MeanSINRDb)
	assert.Zero(t, summary.MinSINRDb)
	assert.Empty(t, summary.ByOutcome)
	assert.Empty(t, summary.PerReceiver)
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.TotalEvents)
	assert.NotNil(t, summary.EventsByPrio)
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed event and reception records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})
	st.RecordEvent(EventRecord{Clock: 0, EventID: 1, Priority: "Birth"})
	st.RecordEvent(EventRecord{Clock: 0, EventID: 2, Priority: "Birth"})
	st.RecordEvent(EventRecord{Clock: 5, EventID: 3, Priority: "Callback"})
	st.RecordReception(ReceptionRecord{Receiver: "a", Outcome: "delivered", SINRDb: 10})
	st.RecordReception(ReceptionRecord{Receiver: "a", Outcome: "delivered", SINRDb: 20})
	st.RecordReception(ReceptionRecord{Receiver: "b", Outcome: "delivered", SINRDb: 6})
	st.RecordReception(ReceptionRecord{Receiver: "b", Outcome: "collided", SINRDb: -3})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and SINR statistics reflect only delivered frames
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Equal(t, 2, summary.EventsByPrio["Birth"])
	assert.Equal(t, 1, summary.EventsByPrio["Callback"])
	assert.Equal(t, 4, summary.TotalReceptions)
	assert.Equal(t, 3, summary.ByOutcome["delivered"])
	assert.Equal(t, 1, summary.ByOutcome["collided"])
	assert.Equal(t, 2, summary.PerReceiver["a"])
	assert.Equal(t, 1, summary.PerReceiver["b"])
	assert.InDelta(t, 12.0, summary.MeanSINRDb, 1e-9)
	assert.InDelta(t, 6.0, summary.MinSINRDb, 1e-9)
}
