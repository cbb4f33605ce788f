package trace

import (
	"testing"
)

func TestSimulationTrace_RecordReception_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for receptions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelReceptions})

	// WHEN a reception record is recorded
	st.RecordReception(ReceptionRecord{
		Clock:    1000,
		Receiver: "n2",
		Source:   "n1",
		SignalID: 7,
		Outcome:  "delivered",
		SINRDb:   12.5,
	})

	// THEN the trace contains one reception record with correct data
	if len(st.Receptions) != 1 {
		t.Fatalf("expected 1 reception, got %d", len(st.Receptions))
	}
	if st.Receptions[0].Receiver != "n2" {
		t.Errorf("expected receiver n2, got %s", st.Receptions[0].Receiver)
	}
	if st.Receptions[0].SignalID != 7 {
		t.Errorf("expected signal 7, got %d", st.Receptions[0].SignalID)
	}
}

func TestSimulationTrace_ReceptionLevel_DropsEvents(t *testing.T) {
	// GIVEN a trace configured for receptions only
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelReceptions})

	// WHEN an event record is recorded
	st.RecordEvent(EventRecord{Clock: 10, EventID: 1, Priority: "Birth"})

	// THEN it is not kept
	if len(st.Events) != 0 {
		t.Errorf("expected no event records at reception level, got %d", len(st.Events))
	}
}

func TestSimulationTrace_NoneLevel_RecordsNothing(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelNone})

	st.RecordEvent(EventRecord{Clock: 10, EventID: 1, Priority: "Birth"})
	st.RecordReception(ReceptionRecord{Clock: 10, Receiver: "n1", Outcome: "busy"})

	if len(st.Events) != 0 || len(st.Receptions) != 0 {
		t.Errorf("expected empty trace, got %d events and %d receptions", len(st.Events), len(st.Receptions))
	}
}

func TestSimulationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace at the most verbose level
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN multiple records are added
	st.RecordEvent(EventRecord{Clock: 100, EventID: 3, Priority: "Callback"})
	st.RecordEvent(EventRecord{Clock: 100, EventID: 4, Priority: "Quit"})
	st.RecordReception(ReceptionRecord{Clock: 150, Receiver: "a", Outcome: "delivered"})
	st.RecordReception(ReceptionRecord{Clock: 200, Receiver: "b", Outcome: "collided"})

	// THEN order is preserved
	if len(st.Events) != 2 || len(st.Receptions) != 2 {
		t.Fatalf("expected 2 events and 2 receptions, got %d and %d", len(st.Events), len(st.Receptions))
	}
	if st.Events[0].EventID != 3 || st.Events[1].EventID != 4 {
		t.Error("event order not preserved")
	}
	if st.Receptions[0].Receiver != "a" || st.Receptions[1].Receiver != "b" {
		t.Error("reception order not preserved")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"receptions", true},
		{"events", true},
		{"", true},
		{"decisions", false},
		{"all", false},
	}
	for _, tc := range tests {
		if got := IsValidTraceLevel(tc.level); got != tc.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tc.level, got, tc.valid)
		}
	}
}
