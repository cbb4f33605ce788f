package trace

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelReceptions captures frame reception outcomes only.
	TraceLevelReceptions TraceLevel = "receptions"
	// TraceLevelEvents captures reception outcomes and every dispatched event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelReceptions: true,
	TraceLevelEvents:     true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation run.
type SimulationTrace struct {
	Config     TraceConfig
	Events     []EventRecord
	Receptions []ReceptionRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Events:     make([]EventRecord, 0),
		Receptions: make([]ReceptionRecord, 0),
	}
}

// RecordEvent appends a dispatch record. Ignored below TraceLevelEvents.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if st.Config.Level != TraceLevelEvents {
		return
	}
	st.Events = append(st.Events, record)
}

// RecordReception appends a reception record. Ignored at TraceLevelNone.
func (st *SimulationTrace) RecordReception(record ReceptionRecord) {
	if st.Config.Level != TraceLevelEvents && st.Config.Level != TraceLevelReceptions {
		return
	}
	st.Receptions = append(st.Receptions, record)
}
