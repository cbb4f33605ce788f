package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents     int
	EventsByPrio    map[string]int // priority name → dispatched count
	TotalReceptions int
	ByOutcome       map[string]int // outcome → count
	PerReceiver     map[string]int // receiver → delivered frames
	MeanSINRDb      float64        // over delivered frames
	MinSINRDb       float64        // over delivered frames
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventsByPrio: make(map[string]int),
		ByOutcome:    make(map[string]int),
		PerReceiver:  make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		summary.EventsByPrio[e.Priority]++
	}

	summary.TotalReceptions = len(st.Receptions)
	delivered := 0
	totalSINR := 0.0
	for _, r := range st.Receptions {
		summary.ByOutcome[r.Outcome]++
		if r.Outcome != "delivered" {
			continue
		}
		summary.PerReceiver[r.Receiver]++
		if delivered == 0 || r.SINRDb < summary.MinSINRDb {
			summary.MinSINRDb = r.SINRDb
		}
		totalSINR += r.SINRDb
		delivered++
	}
	if delivered > 0 {
		summary.MeanSINRDb = totalSINR / float64(delivered)
	}

	return summary
}
