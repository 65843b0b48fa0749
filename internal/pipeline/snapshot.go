package pipeline

import (
	"sort"
	"time"

	"aadhaar/internal/aggregate"
	"aadhaar/internal/core"
	"aadhaar/internal/loader"
)

// Snapshot is one immutable generation of derived tables. A reload builds a
// new snapshot and swaps it in; an existing snapshot is never modified.
type Snapshot struct {
	Version  uint64
	RunID    string
	LoadedAt time.Time
	Degraded bool
	Cause    string

	Tables   map[core.Category]core.Table
	Summary  []core.StateSummaryRow
	Monthly  []core.MonthlyPoint
	Forecast []core.ForecastPoint
	Unmapped []core.UnmappedLabel
	Stats    core.Stats

	byState map[string]int
}

// Info is the metadata of a snapshot.
type Info struct {
	Version  uint64    `json:"version"`
	RunID    string    `json:"run_id,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
	Degraded bool      `json:"degraded"`
	Cause    string    `json:"cause,omitempty"`
	Records  int       `json:"records"`
	States   int       `json:"states"`
}

func newSnapshot(tables map[core.Category]core.Table, reports map[core.Category]loader.Report) *Snapshot {
	enrol := tableOf(tables, core.Enrolment)
	demo := tableOf(tables, core.Demographic)
	bio := tableOf(tables, core.Biometric)

	s := &Snapshot{
		Tables: map[core.Category]core.Table{
			core.Enrolment:   enrol,
			core.Demographic: demo,
			core.Biometric:   bio,
		},
		Summary:  aggregate.StateSummary(enrol, demo, bio),
		Monthly:  aggregate.MonthlySeries(enrol),
		Unmapped: unmappedLabels(reports),
	}
	s.Forecast = aggregate.Forecast(s.Monthly, aggregate.DefaultHorizon)

	s.byState = make(map[string]int, len(s.Summary))
	s.Stats.TotalStates = len(s.Summary)
	for i, row := range s.Summary {
		s.byState[row.State] = i
		s.Stats.TotalEnrolments += row.TotalEnrol
		s.Stats.TotalDemoUpdates += row.TotalDemoUpdates
		s.Stats.TotalBioUpdates += row.TotalBioUpdates
	}
	return s
}

// emptySnapshot is the explicit empty configuration served before the first
// reload and after an unexpected failure.
func emptySnapshot() *Snapshot {
	return newSnapshot(nil, nil)
}

func tableOf(tables map[core.Category]core.Table, c core.Category) core.Table {
	t, ok := tables[c]
	if !ok || t.Records == nil {
		return core.Table{Category: c, Records: []core.Record{}}
	}
	return t
}

// unmappedLabels flattens the per-category histograms, most frequent first.
func unmappedLabels(reports map[core.Category]loader.Report) []core.UnmappedLabel {
	out := []core.UnmappedLabel{}
	for c, r := range reports {
		for label, n := range r.Unmapped {
			out = append(out, core.UnmappedLabel{Category: c, Label: label, Rows: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Info returns the snapshot metadata.
func (s *Snapshot) Info() Info {
	records := 0
	for _, t := range s.Tables {
		records += t.Len()
	}
	return Info{
		Version:  s.Version,
		RunID:    s.RunID,
		LoadedAt: s.LoadedAt,
		Degraded: s.Degraded,
		Cause:    s.Cause,
		Records:  records,
		States:   len(s.Summary),
	}
}

// Row returns the summary row of a canonical state.
func (s *Snapshot) Row(state string) (core.StateSummaryRow, bool) {
	i, ok := s.byState[state]
	if !ok {
		return core.StateSummaryRow{}, false
	}
	return s.Summary[i], true
}
