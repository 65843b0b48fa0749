package pipeline

import (
	"sort"

	"aadhaar/internal/core"
	"aadhaar/internal/normalize"
)

// ErrUnknownMetric is returned by TopStates for a metric outside the enum.
var ErrUnknownMetric = core.ErrUnknownMetric

// StateSummary returns the per-state summary ordered by state.
func (p *Pipeline) StateSummary() []core.StateSummaryRow {
	return append([]core.StateSummaryRow{}, p.Current().Summary...)
}

// MonthlySeries returns the monthly enrolment series in ascending order.
func (p *Pipeline) MonthlySeries() []core.MonthlyPoint {
	return append([]core.MonthlyPoint{}, p.Current().Monthly...)
}

// Forecast returns the projected enrolment months.
func (p *Pipeline) Forecast() []core.ForecastPoint {
	return append([]core.ForecastPoint{}, p.Current().Forecast...)
}

// UnmappedLabels returns the non-canonical labels seen by the last reload.
func (p *Pipeline) UnmappedLabels() []core.UnmappedLabel {
	return append([]core.UnmappedLabel{}, p.Current().Unmapped...)
}

// Stats returns the grand totals.
func (p *Pipeline) Stats() core.Stats {
	return p.Current().Stats
}

// State looks up one state. The name is normalized like an input label.
func (p *Pipeline) State(name string) (core.StateSummaryRow, bool) {
	label, ok := normalize.CanonicalizeState(name, name != "")
	if !ok {
		return core.StateSummaryRow{}, false
	}
	return p.Current().Row(label)
}

// TopStates ranks states by metric, descending, returning at most n rows.
// Ties keep summary order.
func (p *Pipeline) TopStates(metric core.Metric, n int) ([]core.RankedState, error) {
	if _, err := core.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []core.RankedState{}, nil
	}

	rows := p.StateSummary()
	sort.SliceStable(rows, func(i, j int) bool {
		return metric.Value(rows[i]) > metric.Value(rows[j])
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	out := make([]core.RankedState, len(rows))
	for i, r := range rows {
		out[i] = core.RankedState{State: r.State, Metric: metric, Value: metric.Value(r)}
	}
	return out, nil
}

// AnomalyPoints flags every state against the fixed ratio thresholds.
func (p *Pipeline) AnomalyPoints() []core.AnomalyPoint {
	summary := p.Current().Summary
	out := make([]core.AnomalyPoint, len(summary))
	for i, r := range summary {
		out[i] = core.AnomalyPoint{
			State:        r.State,
			DemoPerEnrol: r.DemoPerEnrol,
			BioPerEnrol:  r.BioPerEnrol,
			IsAnomaly:    core.IsAnomalous(r.DemoPerEnrol, r.BioPerEnrol),
		}
	}
	return out
}
