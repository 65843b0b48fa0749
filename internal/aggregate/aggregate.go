// Package aggregate derives the state summary and the monthly enrolment
// series from normalized category tables.
package aggregate

import (
	"sort"

	"aadhaar/internal/core"
	"aadhaar/internal/normalize"
)

type totals struct {
	enrol, demo, bio int64
}

// StateSummary groups every table by canonical state, outer-joins the three
// category totals and derives the update-per-enrolment ratios. Records with
// an empty or non-canonical state are not grouped. Rows are ordered by state.
func StateSummary(enrol, demo, bio core.Table) []core.StateSummaryRow {
	byState := make(map[string]*totals)
	add := func(t core.Table, pick func(*totals) *int64) {
		for _, r := range t.Records {
			if !normalize.IsCanonical(r.State) {
				continue
			}
			acc, ok := byState[r.State]
			if !ok {
				acc = &totals{}
				byState[r.State] = acc
			}
			*pick(acc) += r.Total()
		}
	}
	add(enrol, func(t *totals) *int64 { return &t.enrol })
	add(demo, func(t *totals) *int64 { return &t.demo })
	add(bio, func(t *totals) *int64 { return &t.bio })

	rows := make([]core.StateSummaryRow, 0, len(byState))
	for state, t := range byState {
		rows = append(rows, core.StateSummaryRow{
			State:            state,
			TotalEnrol:       t.enrol,
			TotalDemoUpdates: t.demo,
			TotalBioUpdates:  t.bio,
			DemoPerEnrol:     ratio(t.demo, t.enrol),
			BioPerEnrol:      ratio(t.bio, t.enrol),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].State < rows[j].State })
	return rows
}

// ratio divides with a zero guard: no enrolments means a ratio of 0.
func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// MonthlySeries buckets enrolment records by calendar month. Records with a
// missing date are excluded. Points are in ascending month order.
func MonthlySeries(enrol core.Table) []core.MonthlyPoint {
	byMonth := make(map[core.Month]int64)
	for _, r := range enrol.Records {
		if r.Date.IsMissing() {
			continue
		}
		byMonth[r.Date.YearMonth()] += r.Total()
	}

	months := make([]core.Month, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	points := make([]core.MonthlyPoint, len(months))
	for i, m := range months {
		points[i] = core.MonthlyPoint{Month: m.String(), TotalEnrol: byMonth[m]}
	}
	return points
}
