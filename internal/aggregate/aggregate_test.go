package aggregate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"aadhaar/internal/core"
)

func rec(state string, date core.Date, counters ...int64) core.Record {
	return core.Record{State: state, Date: date, Counters: counters}
}

func table(c core.Category, records ...core.Record) core.Table {
	return core.Table{Category: c, Records: records}
}

var noDate core.Date

func TestStateSummary(t *testing.T) {
	enrol := table(core.Enrolment,
		rec("WEST BENGAL", noDate, 1, 2, 3),
		rec("WEST BENGAL", noDate, 4, 0, 0),
		rec("BIHAR", noDate, 5, 5, 0),
		rec("ATLANTIS", noDate, 100, 0, 0),
		rec("", noDate, 100, 0, 0),
	)
	demo := table(core.Demographic,
		rec("WEST BENGAL", noDate, 10, 10),
		rec("GOA", noDate, 7, 0),
	)
	bio := table(core.Biometric,
		rec("BIHAR", noDate, 30, 0),
		rec("WEST BENGAL", noDate, 0, 20),
	)

	got := StateSummary(enrol, demo, bio)
	want := []core.StateSummaryRow{
		{State: "BIHAR", TotalEnrol: 10, TotalBioUpdates: 30, BioPerEnrol: 3},
		{State: "GOA", TotalDemoUpdates: 7},
		{State: "WEST BENGAL", TotalEnrol: 10, TotalDemoUpdates: 20, TotalBioUpdates: 20, DemoPerEnrol: 2, BioPerEnrol: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StateSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestStateSummaryZeroEnrolmentRatios(t *testing.T) {
	rows := StateSummary(
		table(core.Enrolment),
		table(core.Demographic, rec("GOA", noDate, 50, 0)),
		table(core.Biometric, rec("GOA", noDate, 0, 70)),
	)
	if assert.Len(t, rows, 1) {
		assert.Equal(t, 0.0, rows[0].DemoPerEnrol)
		assert.Equal(t, 0.0, rows[0].BioPerEnrol)
		assert.False(t, math.IsInf(rows[0].DemoPerEnrol, 0) || math.IsNaN(rows[0].DemoPerEnrol))
	}
}

func TestStateSummaryNeverGroupsUnknown(t *testing.T) {
	rows := StateSummary(
		table(core.Enrolment, rec(core.UnknownState, noDate, 9), rec("GOA", noDate, 1)),
		table(core.Demographic),
		table(core.Biometric),
	)
	for _, r := range rows {
		assert.NotEqual(t, core.UnknownState, r.State)
	}
	assert.Len(t, rows, 1)
}

func TestEmptyInputs(t *testing.T) {
	empty := core.Table{}
	rows := StateSummary(empty, empty, empty)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	series := MonthlySeries(empty)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestMonthlySeries(t *testing.T) {
	enrol := table(core.Enrolment,
		rec("GOA", core.NewDate(2025, 3, 15), 1, 1, 1),
		rec("GOA", core.NewDate(2024, 12, 31), 2, 0, 0),
		rec("BIHAR", core.NewDate(2025, 3, 1), 0, 0, 4),
		rec("ATLANTIS", core.NewDate(2025, 1, 9), 5, 0, 0),
		rec("GOA", noDate, 1000, 0, 0),
	)

	got := MonthlySeries(enrol)
	want := []core.MonthlyPoint{
		{Month: "2024-12", TotalEnrol: 2},
		{Month: "2025-01", TotalEnrol: 5},
		{Month: "2025-03", TotalEnrol: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MonthlySeries mismatch (-want +got):\n%s", diff)
	}

	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Month, got[i].Month, "series must be strictly ascending")
	}
}

func TestForecast(t *testing.T) {
	tests := []struct {
		name   string
		series []core.MonthlyPoint
		want   []core.ForecastPoint
	}{
		{
			name:   "too short",
			series: []core.MonthlyPoint{{Month: "2025-01", TotalEnrol: 1}, {Month: "2025-02", TotalEnrol: 2}},
			want:   []core.ForecastPoint{},
		},
		{
			name: "rising",
			series: []core.MonthlyPoint{
				{Month: "2025-01", TotalEnrol: 10},
				{Month: "2025-02", TotalEnrol: 20},
				{Month: "2025-03", TotalEnrol: 30},
			},
			want: []core.ForecastPoint{
				{Month: "2025-04", Horizon: 1, LinearRegression: 40, MovingAverage: 20},
				{Month: "2025-05", Horizon: 2, LinearRegression: 50, MovingAverage: 20},
				{Month: "2025-06", Horizon: 3, LinearRegression: 60, MovingAverage: 20},
			},
		},
		{
			name: "falling is clamped at zero across a year boundary",
			series: []core.MonthlyPoint{
				{Month: "2024-10", TotalEnrol: 30},
				{Month: "2024-11", TotalEnrol: 20},
				{Month: "2024-12", TotalEnrol: 10},
			},
			want: []core.ForecastPoint{
				{Month: "2025-01", Horizon: 1, LinearRegression: 0, MovingAverage: 20},
				{Month: "2025-02", Horizon: 2, LinearRegression: 0, MovingAverage: 20},
				{Month: "2025-03", Horizon: 3, LinearRegression: 0, MovingAverage: 20},
			},
		},
		{
			name: "moving average uses the last three points",
			series: []core.MonthlyPoint{
				{Month: "2025-01", TotalEnrol: 100},
				{Month: "2025-02", TotalEnrol: 3},
				{Month: "2025-03", TotalEnrol: 3},
				{Month: "2025-04", TotalEnrol: 3},
			},
			want: []core.ForecastPoint{
				{Month: "2025-05", Horizon: 1, LinearRegression: 0, MovingAverage: 3},
				{Month: "2025-06", Horizon: 2, LinearRegression: 0, MovingAverage: 3},
				{Month: "2025-07", Horizon: 3, LinearRegression: 0, MovingAverage: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Forecast(tt.series, DefaultHorizon)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Forecast mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForecastFlatSeries(t *testing.T) {
	series := []core.MonthlyPoint{
		{Month: "2025-01", TotalEnrol: 5},
		{Month: "2025-02", TotalEnrol: 5},
		{Month: "2025-03", TotalEnrol: 5},
	}
	got := Forecast(series, 1)
	if assert.Len(t, got, 1) {
		assert.InDelta(t, 5, got[0].LinearRegression, 1e-9)
		assert.Equal(t, "2025-04", got[0].Month)
	}
	assert.Empty(t, Forecast(series, 0))
}
