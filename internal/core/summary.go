package core

import (
	"encoding/json"
	"errors"
	"strconv"
)

const (
	MetricTotalEnrol       Metric = "total_enrol"
	MetricTotalDemoUpdates Metric = "total_demo_updates"
	MetricTotalBioUpdates  Metric = "total_bio_updates"
)

// Fixed anomaly thresholds on the update-per-enrolment ratios.
const (
	DemoAnomalyThreshold = 20.0
	BioAnomalyThreshold  = 30.0
)

var ErrUnknownMetric = errors.New("unknown metric")

// Metric names a ranking column of the state summary.
type Metric string

// StateSummaryRow aggregates one canonical state across all categories.
type StateSummaryRow struct {
	State            string  `json:"state"`
	TotalEnrol       int64   `json:"total_enrol"`
	TotalDemoUpdates int64   `json:"total_demo_updates"`
	TotalBioUpdates  int64   `json:"total_bio_updates"`
	DemoPerEnrol     float64 `json:"demo_per_enrol"`
	BioPerEnrol      float64 `json:"bio_per_enrol"`
}

// MonthlyPoint is one bucket of the monthly enrolment series.
type MonthlyPoint struct {
	Month      string `json:"month"`
	TotalEnrol int64  `json:"total_enrol"`
}

// RankedState is one row of a top-states query. It marshals as
// {"state": ..., "<metric>": value}.
type RankedState struct {
	State  string
	Metric Metric
	Value  int64
}

func (r RankedState) MarshalJSON() ([]byte, error) {
	state, err := json.Marshal(r.State)
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(string(r.Metric))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(state)+len(key)+32)
	buf = append(buf, `{"state":`...)
	buf = append(buf, state...)
	buf = append(buf, ',')
	buf = append(buf, key...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, r.Value, 10)
	return append(buf, '}'), nil
}

// AnomalyPoint flags states whose update ratios exceed the fixed thresholds.
type AnomalyPoint struct {
	State        string  `json:"state"`
	DemoPerEnrol float64 `json:"demo_per_enrol"`
	BioPerEnrol  float64 `json:"bio_per_enrol"`
	IsAnomaly    bool    `json:"is_anomaly"`
}

// Stats holds grand totals across all states.
type Stats struct {
	TotalStates      int   `json:"total_states"`
	TotalEnrolments  int64 `json:"total_enrolments"`
	TotalDemoUpdates int64 `json:"total_demo_updates"`
	TotalBioUpdates  int64 `json:"total_bio_updates"`
}

// ForecastPoint is one projected month of enrolments.
type ForecastPoint struct {
	Month            string  `json:"month"`
	Horizon          int     `json:"horizon"`
	LinearRegression float64 `json:"linear_regression"`
	MovingAverage    float64 `json:"moving_average"`
}

// UnmappedLabel counts rows whose state label is neither canonical nor aliased.
type UnmappedLabel struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Rows     int      `json:"rows"`
}

// Metrics lists the rankable metrics.
func Metrics() []Metric {
	return []Metric{MetricTotalEnrol, MetricTotalDemoUpdates, MetricTotalBioUpdates}
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	switch m {
	case MetricTotalEnrol, MetricTotalDemoUpdates, MetricTotalBioUpdates:
		return m, nil
	default:
		return "", ErrUnknownMetric
	}
}

// Value extracts the metric from a summary row.
func (m Metric) Value(row StateSummaryRow) int64 {
	switch m {
	case MetricTotalEnrol:
		return row.TotalEnrol
	case MetricTotalDemoUpdates:
		return row.TotalDemoUpdates
	case MetricTotalBioUpdates:
		return row.TotalBioUpdates
	default:
		return 0
	}
}

// IsAnomalous applies the fixed thresholds to a pair of ratios.
func IsAnomalous(demoPerEnrol, bioPerEnrol float64) bool {
	return demoPerEnrol > DemoAnomalyThreshold || bioPerEnrol > BioAnomalyThreshold
}
