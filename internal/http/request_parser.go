package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"aadhaar/internal/core"
)

// Query parameter bounds.
const (
	DefaultTopN   = 10
	MaxTopN       = 50
	DefaultLimit  = 20
	MaxRunsLimit  = 100
	DefaultMetric = core.MetricTotalEnrol
)

// ErrInvalidParameter classifies query parameter errors.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParamError describes a rejected query parameter.
type ParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s=%q: %s", e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

// TopStatesParams holds the validated top-states query.
type TopStatesParams struct {
	Metric core.Metric
	N      int
}

// ParseTopStatesParams validates metric and n. An absent parameter takes its
// default; a present but empty one is rejected.
func ParseTopStatesParams(query url.Values) (TopStatesParams, error) {
	params := TopStatesParams{Metric: DefaultMetric, N: DefaultTopN}

	if query.Has("metric") {
		raw := query.Get("metric")
		m, err := core.ParseMetric(strings.TrimSpace(raw))
		if err != nil {
			return params, &ParamError{Param: "metric", Value: raw, Reason: "must be one of " + metricNames()}
		}
		params.Metric = m
	}

	n, err := parseIntParam(query, "n", DefaultTopN, 1, MaxTopN)
	if err != nil {
		return params, err
	}
	params.N = n
	return params, nil
}

// ParseLimitParam validates the reload history limit.
func ParseLimitParam(query url.Values) (int, error) {
	return parseIntParam(query, "limit", DefaultLimit, 1, MaxRunsLimit)
}

func parseIntParam(query url.Values, name string, def, lo, hi int) (int, error) {
	if !query.Has(name) {
		return def, nil
	}
	raw := query.Get(name)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParamError{Param: name, Value: raw, Reason: "must be an integer"}
	}
	if v < lo || v > hi {
		return 0, &ParamError{Param: name, Value: raw, Reason: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return v, nil
}

func metricNames() string {
	names := make([]string, 0, 3)
	for _, m := range core.Metrics() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}
