package pipeline

import (
	"time"

	"aadhaar/internal/core"
	"aadhaar/internal/loader"
)

// Status is the outcome of a reload.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Reload triggers.
const (
	TriggerStartup = "startup"
	TriggerHTTP    = "http"
	TriggerAMQP    = "amqp"
	TriggerWatch   = "watch"
	TriggerCLI     = "cli"
)

// CategoryReport summarizes the load of one category within a reload.
type CategoryReport struct {
	Category     core.Category `json:"category"`
	Files        int           `json:"files"`
	RowsRead     int           `json:"rows_read"`
	RowsKept     int           `json:"rows_kept"`
	RowsUnknown  int           `json:"rows_unknown"`
	MissingDates int           `json:"missing_dates"`
	RoundedCells int           `json:"rounded_cells,omitempty"`
	InvalidCells int           `json:"invalid_cells,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Report describes one reload run.
type Report struct {
	RunID      string           `json:"run_id"`
	Version    uint64           `json:"version"`
	Status     Status           `json:"status"`
	Trigger    string           `json:"trigger"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"-"`
	DurationMs int64            `json:"duration_ms"`
	Cause      string           `json:"cause,omitempty"`
	Categories []CategoryReport `json:"categories"`
}

// Records returns the number of records kept across all categories.
func (r Report) Records() int {
	n := 0
	for _, c := range r.Categories {
		n += c.RowsKept
	}
	return n
}

// Failed returns the categories whose load failed.
func (r Report) Failed() []core.Category {
	var out []core.Category
	for _, c := range r.Categories {
		if c.Error != "" {
			out = append(out, c.Category)
		}
	}
	return out
}

func categoryReport(c core.Category, lr loader.Report, err error) CategoryReport {
	cr := CategoryReport{
		Category:     c,
		Files:        len(lr.Files),
		RowsRead:     lr.RowsRead,
		RowsKept:     lr.RowsKept,
		RowsUnknown:  lr.RowsUnknown,
		MissingDates: lr.MissingDates,
		RoundedCells: lr.RoundedCounters,
		InvalidCells: lr.InvalidCounters,
	}
	if err != nil {
		cr.RowsKept = 0
		cr.Error = err.Error()
	}
	return cr
}
