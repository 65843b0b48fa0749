package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"aadhaar/internal/pipeline"
)

// RoutingKeyReloaded is the routing key of dataset.reloaded events.
const RoutingKeyReloaded = "dataset.reloaded"

// ReloadRequest asks the service to run a full reload. It carries no data:
// the service always reloads the whole input directory.
type ReloadRequest struct {
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReloadRequest creates a request with a fresh ID
func NewReloadRequest(reason, requestedBy string) *ReloadRequest {
	return &ReloadRequest{
		RequestID:   uuid.NewString(),
		Reason:      reason,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReloadRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadRequestFromJSON creates a request from JSON bytes
func ReloadRequestFromJSON(data []byte) (*ReloadRequest, error) {
	var msg ReloadRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DatasetReloaded is published after every snapshot swap.
type DatasetReloaded struct {
	RunID      string                    `json:"run_id"`
	Version    uint64                    `json:"version"`
	Status     pipeline.Status           `json:"status"`
	Trigger    string                    `json:"trigger"`
	Degraded   bool                      `json:"degraded"`
	Records    int                       `json:"records"`
	States     int                       `json:"states"`
	DurationMs int64                     `json:"duration_ms"`
	Categories []pipeline.CategoryReport `json:"categories"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// NewDatasetReloaded builds the event for a completed reload.
func NewDatasetReloaded(snap *pipeline.Snapshot, report pipeline.Report) *DatasetReloaded {
	return &DatasetReloaded{
		RunID:      report.RunID,
		Version:    report.Version,
		Status:     report.Status,
		Trigger:    report.Trigger,
		Degraded:   snap.Degraded,
		Records:    report.Records(),
		States:     len(snap.Summary),
		DurationMs: report.DurationMs,
		Categories: report.Categories,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *DatasetReloaded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetReloadedFromJSON creates an event from JSON bytes
func DatasetReloadedFromJSON(data []byte) (*DatasetReloaded, error) {
	var msg DatasetReloaded
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
