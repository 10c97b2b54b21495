package jobs

import (
	"encoding/json"
	"time"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record tracks one ingestion job through its lifecycle. Attempts counts
// queue deliveries, not per-stage retries; those happen inside a single
// delivery.
type Record struct {
	ID             string          `json:"id"`
	FileID         string          `json:"file_id"`
	FileURL        string          `json:"file_url"`
	Status         string          `json:"status"`
	Stage          string          `json:"stage,omitempty"`
	Classification string          `json:"classification,omitempty"`
	Error          string          `json:"error,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
