package api

import (
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/pipeline"
)

// BatchRow is one assembled batch outcome (aliased from the index layer).
type BatchRow = index.BatchRow

// QuarantineRow is one quarantined-file event (aliased from the index layer).
type QuarantineRow = index.QuarantineRow

// BatchListResponse wraps paginated batch listings.
type BatchListResponse struct {
	Batches []BatchRow `json:"batches"`
	Total   int        `json:"total"`
}

// QuarantineResponse wraps recent quarantine events.
type QuarantineResponse struct {
	Events []QuarantineRow `json:"events"`
}

// DeletionsResponse wraps the tail of the deletion ledger.
type DeletionsResponse struct {
	ControlNumbers []string `json:"control_numbers"`
}

// RunResponse is the outcome of a triggered harvest run.
type RunResponse = pipeline.Summary
