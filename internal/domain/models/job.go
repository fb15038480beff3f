package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the outcome of a conversion run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// OverflowPolicy decides what happens to values beyond the header width
type OverflowPolicy string

const (
	OverflowDrop  OverflowPolicy = "drop"
	OverflowKeep  OverflowPolicy = "keep"
	OverflowError OverflowPolicy = "error"
)

// DefaultOverflowKey is the field that collects excess values under OverflowKeep
const DefaultOverflowKey = "_overflow"

// Valid reports whether p is a known policy
func (p OverflowPolicy) Valid() bool {
	switch p {
	case OverflowDrop, OverflowKeep, OverflowError:
		return true
	}
	return false
}

// Result describes a finished conversion run
type Result struct {
	RunID        uuid.UUID     `json:"run_id"`
	Status       RunStatus     `json:"status"`
	InputPath    string        `json:"input_path"`
	OutputPath   string        `json:"output_path"`
	Format       Format        `json:"format"`
	Header       []string      `json:"header"`
	Records      int           `json:"records"`
	OverflowRows int           `json:"overflow_rows"`
	BytesRead    int64         `json:"bytes_read"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
