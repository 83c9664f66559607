package storage

import (
	"time"

	"ccload/internal/export"
)

// HistoryItem is one finished ccload invocation.
type HistoryItem struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Mode      string          `json:"mode"`
	Spec      RunSpec         `json:"spec"`
	Reports   []export.Report `json:"reports"`
}

// RunSpec records how a run was invoked.
type RunSpec struct {
	Target      string   `json:"target"`
	Requests    int      `json:"requests"`
	Concurrency int      `json:"concurrency"`
	Method      string   `json:"method"`
	Workers     []string `json:"workers,omitempty"`
}
