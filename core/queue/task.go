// Package queue sequences PDF processing tasks. Tasks are processed one at
// a time in insertion order by a single background worker; status
// transitions are announced on a typed event bus and terminal states are
// recorded to an optional history store. The processing work itself is an
// injected callback, so the queue carries no Excel or filesystem concerns.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

// Task lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is one PDF awaiting template-driven renaming. FilterValues are the
// user-entered values matched against the spreadsheet's filter columns;
// RowIndex is the matched spreadsheet row once known. The Original* and
// Processed* fields record enough state to undo a move and its Excel
// hyperlink update.
type Task struct {
	ID                string    `json:"id"`
	PDFPath           string    `json:"pdf_path"`
	FilterValues      []string  `json:"filter_values"`
	RowIndex          int       `json:"row_index"`
	Status            Status    `json:"status"`
	ErrorMsg          string    `json:"error_msg,omitempty"`
	OriginalLocation  string    `json:"original_location,omitempty"`
	ProcessedLocation string    `json:"processed_location,omitempty"`
	OriginalHyperlink string    `json:"original_hyperlink,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	FinishedAt        time.Time `json:"finished_at,omitzero"`
}

// NewTask builds a pending task with a fresh unique ID.
func NewTask(pdfPath string, filterValues []string) *Task {
	return &Task{
		ID:               uuid.New().String(),
		PDFPath:          pdfPath,
		FilterValues:     filterValues,
		RowIndex:         -1,
		Status:           StatusPending,
		OriginalLocation: pdfPath,
		CreatedAt:        time.Now(),
	}
}
