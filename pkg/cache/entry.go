package cache

import (
	"time"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

// Entry records an accepted batch.
type Entry struct {
	// Task is the id the service assigned to the batch.
	Task fssp.TaskID `json:"task"`

	// Items is the number of request items in the batch.
	Items int `json:"items"`

	// SubmittedAt is when the service accepted the batch.
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewEntry creates a journal entry.
func NewEntry(task fssp.TaskID, items int, at time.Time) *Entry {
	return &Entry{Task: task, Items: items, SubmittedAt: at}
}

// Age returns how long ago the batch was accepted.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.SubmittedAt)
}
