// Package task defines the task entity and its repository: the concrete
// parameterization of the generic sync engine for tasks.
package task

import (
	"time"

	"github.com/tildaslashalef/tasknest/internal/store"
)

// Priority represents how urgent a task is
type Priority string

const (
	// PriorityLow is for tasks that can wait
	PriorityLow Priority = "low"
	// PriorityMedium is the default priority
	PriorityMedium Priority = "medium"
	// PriorityHigh is for tasks that should be done first
	PriorityHigh Priority = "high"
)

// Task is a single to-do item. The embedded SyncMeta bookkeeping belongs
// to the repository engine; nothing else may touch it.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	store.SyncMeta
}

// GetID returns the task id
func (t *Task) GetID() string { return t.ID }

// SetID sets the task id
func (t *Task) SetID(id string) { t.ID = id }

// Meta returns the sync bookkeeping attached to this task
func (t *Task) Meta() *store.SyncMeta { return &t.SyncMeta }

// APITask is the wire shape of a task on the sync server.
type APITask struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateTaskInput carries the caller-supplied fields for a new task.
type CreateTaskInput struct {
	Title    string
	Notes    string
	Priority Priority
	DueDate  *time.Time
}

// UpdateTaskInput carries a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title     *string
	Notes     *string
	Priority  *Priority
	DueDate   *time.Time
	Completed *bool
}
