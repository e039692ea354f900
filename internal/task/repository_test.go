package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCreateDefaults(t *testing.T) {
	created := fromCreate(CreateTaskInput{Title: "write report"})

	assert.Equal(t, "write report", created.Title)
	assert.Equal(t, PriorityMedium, created.Priority, "priority defaults to medium")
	assert.Empty(t, created.ID, "no id until a store assigns one")
	assert.False(t, created.CreatedAt.IsZero())
}

func TestApplyUpdatePartial(t *testing.T) {
	existing := &Task{
		ID:       "task-1",
		Title:    "original",
		Notes:    "keep me",
		Priority: PriorityLow,
	}

	title := "renamed"
	priority := PriorityHigh
	updated := applyUpdate(existing, UpdateTaskInput{
		Title:    &title,
		Priority: &priority,
	})

	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, PriorityHigh, updated.Priority)
	assert.Equal(t, "keep me", updated.Notes, "unset fields are untouched")
}

func TestApplyUpdateCompletion(t *testing.T) {
	existing := &Task{ID: "task-1", Title: "finish"}

	done := true
	updated := applyUpdate(existing, UpdateTaskInput{Completed: &done})
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.CompletedAt)

	undone := false
	updated = applyUpdate(updated, UpdateTaskInput{Completed: &undone})
	assert.False(t, updated.Completed)
	assert.Nil(t, updated.CompletedAt, "reopening clears the completion time")
}

func TestAPIRoundTrip(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	original := &Task{
		ID:        "task-1",
		Title:     "ship release",
		Notes:     "tag first",
		Priority:  PriorityHigh,
		DueDate:   &due,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	original.SyncMeta.Deleted = true

	wire := toAPI(original)
	assert.Equal(t, "high", wire.Priority)
	assert.True(t, wire.Deleted)

	back := fromAPI(wire)
	assert.Equal(t, original.ID, back.ID)
	assert.Equal(t, original.Title, back.Title)
	assert.Equal(t, original.Priority, back.Priority)
	assert.True(t, back.SyncMeta.Deleted)
	require.NotNil(t, back.DueDate)
	assert.True(t, back.DueDate.Equal(due))
}

func TestMetaAccessors(t *testing.T) {
	task := &Task{ID: "task-1"}

	task.SetID("task-2")
	assert.Equal(t, "task-2", task.GetID())

	task.Meta().MarkPending("offline")
	assert.True(t, task.SyncMeta.PendingSync)
	assert.Equal(t, "offline", task.SyncMeta.SyncError)

	task.Meta().MarkSynced()
	assert.False(t, task.SyncMeta.PendingSync)
	assert.Empty(t, task.SyncMeta.SyncError)
}
