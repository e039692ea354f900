package task

import (
	"database/sql"
	"time"

	"github.com/tildaslashalef/tasknest/internal/connectivity"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/repository"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/synclog"
)

// Repository is the sync engine instantiated for tasks.
type Repository = repository.Repository[*Task, CreateTaskInput, UpdateTaskInput, APITask]

// NewRepository wires the task repository: local SQLite cache over the
// tasks table, remote HTTP adapter over the tasks resource, and the task
// transform set.
func NewRepository(
	db *sql.DB,
	remoteCfg store.RemoteConfig,
	monitor connectivity.Monitor,
	logs synclog.Repository,
	logger *loggy.Logger,
) *Repository {
	local := store.NewSQLStore(db, "tasks", func() *Task { return &Task{} }, logger)
	remote := store.NewRemoteStore[APITask](remoteCfg, "tasks", logger)
	return repository.New("tasks", local, remote, monitor, Transforms(), logs, logger)
}

// Transforms returns the four data-shape conversions parameterizing the
// generic engine for tasks.
func Transforms() repository.Transforms[*Task, CreateTaskInput, UpdateTaskInput, APITask] {
	return repository.Transforms[*Task, CreateTaskInput, UpdateTaskInput, APITask]{
		FromAPI:     fromAPI,
		ToAPI:       toAPI,
		FromCreate:  fromCreate,
		ApplyUpdate: applyUpdate,
	}
}

func fromAPI(a APITask) *Task {
	t := &Task{
		ID:          a.ID,
		Title:       a.Title,
		Notes:       a.Notes,
		Priority:    Priority(a.Priority),
		DueDate:     a.DueDate,
		Completed:   a.Completed,
		CompletedAt: a.CompletedAt,
		CreatedAt:   a.CreatedAt,
	}
	t.SyncMeta.Deleted = a.Deleted
	t.SyncMeta.LastUpdated = a.UpdatedAt
	return t
}

func toAPI(t *Task) APITask {
	return APITask{
		ID:          t.ID,
		Title:       t.Title,
		Notes:       t.Notes,
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		Deleted:     t.SyncMeta.Deleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.SyncMeta.LastUpdated,
	}
}

func fromCreate(in CreateTaskInput) *Task {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	return &Task{
		Title:     in.Title,
		Notes:     in.Notes,
		Priority:  priority,
		DueDate:   in.DueDate,
		CreatedAt: time.Now().UTC(),
	}
}

func applyUpdate(t *Task, in UpdateTaskInput) *Task {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Notes != nil {
		t.Notes = *in.Notes
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
		if *in.Completed {
			now := time.Now().UTC()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}
	return t
}
