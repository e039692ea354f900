package note

import (
	"database/sql"
	"time"

	"github.com/tildaslashalef/tasknest/internal/connectivity"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/repository"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/synclog"
)

// Repository is the sync engine instantiated for notes.
type Repository = repository.Repository[*Note, CreateNoteInput, UpdateNoteInput, APINote]

// NewRepository wires the note repository against the notes table and the
// notes resource.
func NewRepository(
	db *sql.DB,
	remoteCfg store.RemoteConfig,
	monitor connectivity.Monitor,
	logs synclog.Repository,
	logger *loggy.Logger,
) *Repository {
	local := store.NewSQLStore(db, "notes", func() *Note { return &Note{} }, logger)
	remote := store.NewRemoteStore[APINote](remoteCfg, "notes", logger)
	return repository.New("notes", local, remote, monitor, Transforms(), logs, logger)
}

// Transforms returns the note transform set.
func Transforms() repository.Transforms[*Note, CreateNoteInput, UpdateNoteInput, APINote] {
	return repository.Transforms[*Note, CreateNoteInput, UpdateNoteInput, APINote]{
		FromAPI: func(a APINote) *Note {
			n := &Note{
				ID:        a.ID,
				Title:     a.Title,
				Body:      a.Body,
				Pinned:    a.Pinned,
				CreatedAt: a.CreatedAt,
			}
			n.SyncMeta.Deleted = a.Deleted
			n.SyncMeta.LastUpdated = a.UpdatedAt
			return n
		},
		ToAPI: func(n *Note) APINote {
			return APINote{
				ID:        n.ID,
				Title:     n.Title,
				Body:      n.Body,
				Pinned:    n.Pinned,
				Deleted:   n.SyncMeta.Deleted,
				CreatedAt: n.CreatedAt,
				UpdatedAt: n.SyncMeta.LastUpdated,
			}
		},
		FromCreate: func(in CreateNoteInput) *Note {
			return &Note{
				Title:     in.Title,
				Body:      in.Body,
				CreatedAt: time.Now().UTC(),
			}
		},
		ApplyUpdate: func(n *Note, in UpdateNoteInput) *Note {
			if in.Title != nil {
				n.Title = *in.Title
			}
			if in.Body != nil {
				n.Body = *in.Body
			}
			if in.Pinned != nil {
				n.Pinned = *in.Pinned
			}
			return n
		},
	}
}
