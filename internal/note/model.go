// Package note defines the note entity and its repository.
package note

import (
	"time"

	"github.com/tildaslashalef/tasknest/internal/store"
)

// Note is a free-form text record, optionally pinned.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`

	store.SyncMeta
}

func (n *Note) GetID() string         { return n.ID }
func (n *Note) SetID(id string)       { n.ID = id }
func (n *Note) Meta() *store.SyncMeta { return &n.SyncMeta }

// APINote is the wire shape of a note on the sync server.
type APINote struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Pinned    bool      `json:"pinned"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateNoteInput carries the caller-supplied fields for a new note.
type CreateNoteInput struct {
	Title string
	Body  string
}

// UpdateNoteInput carries a partial update; nil fields are left unchanged.
type UpdateNoteInput struct {
	Title  *string
	Body   *string
	Pinned *bool
}
