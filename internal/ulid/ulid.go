// Package ulid generates prefixed ULID identifiers for Tasknest records.
//
// ULIDs are lexicographically sortable and URL safe, which makes them good
// primary keys for the local cache. The prefix tells a reader (and the sync
// engine) what kind of record an id belongs to. The "temp" prefix is
// reserved: it marks an id minted on-device for a record created while
// offline, which is replaced by the remote-assigned id on reconciliation
// and is never sent to the remote store as a real key.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixTask marks task record ids
	PrefixTask = "task"

	// PrefixNote marks note record ids
	PrefixNote = "note"

	// PrefixSyncLog marks sync log entry ids
	PrefixSyncLog = "sync"

	// PrefixTemp marks locally minted placeholder ids for records created
	// while offline
	PrefixTemp = "temp"

	// PrefixSeparator separates the prefix from the ULID body
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// Generate returns a bare ULID string for the current timestamp.
func Generate() string {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyLock.Unlock()
	return id.String()
}

// GenerateWithPrefix returns a "prefix-ULID" string.
func GenerateWithPrefix(prefix string) string {
	return prefix + PrefixSeparator + Generate()
}

// Validate reports whether s is a valid ULID, with or without a prefix.
func Validate(s string) bool {
	if i := strings.Index(s, PrefixSeparator); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}

// TaskID generates a new task id.
func TaskID() string {
	return GenerateWithPrefix(PrefixTask)
}

// NoteID generates a new note id.
func NoteID() string {
	return GenerateWithPrefix(PrefixNote)
}

// SyncLogID generates a new sync log entry id.
func SyncLogID() string {
	return GenerateWithPrefix(PrefixSyncLog)
}

// TempID generates a temporary placeholder id for an entity created while
// offline.
func TempID() string {
	return GenerateWithPrefix(PrefixTemp)
}

// IsTempID reports whether id carries the reserved temporary-id marker.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, PrefixTemp+PrefixSeparator)
}
