package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier used as a deduplication key.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Hex renders the ID as a fixed-width, 16 character hex string suitable for
// a CHAR(16) column.
func (id ID) Hex() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// EventKind distinguishes the two archive element types that are imported.
type EventKind string

const (
	// EventMessage is a chat line sent from one user to one or more recipients.
	EventMessage EventKind = "message"
	// EventInvitation is a file transfer or activity invitation. It has no recipients.
	EventInvitation EventKind = "invitation"
)

// ArchiveEvent is one Message or Invitation element parsed from a chat-log archive.
type ArchiveEvent struct {
	SessionID  string    // Archive file name followed by the element's SessionID attribute
	Kind       EventKind
	Timestamp  time.Time // Always UTC
	SourceFile string
	Color      string   // "#RRGGBB" or empty when the style carries no color
	From       string   // Sender display name
	To         []string // Recipient display names; nil for invitations
	Body       string

	// Participants holds the logon names of everyone involved in the event.
	// It is used for allow-list filtering and is never persisted.
	Participants map[string]struct{}
}

// Key returns the deduplication key of the event. Two events with the same
// session, time, sender and body share a key.
func (e *ArchiveEvent) Key() ID {
	var b strings.Builder
	b.WriteString(e.SessionID)
	b.WriteByte(0)
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte(0)
	b.WriteString(e.From)
	b.WriteByte(0)
	b.WriteString(e.Body)
	return IDFromContent(b.String())
}

// RemoteEntry is one entry of a remote folder listing.
type RemoteEntry struct {
	Path     string // Lower-cased full path
	IsFolder bool
}

// IsCandidate reports whether the entry is a file worth downloading for
// classification.
func (e RemoteEntry) IsCandidate() bool {
	return !e.IsFolder && strings.HasSuffix(strings.ToLower(e.Path), ".jpg")
}

// ClassifiedPicture is a remote path assigned to a topic.
type ClassifiedPicture struct {
	Path  string
	Topic Topic
}

// PictureRecord is a row of the picture table.
type PictureRecord struct {
	PicID int64
	Path  string
	Topic Topic
	Taken *time.Time // nil until the capture time is known
	Faces []int
}

// Face maps a person identifier to the display name used for them.
type Face struct {
	GargID int
	Name   string
}

// Checkpoint records where a listing left off so the next run can continue
// incrementally.
type Checkpoint struct {
	Name      string
	Cursor    string
	UpdatedAt time.Time
}
