package noteboks

import (
	"errors"

	"github.com/jward/noteboks/internal/document"
	"github.com/jward/noteboks/internal/identity"
	"github.com/jward/noteboks/internal/store"
)

var (
	// ErrUnresolved is returned when a path, URI or link does not name a
	// known note.
	ErrUnresolved = errors.New("unresolved note")

	// ErrStaleVersion is returned for a change that is not newer than the
	// buffer it targets. The index is unchanged.
	ErrStaleVersion = document.ErrStaleVersion

	// ErrVersionGap is returned when too many changes are queued behind a
	// missing version.
	ErrVersionGap = document.ErrVersionGap

	// ErrInternal is returned when a request fails unexpectedly. The index
	// remains usable.
	ErrInternal = errors.New("internal error")

	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("index closed")
)

// Public aliases for the internal types used in the Index API. These are Go
// type aliases, so no conversion is needed.

type Identity = identity.Identity
type Kind = identity.Kind
type Position = document.Position
type Range = document.Range
type ContentChange = document.Change
type Store = store.Store
type GraphStats = store.Stats

// Note kinds.
const (
	KindNote    = identity.Note
	KindArticle = identity.Article
	KindList    = identity.List
	KindIndex   = identity.Index
	KindDump    = identity.Dump
)

// State is the lifecycle stage of a note.
type State uint8

const (
	// StateUnloaded means the note has no buffer.
	StateUnloaded State = iota
	// StateLoaded means the note has a buffer but no tree, either because it
	// was never parsed or because the last parse failed.
	StateLoaded
	// StateParsed means the tree and links are derived from the current
	// buffer.
	StateParsed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateParsed:
		return "parsed"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Note is a point-in-time copy of an indexed note.
type Note struct {
	ID         Identity   `json:"id"`
	Path       string     `json:"path"`
	URI        string     `json:"uri"`
	LanguageID string     `json:"language_id,omitempty"`
	Version    int32      `json:"version"`
	State      State      `json:"state"`
	Text       string     `json:"-"`
	Links      []Identity `json:"links"`
}

// Conflict records two files that map to the same identity. The later one
// replaced the earlier one in the index.
type Conflict struct {
	ID       Identity `json:"id"`
	Kept     string   `json:"kept"`
	Replaced string   `json:"replaced"`
}

// Hover is the payload for a point query over a link.
type Hover struct {
	Contents string `json:"contents"`
	Range    Range  `json:"range"`
}

// Location is a position in a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Backlink is one link occurrence that points at a note.
type Backlink struct {
	Source   Identity `json:"source"`
	Location Location `json:"location"`
	Target   string   `json:"target"`
}

// ScanStats summarizes a vault scan.
type ScanStats struct {
	// Visited counts regular files seen.
	Visited int `json:"visited"`
	// Indexed counts notes inserted.
	Indexed int `json:"indexed"`
	// Skipped counts files with no note identity or unreadable content.
	Skipped int `json:"skipped"`
	// Conflicts counts identity collisions found during the scan.
	Conflicts int `json:"conflicts"`
}
