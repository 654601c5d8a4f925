package store

import "time"

// Note is one indexed note. Name and Kind form the unique key; Kind is the
// kind's link keyword.
type Note struct {
	ID          int64
	Name        string
	Kind        string
	Path        string
	Version     int32
	State       string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Link is one link occurrence inside a note. TargetName and TargetKind are
// nil when the target text does not resolve to a note identity.
type Link struct {
	ID         int64
	NoteID     int64
	Target     string
	TargetName *string
	TargetKind *string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// Backlink is a link occurrence joined with the note that contains it.
type Backlink struct {
	Source Note
	Link   Link
}

// Stats summarizes the graph.
type Stats struct {
	Notes           int
	Links           int
	ResolvedLinks   int
	DanglingTargets int
}
