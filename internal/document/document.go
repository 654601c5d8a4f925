// Package document holds the live text buffer of a note and applies
// editor-protocol edits to it.
//
// Positions follow the editor protocol: zero-based lines and zero-based
// columns counted in UTF-16 code units. Every applied edit is also reported
// as a byte-offset/byte-column Edit so a syntax tree built from the previous
// buffer can be updated incrementally.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrStaleVersion is returned for a change whose version is not newer
	// than the buffer's.
	ErrStaleVersion = errors.New("stale version")

	// ErrVersionGap is returned when too many out-of-order changes are
	// waiting for a missing predecessor.
	ErrVersionGap = errors.New("version gap")
)

// MaxPending bounds the number of out-of-order changes held per document.
const MaxPending = 64

// Position is a zero-based line and UTF-16 column.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Change is one content change. A nil Range replaces the whole document.
type Change struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// Point is a zero-based row and byte column, the coordinate system of the
// syntax tree.
type Point struct {
	Row    int
	Column int
}

// Edit describes a single splice in byte offsets and points, relative to the
// buffer as it was immediately before the splice.
type Edit struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Result reports what Apply did.
type Result struct {
	// Edits lists the splices applied, in order. Empty when Full is set.
	Edits []Edit
	// Full is set when at least one change replaced the whole buffer, which
	// breaks the lineage of any previously parsed tree.
	Full bool
	// Deferred is set when the change was queued behind a missing version.
	Deferred bool
	// Version is the buffer version after the call.
	Version int32
}

// Document is a versioned text buffer. It is not safe for concurrent use.
type Document struct {
	text       string
	version    int32
	languageID string
	lines      []int // byte offset of the first character of each line
	pending    map[int32][]Change
}

// New creates a document holding text at version.
func New(languageID, text string, version int32) *Document {
	d := &Document{languageID: languageID}
	d.Replace(text, version)
	return d
}

// Text returns the current buffer.
func (d *Document) Text() string { return d.text }

// Version returns the current version.
func (d *Document) Version() int32 { return d.version }

// LanguageID returns the language tag supplied when the document was opened.
func (d *Document) LanguageID() string { return d.languageID }

// SetLanguageID updates the language tag.
func (d *Document) SetLanguageID(id string) { d.languageID = id }

// LineCount returns the number of lines in the buffer.
func (d *Document) LineCount() int { return len(d.lines) }

// Pending returns the number of queued out-of-order changes.
func (d *Document) Pending() int { return len(d.pending) }

// Replace unconditionally sets the buffer and version and drops any queued
// changes.
func (d *Document) Replace(text string, version int32) {
	d.setText(text)
	d.version = version
	d.pending = nil
}

// Apply applies changes at version. Changes must arrive with strictly
// increasing versions; a version more than one ahead of the buffer is queued
// until its predecessors arrive, so concurrently delivered batches converge
// to the sequential result.
func (d *Document) Apply(version int32, changes []Change) (Result, error) {
	if version <= d.version {
		return Result{Version: d.version}, fmt.Errorf("%w: got %d, have %d", ErrStaleVersion, version, d.version)
	}
	if _, queued := d.pending[version]; queued {
		return Result{Version: d.version}, fmt.Errorf("%w: version %d already queued", ErrStaleVersion, version)
	}
	if version > d.version+1 {
		if len(d.pending) >= MaxPending {
			return Result{Version: d.version}, fmt.Errorf("%w: waiting for %d, got %d", ErrVersionGap, d.version+1, version)
		}
		if d.pending == nil {
			d.pending = make(map[int32][]Change)
		}
		d.pending[version] = append([]Change(nil), changes...)
		return Result{Deferred: true, Version: d.version}, nil
	}

	var res Result
	d.applyBatch(changes, &res)
	d.version = version
	for {
		next, ok := d.pending[d.version+1]
		if !ok {
			break
		}
		delete(d.pending, d.version+1)
		d.applyBatch(next, &res)
		d.version++
	}
	res.Version = d.version
	return res, nil
}

func (d *Document) applyBatch(changes []Change, res *Result) {
	for _, c := range changes {
		if c.Range == nil {
			d.setText(c.Text)
			res.Full = true
			res.Edits = nil
			continue
		}
		start := d.OffsetAt(c.Range.Start)
		end := d.OffsetAt(c.Range.End)
		if end < start {
			start, end = end, start
		}
		edit := Edit{
			StartByte:   start,
			OldEndByte:  end,
			NewEndByte:  start + len(c.Text),
			StartPoint:  d.PointAt(start),
			OldEndPoint: d.PointAt(end),
		}
		edit.NewEndPoint = advance(edit.StartPoint, c.Text)
		d.setText(d.text[:start] + c.Text + d.text[end:])
		if !res.Full {
			res.Edits = append(res.Edits, edit)
		}
	}
}

func (d *Document) setText(text string) {
	d.text = text
	d.lines = d.lines[:0]
	d.lines = append(d.lines, 0)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			d.lines = append(d.lines, i+1)
		}
	}
}

// lineBounds returns the byte range of line content, excluding the line
// terminator.
func (d *Document) lineBounds(line int) (int, int) {
	start := d.lines[line]
	end := len(d.text)
	if line+1 < len(d.lines) {
		end = d.lines[line+1] - 1
		if end > start && d.text[end-1] == '\r' {
			end--
		}
	}
	return start, end
}

// OffsetAt converts a position to a byte offset. Lines past the end clamp to
// the end of the buffer; columns past the end of a line clamp to the line
// end; a column inside a surrogate pair clamps to the start of the rune.
func (d *Document) OffsetAt(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lines) {
		return len(d.text)
	}
	start, end := d.lineBounds(p.Line)
	units := 0
	off := start
	for off < end && units < p.Character {
		r, size := utf8.DecodeRuneInString(d.text[off:end])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > p.Character {
			break
		}
		units += n
		off += size
	}
	return off
}

// PositionAt converts a byte offset to a position.
func (d *Document) PositionAt(offset int) Position {
	offset = clamp(offset, 0, len(d.text))
	line := d.lineOf(offset)
	start := d.lines[line]
	return Position{Line: line, Character: utf16Len(d.text[start:offset])}
}

// PointAt converts a byte offset to a row and byte column.
func (d *Document) PointAt(offset int) Point {
	offset = clamp(offset, 0, len(d.text))
	line := d.lineOf(offset)
	return Point{Row: line, Column: offset - d.lines[line]}
}

// RangeOf converts a byte span to a range.
func (d *Document) RangeOf(start, end int) Range {
	return Range{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

func (d *Document) lineOf(offset int) int {
	// first line whose start is beyond offset, minus one
	return sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > offset }) - 1
}

func advance(from Point, text string) Point {
	nl := strings.Count(text, "\n")
	if nl == 0 {
		return Point{Row: from.Row, Column: from.Column + len(text)}
	}
	return Point{Row: from.Row + nl, Column: len(text) - strings.LastIndexByte(text, '\n') - 1}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
