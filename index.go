package noteboks

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/jward/noteboks/internal/document"
	"github.com/jward/noteboks/internal/identity"
	"github.com/jward/noteboks/internal/links"
	"github.com/jward/noteboks/internal/runtime"
	"github.com/jward/noteboks/internal/store"
	"github.com/jward/noteboks/internal/syntax"
)

// DefaultScanWorkers bounds concurrent file reads during Scan.
const DefaultScanWorkers = 8

// Index owns every note of a vault, keyed by identity. A single mutex guards
// the note map and all note state; mutations and point queries alike run
// under it, so a query never observes a tree or link set derived from a
// buffer other than the current one.
type Index struct {
	root string

	mu        sync.Mutex
	notes     map[identity.Identity]*note
	conflicts []Conflict

	engine    *syntax.Engine
	extractor *links.Extractor
	extract   func(*syntax.Tree) []links.Link

	store     *store.Store
	ownsStore bool
	closed    bool

	hover       *runtime.Runtime
	hoverScript string
	hoverSource string

	logger      *slog.Logger
	scanWorkers int

	// beforeOp runs inside the lock at the start of every locked operation.
	// Tests use it to inject failures.
	beforeOp func(op string)
}

// note is the mutable state behind a Note. Fields are guarded by Index.mu.
type note struct {
	id   identity.Identity
	path string
	doc  *document.Document // nil until loaded

	tree        *syntax.Tree // nil until the first successful parse
	occurrences []links.Link
	links       links.Set
}

func (n *note) state() State {
	switch {
	case n.doc == nil:
		return StateUnloaded
	case n.tree == nil:
		return StateLoaded
	default:
		return StateParsed
	}
}

func (n *note) snapshot() Note {
	out := Note{
		ID:    n.id,
		Path:  n.path,
		URI:   identity.ToURI(n.path),
		State: n.state(),
		Links: n.links.Sorted(),
	}
	if n.doc != nil {
		out.LanguageID = n.doc.LanguageID()
		out.Version = n.doc.Version()
		out.Text = n.doc.Text()
	}
	return out
}

// vaultRootKey is the graph store metadata key holding the vault root.
const vaultRootKey = "vault_root"

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		ix.logger = l
	}
}

// WithHoverScript formats hover payloads with the Risor script at path.
func WithHoverScript(path string) Option {
	return func(ix *Index) {
		ix.hoverScript = path
	}
}

// WithHoverSource formats hover payloads with inline Risor source.
func WithHoverSource(source string) Option {
	return func(ix *Index) {
		ix.hoverSource = source
	}
}

// WithScanWorkers bounds the number of files Scan reads concurrently.
func WithScanWorkers(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.scanWorkers = n
		}
	}
}

// WithStore mirrors the link graph into s instead of a private in-memory
// database. The caller keeps ownership of s and must migrate it first.
func WithStore(s *Store) Option {
	return func(ix *Index) {
		ix.store = s
	}
}

// New creates an empty Index for the vault at root. It fails if the note
// grammar cannot be loaded; the index is unusable without it.
func New(root string, opts ...Option) (*Index, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("noteboks: vault root: %w", err)
	}
	ix := &Index{
		root:        abs,
		notes:       make(map[identity.Identity]*note),
		logger:      slog.New(slog.DiscardHandler),
		scanWorkers: DefaultScanWorkers,
	}
	for _, opt := range opts {
		opt(ix)
	}

	switch {
	case ix.hoverScript != "":
		if ix.hover, err = runtime.Load(ix.hoverScript); err != nil {
			return nil, fmt.Errorf("noteboks: hover script: %w", err)
		}
	case ix.hoverSource != "":
		ix.hover = runtime.NewRuntime(ix.hoverSource)
	}

	if ix.engine, err = syntax.New(); err != nil {
		return nil, fmt.Errorf("noteboks: load grammar: %w", err)
	}
	if ix.extractor, err = links.NewExtractor(ix.engine.Language()); err != nil {
		ix.engine.Close()
		return nil, fmt.Errorf("noteboks: %w", err)
	}
	ix.extract = ix.extractor.All

	if ix.store == nil {
		s, err := store.NewStore(store.MemoryDSN)
		if err != nil {
			ix.closeParser()
			return nil, fmt.Errorf("noteboks: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			ix.closeParser()
			return nil, fmt.Errorf("noteboks: migrate: %w", err)
		}
		ix.store, ix.ownsStore = s, true
	}
	if prev, err := ix.store.GetMetadata(vaultRootKey); err == nil && prev != "" && prev != abs {
		ix.logger.Warn("graph store was built for another vault", "store_root", prev, "root", abs)
	}
	if err := ix.store.SetMetadata(vaultRootKey, abs); err != nil {
		ix.logger.Warn("recording vault root", "err", err)
	}
	return ix, nil
}

func (ix *Index) closeParser() {
	ix.extractor.Close()
	ix.engine.Close()
}

// Close releases the parser and, unless one was supplied with WithStore, the
// graph store.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.closeParser()
	if ix.ownsStore {
		return ix.store.Close()
	}
	return nil
}

// Root returns the absolute vault root.
func (ix *Index) Root() string {
	return ix.root
}

// locked runs fn under the index lock. A panic in fn is logged and returned
// as ErrInternal; the lock is always released.
func (ix *Index) locked(op string, fn func() error) (err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ix.logger.Error("request panicked", "op", op, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("noteboks: %s: %w: %v", op, ErrInternal, r)
		}
	}()
	if ix.closed {
		return fmt.Errorf("noteboks: %s: %w", op, ErrClosed)
	}
	if ix.beforeOp != nil {
		ix.beforeOp(op)
	}
	return fn()
}

// Insert adds or replaces the note stored at path with text, then parses
// it. It is the insertion path used by Scan.
func (ix *Index) Insert(ctx context.Context, path, text string) error {
	id, ok := identity.FromPath(path)
	if !ok {
		return fmt.Errorf("noteboks: insert %s: %w", path, ErrUnresolved)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return ix.locked("insert", func() error {
		n := ix.put(id, path)
		defer ix.degradeOnPanic(n)
		n.doc = document.New("", text, 0)
		ix.relink(ctx, n, nil, true)
		return nil
	})
}

// Open replaces or inserts the buffer of the note at uri, as sent by an
// editor when it opens a document, then parses it.
func (ix *Index) Open(ctx context.Context, uri, languageID string, version int32, text string) error {
	path, ok := identity.PathFromURI(uri)
	if !ok {
		return fmt.Errorf("noteboks: open %s: %w", uri, ErrUnresolved)
	}
	id, ok := identity.FromPath(path)
	if !ok {
		return fmt.Errorf("noteboks: open %s: %w", uri, ErrUnresolved)
	}
	return ix.locked("open", func() error {
		n := ix.put(id, path)
		defer ix.degradeOnPanic(n)
		if n.doc == nil {
			n.doc = document.New(languageID, text, version)
		} else {
			n.doc.SetLanguageID(languageID)
			n.doc.Replace(text, version)
		}
		ix.relink(ctx, n, nil, true)
		return nil
	})
}

// Change applies an ordered batch of edits to the note at uri, then
// reparses and relinks it before returning. Edits arriving ahead of a
// missing version are held until it arrives.
func (ix *Index) Change(ctx context.Context, uri string, version int32, changes []ContentChange) error {
	path, ok := identity.PathFromURI(uri)
	if !ok {
		return fmt.Errorf("noteboks: change %s: %w", uri, ErrUnresolved)
	}
	id, ok := identity.FromPath(path)
	if !ok {
		return fmt.Errorf("noteboks: change %s: %w", uri, ErrUnresolved)
	}
	return ix.locked("change", func() error {
		n, ok := ix.notes[id]
		if !ok || n.doc == nil {
			return fmt.Errorf("noteboks: change %s: %w", uri, ErrUnresolved)
		}
		// Edits only make sense against the buffer they were made to; the
		// indexed file wins until the other one is opened.
		if n.path != path {
			ix.logger.Warn("change for a file that is not the indexed one", "note", id.String(), "indexed", n.path, "uri", uri)
			return fmt.Errorf("noteboks: change %s: %w", uri, ErrUnresolved)
		}
		defer ix.degradeOnPanic(n)
		res, err := n.doc.Apply(version, changes)
		if err != nil {
			return fmt.Errorf("noteboks: change %s: %w", uri, err)
		}
		if res.Deferred {
			ix.logger.Debug("change deferred", "note", id.String(), "version", version, "have", res.Version)
			return nil
		}
		ix.relink(ctx, n, res.Edits, res.Full)
		return nil
	})
}

// put returns the note for id, creating it if needed. A note coming from a
// different path than the one indexed replaces it; the collision is recorded.
// Must be called with ix.mu held.
func (ix *Index) put(id identity.Identity, path string) *note {
	n, ok := ix.notes[id]
	if !ok {
		n = &note{id: id, path: path}
		ix.notes[id] = n
		return n
	}
	if n.path != path {
		c := Conflict{ID: id, Kept: path, Replaced: n.path}
		ix.conflicts = append(ix.conflicts, c)
		ix.logger.Warn("identity collision", "note", id.String(), "kept", c.Kept, "replaced", c.Replaced)
		n.path = path
		n.doc = nil
	}
	return n
}

// degradeOnPanic is deferred by mutations. If the mutation panics part way,
// the buffer may no longer match the tree and links derived from it, so both
// are dropped and the note falls back to loaded, as after a failed parse.
// The panic is re-raised for locked to report.
func (ix *Index) degradeOnPanic(n *note) {
	r := recover()
	if r == nil {
		return
	}
	n.tree, n.occurrences, n.links = nil, nil, nil
	func() {
		defer func() {
			if r := recover(); r != nil {
				ix.logger.Error("mirroring degraded note", "note", n.id.String(), "panic", r)
			}
		}()
		ix.mirror(n)
	}()
	panic(r)
}

// relink re-derives the tree and links of n from its current buffer and
// mirrors the result into the graph store. It is the only writer of
// n.tree and n.links. When full is set, or n has no tree, the buffer is
// parsed from scratch; otherwise edits are applied to the previous tree for
// an incremental parse. A failed parse clears both the tree and the links.
// Must be called with ix.mu held.
func (ix *Index) relink(ctx context.Context, n *note, edits []document.Edit, full bool) {
	prev := n.tree
	if full {
		prev, edits = nil, nil
	}

	tree, err := ix.engine.Reparse(ctx, prev, edits, []byte(n.doc.Text()))
	if err != nil {
		ix.logger.Warn("reparse failed", "note", n.id.String(), "err", err)
		n.tree, n.occurrences, n.links = nil, nil, nil
		ix.mirror(n)
		return
	}

	occ := ix.extract(tree)
	n.tree, n.occurrences, n.links = tree, occ, links.Targets(occ)
	ix.mirror(n)
}

// mirror writes n and its link occurrences to the graph store. Store
// failures are logged; the in-memory index stays authoritative.
func (ix *Index) mirror(n *note) {
	rec := &store.Note{
		Name:        n.id.Name,
		Kind:        n.id.Kind.Keyword(),
		Path:        n.path,
		State:       n.state().String(),
		LastIndexed: time.Now(),
	}
	if n.doc != nil {
		rec.Version = n.doc.Version()
		rec.Hash = store.ContentHash(n.doc.Text())
		rec.LineCount = n.doc.LineCount()
	}

	rows := make([]store.Link, 0, len(n.occurrences))
	for _, l := range n.occurrences {
		r := n.doc.RangeOf(l.Start, l.End)
		row := store.Link{
			Target:    l.Target,
			StartLine: r.Start.Line,
			StartCol:  r.Start.Character,
			EndLine:   r.End.Line,
			EndCol:    r.End.Character,
		}
		if l.Resolved {
			name, kind := l.ID.Name, l.ID.Kind.Keyword()
			row.TargetName, row.TargetKind = &name, &kind
		}
		rows = append(rows, row)
	}

	if err := ix.store.SaveNote(rec, rows); err != nil {
		ix.logger.Error("mirroring note to graph store", "note", n.id.String(), "err", err)
	}
}

// Lookup returns a copy of the note with the given identity.
func (ix *Index) Lookup(id Identity) (Note, bool) {
	var (
		out Note
		ok  bool
	)
	_ = ix.locked("lookup", func() error {
		var n *note
		if n, ok = ix.notes[id]; ok {
			out = n.snapshot()
		}
		return nil
	})
	return out, ok
}

// LookupByURI returns a copy of the note a file URI refers to.
func (ix *Index) LookupByURI(uri string) (Note, bool) {
	id, ok := identity.FromURI(uri)
	if !ok {
		return Note{}, false
	}
	return ix.Lookup(id)
}

// Notes returns copies of all notes ordered by name, then kind.
func (ix *Index) Notes() []Note {
	var out []Note
	_ = ix.locked("notes", func() error {
		out = make([]Note, 0, len(ix.notes))
		for _, n := range ix.notes {
			out = append(out, n.snapshot())
		}
		return nil
	})
	slices.SortFunc(out, func(a, b Note) int { return identity.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of notes.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.notes)
}

// Conflicts returns the identity collisions seen so far, oldest first.
func (ix *Index) Conflicts() []Conflict {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return slices.Clone(ix.conflicts)
}

// GraphStats summarizes the mirrored link graph.
func (ix *Index) GraphStats() (GraphStats, error) {
	var st GraphStats
	err := ix.locked("stats", func() error {
		var err error
		if st, err = ix.store.Stats(); err != nil {
			return fmt.Errorf("noteboks: %w", err)
		}
		return nil
	})
	return st, err
}
