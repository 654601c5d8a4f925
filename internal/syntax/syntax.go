// Package syntax owns the tree-sitter parser used to turn a note buffer into
// a concrete syntax tree.
//
// Notes use inline markdown syntax, so the grammar is tree-sitter's
// markdown-inline grammar. A single Engine holds one parser behind a mutex;
// tree-sitter parsers are not reentrant.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	inline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"

	"github.com/jward/noteboks/internal/document"
)

// ErrNoTree is returned when the parser produces no tree.
var ErrNoTree = errors.New("syntax: parser returned no tree")

// ErrGrammar is returned by New when the grammar cannot be loaded.
var ErrGrammar = errors.New("syntax: grammar unavailable")

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the note grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = inline.GetLanguage()
	})
	return grammar
}

// Tree is a parsed buffer. The source slice is the exact buffer the tree was
// built from and must not be modified.
type Tree struct {
	tree *sitter.Tree
	src  []byte
}

// Root returns the root node.
func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

// Source returns the buffer the tree was parsed from.
func (t *Tree) Source() []byte { return t.src }

// Text returns the buffer text spanned by the root node.
func (t *Tree) Text() string {
	root := t.Root()
	return string(t.src[root.StartByte():root.EndByte()])
}

// HasError reports whether the tree contains syntax errors. Such trees are
// still usable; tree-sitter recovers locally.
func (t *Tree) HasError() bool { return t.Root().HasError() }

// Engine parses note buffers. It is safe for concurrent use; calls are
// serialized.
type Engine struct {
	mu     sync.Mutex
	lang   *sitter.Language
	parser *sitter.Parser
}

// New loads the grammar and creates a parser for it.
func New() (*Engine, error) {
	lang := Language()
	if lang == nil {
		return nil, ErrGrammar
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return &Engine{lang: lang, parser: p}, nil
}

// Language returns the grammar the engine parses with.
func (e *Engine) Language() *sitter.Language { return e.lang }

// Close releases the parser.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parser != nil {
		e.parser.Close()
		e.parser = nil
	}
}

// Reparse parses src. When prev is non-nil the edits, which must describe how
// prev's buffer became src, are applied to it first and unchanged regions of
// prev are reused. prev must not be used by the caller afterwards.
func (e *Engine) Reparse(ctx context.Context, prev *Tree, edits []document.Edit, src []byte) (*Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.parser == nil {
		return nil, fmt.Errorf("syntax: engine closed")
	}

	var old *sitter.Tree
	if prev != nil {
		old = prev.tree
		for _, ed := range edits {
			old.Edit(toInput(ed))
		}
	}

	t, err := e.parser.ParseCtx(ctx, old, src)
	if err != nil || t == nil {
		// An aborted parse is resumed by the next call unless the parser is
		// reset, and the resumed parse would read the previous buffer.
		e.parser.Reset()
		if err != nil {
			return nil, fmt.Errorf("syntax: parse: %w", err)
		}
		return nil, ErrNoTree
	}
	return &Tree{tree: t, src: src}, nil
}

func toInput(ed document.Edit) sitter.EditInput {
	return sitter.EditInput{
		StartIndex:  uint32(ed.StartByte),
		OldEndIndex: uint32(ed.OldEndByte),
		NewEndIndex: uint32(ed.NewEndByte),
		StartPoint:  toPoint(ed.StartPoint),
		OldEndPoint: toPoint(ed.OldEndPoint),
		NewEndPoint: toPoint(ed.NewEndPoint),
	}
}

func toPoint(p document.Point) sitter.Point {
	return sitter.Point{Row: uint32(p.Row), Column: uint32(p.Column)}
}
