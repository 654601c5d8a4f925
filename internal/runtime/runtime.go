// Package runtime embeds a Risor VM used to format hover payloads.
//
// A hover script is a Risor program whose final expression becomes the hover
// text. It receives the link under the cursor as globals:
//
//	target     string  link target text as written
//	name       string  resolved note name ("" if unresolved)
//	kind       string  resolved note kind keyword ("" if unresolved)
//	resolved   bool    whether the target resolved to an identity
//	exists     bool    whether the target note is in the index
//	path       string  target note path ("" if not indexed)
//	preview    string  first non-empty line of the target note
//	backlinks  int     number of link occurrences pointing at the target
//	outlinks   int     number of link occurrences inside the target note
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
)

// HoverInput describes the link a hover request landed on.
type HoverInput struct {
	Target    string
	Name      string
	Kind      string
	Resolved  bool
	Exists    bool
	Path      string
	Preview   string
	Backlinks int
	Outlinks  int
}

// Runtime evaluates a hover script.
type Runtime struct {
	source string
	label  string
}

// RuntimeOption configures how Load finds the script.
type RuntimeOption func(*loader)

type loader struct {
	fsys fs.FS
}

// WithRuntimeFS loads the script from fsys instead of from disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(l *loader) {
		l.fsys = fsys
	}
}

// NewRuntime wraps inline Risor source.
func NewRuntime(source string) *Runtime {
	return &Runtime{source: source, label: "<inline>"}
}

// Load reads a hover script from path.
func Load(path string, opts ...RuntimeOption) (*Runtime, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	src, err := l.load(path)
	if err != nil {
		return nil, err
	}
	return &Runtime{source: src, label: path}, nil
}

func (l *loader) load(path string) (string, error) {
	if l.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(l.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	return string(data), nil
}

// RenderHover runs the script against in and returns its result as text. A
// nil result renders as the empty string; non-string results use their
// Risor representation.
func (r *Runtime) RenderHover(ctx context.Context, in HoverInput) (string, error) {
	globals := map[string]object.Object{
		"target":    object.NewString(in.Target),
		"name":      object.NewString(in.Name),
		"kind":      object.NewString(in.Kind),
		"resolved":  object.NewBool(in.Resolved),
		"exists":    object.NewBool(in.Exists),
		"path":      object.NewString(in.Path),
		"preview":   object.NewString(in.Preview),
		"backlinks": object.NewInt(int64(in.Backlinks)),
		"outlinks":  object.NewInt(int64(in.Outlinks)),
	}

	opts := make([]risor.Option, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	result, err := risor.Eval(ctx, r.source, opts...)
	if err != nil {
		return "", fmt.Errorf("runtime: script %s: %w", r.label, err)
	}
	if result == nil || result == object.Nil {
		return "", nil
	}
	if s, ok := result.(*object.String); ok {
		return s.Value(), nil
	}
	return result.Inspect(), nil
}
