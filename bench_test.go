package noteboks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// benchNoteSource is a note of a few hundred lines with a link on every
// fourth line.
func benchNoteSource(lines int) string {
	var sb strings.Builder
	for i := range lines {
		if i%4 == 0 {
			fmt.Fprintf(&sb, "Line %d points at [item %d](<Item %d (list)>) for later.\n", i, i, i%17)
			continue
		}
		fmt.Fprintf(&sb, "Line %d is plain prose about nothing in particular.\n", i)
	}
	return sb.String()
}

func setupBenchVault(b *testing.B, notes int) string {
	b.Helper()
	root := b.TempDir()
	src := benchNoteSource(200)
	for i := range notes {
		path := filepath.Join(root, fmt.Sprintf("Note %03d.note", i))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return root
}

func BenchmarkScan(b *testing.B) {
	root := setupBenchVault(b, 100)
	ctx := context.Background()
	for b.Loop() {
		ix, err := New(root)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := ix.Scan(ctx); err != nil {
			b.Fatal(err)
		}
		ix.Close()
	}
}

func BenchmarkChange_Incremental(b *testing.B) {
	ix, err := New(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()
	ctx := context.Background()
	uri := uriOf(ix.Root(), "Big.note")
	if err := ix.Open(ctx, uri, "", 0, benchNoteSource(2000)); err != nil {
		b.Fatal(err)
	}

	version := int32(0)
	for b.Loop() {
		version++
		at := Position{Line: 1000, Character: 0}
		err := ix.Change(ctx, uri, version, []ContentChange{{Range: &Range{Start: at, End: at}, Text: "x"}})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHover(b *testing.B) {
	ix, err := New(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer ix.Close()
	ctx := context.Background()
	uri := uriOf(ix.Root(), "Big.note")
	if err := ix.Open(ctx, uri, "", 0, benchNoteSource(2000)); err != nil {
		b.Fatal(err)
	}

	pos := Position{Line: 1000, Character: len("Line 1000 points at [it")}
	for b.Loop() {
		h, err := ix.Hover(ctx, uri, pos)
		if err != nil || h == nil {
			b.Fatalf("hover: %v %v", h, err)
		}
	}
}
