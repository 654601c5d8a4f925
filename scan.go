package noteboks

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/jward/noteboks/internal/identity"
)

// Scan walks the vault root and inserts every note file it finds. Files are
// read concurrently but inserted in lexical walk order, so when two files
// map to the same identity the later one wins deterministically. Hidden
// directories are skipped, as are symlinks and other non-regular files.
// Unreadable files and files that are not valid UTF-8 are skipped with a
// warning.
func (ix *Index) Scan(ctx context.Context) (ScanStats, error) {
	var stats ScanStats

	paths, visited, err := ix.walkNoteFiles(ctx)
	if err != nil {
		return stats, err
	}
	stats.Visited = visited
	stats.Skipped = visited - len(paths)

	texts := make([]string, len(paths))
	loaded := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.scanWorkers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				ix.logger.Warn("skipping unreadable note", "path", path, "err", err)
				return nil
			}
			if !utf8.Valid(data) {
				ix.logger.Warn("skipping note that is not valid UTF-8", "path", path)
				return nil
			}
			texts[i], loaded[i] = string(data), true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("noteboks: scan: %w", err)
	}

	before := len(ix.Conflicts())
	for i, path := range paths {
		if !loaded[i] {
			stats.Skipped++
			continue
		}
		if err := ix.Insert(ctx, path, texts[i]); err != nil {
			return stats, fmt.Errorf("noteboks: scan: %w", err)
		}
		stats.Indexed++
	}
	stats.Conflicts = len(ix.Conflicts()) - before

	if err := ix.pruneStore(); err != nil {
		return stats, fmt.Errorf("noteboks: scan: %w", err)
	}

	ix.logger.Info("vault scanned",
		"root", ix.root,
		"visited", stats.Visited,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"conflicts", stats.Conflicts,
	)
	return stats, nil
}

// pruneStore deletes graph store rows for notes the index no longer holds,
// such as files removed since a shared store was last written.
func (ix *Index) pruneStore() error {
	return ix.locked("prune", func() error {
		recs, err := ix.store.Notes()
		if err != nil {
			return err
		}
		pruned := 0
		for _, rec := range recs {
			kind, ok := identity.KindFromKeyword(rec.Kind)
			if ok {
				if _, held := ix.notes[Identity{Name: rec.Name, Kind: kind}]; held {
					continue
				}
			}
			if err := ix.store.DeleteNote(rec.Name, rec.Kind); err != nil {
				return err
			}
			pruned++
		}
		if pruned > 0 {
			ix.logger.Info("pruned stale notes from graph store", "count", pruned)
		}
		return nil
	})
}

// walkNoteFiles returns the regular files under the root that carry a note
// identity, in lexical order, and the number of regular files seen.
func (ix *Index) walkNoteFiles(ctx context.Context) ([]string, int, error) {
	var (
		paths   []string
		visited int
	)
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == ix.root {
				return err
			}
			ix.logger.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != ix.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		visited++
		if _, ok := identity.FromPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("noteboks: walk %s: %w", ix.root, err)
	}
	return paths, visited, nil
}
