package noteboks

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/noteboks/internal/identity"
	"github.com/jward/noteboks/internal/links"
	"github.com/jward/noteboks/internal/runtime"
)

// Hover returns the hover payload for the link under pos in the note at uri,
// or nil when pos is not on a link. The payload is the link target exactly as
// written, or the output of the hover script when one is configured.
func (ix *Index) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	var out *Hover
	err := ix.locked("hover", func() error {
		n, l, ok, err := ix.linkAt(uri, pos)
		if err != nil || !ok {
			return err
		}
		out = &Hover{
			Contents: l.Target,
			Range:    n.doc.RangeOf(l.TargetStart, l.TargetEnd),
		}
		if ix.hover != nil {
			text, err := ix.hover.RenderHover(ctx, ix.hoverInput(l))
			if err != nil {
				ix.logger.Warn("hover script failed", "note", n.id.String(), "target", l.Target, "err", err)
				return nil
			}
			out.Contents = text
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Definition resolves the link under pos to the file of the note it targets.
// The location points at the start of that file. It returns nil when pos is
// not on a link, or the target does not resolve to an indexed note.
func (ix *Index) Definition(ctx context.Context, uri string, pos Position) (*Location, error) {
	var out *Location
	err := ix.locked("definition", func() error {
		_, l, ok, err := ix.linkAt(uri, pos)
		if err != nil || !ok || !l.Resolved {
			return err
		}
		target, ok := ix.notes[l.ID]
		if !ok {
			ix.logger.Debug("definition target not indexed", "target", l.ID.String())
			return nil
		}
		out = &Location{URI: identity.ToURI(target.path)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// linkAt finds the link construct covering pos. Must be called with ix.mu
// held.
func (ix *Index) linkAt(uri string, pos Position) (*note, links.Link, bool, error) {
	id, ok := identity.FromURI(uri)
	if !ok {
		return nil, links.Link{}, false, fmt.Errorf("noteboks: %s: %w", uri, ErrUnresolved)
	}
	n, ok := ix.notes[id]
	if !ok || n.doc == nil {
		return nil, links.Link{}, false, fmt.Errorf("noteboks: %s: %w", uri, ErrUnresolved)
	}
	if n.tree == nil {
		return n, links.Link{}, false, nil
	}
	l, ok := ix.extractor.At(n.tree, n.doc.OffsetAt(pos))
	return n, l, ok, nil
}

// hoverInput gathers what the hover script sees about a link. Must be called
// with ix.mu held.
func (ix *Index) hoverInput(l links.Link) runtime.HoverInput {
	in := runtime.HoverInput{Target: l.Target, Resolved: l.Resolved}
	if !l.Resolved {
		return in
	}
	in.Name, in.Kind = l.ID.Name, l.ID.Kind.Keyword()
	if target, ok := ix.notes[l.ID]; ok {
		in.Exists = true
		in.Path = target.path
		if target.doc != nil {
			in.Preview = firstLine(target.doc.Text())
		}
	}
	back, err := ix.store.Backlinks(in.Name, in.Kind)
	if err != nil {
		ix.logger.Warn("counting backlinks", "target", l.ID.String(), "err", err)
	}
	in.Backlinks = len(back)
	if in.Exists {
		in.Outlinks = ix.storedOutlinks(l.ID)
	}
	return in
}

// storedOutlinks counts the link occurrences the graph store holds for id.
func (ix *Index) storedOutlinks(id Identity) int {
	rec, err := ix.store.NoteByIdentity(id.Name, id.Kind.Keyword())
	if err != nil || rec == nil {
		if err != nil {
			ix.logger.Warn("looking up stored note", "note", id.String(), "err", err)
		}
		return 0
	}
	out, err := ix.store.LinksByNote(rec.ID)
	if err != nil {
		ix.logger.Warn("counting outlinks", "note", id.String(), "err", err)
	}
	return len(out)
}

// firstLine returns the first line of text that is not blank.
func firstLine(text string) string {
	for line := range strings.Lines(text) {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// Outlinks returns the notes that id links to, ordered by name, then kind.
func (ix *Index) Outlinks(id Identity) ([]Identity, error) {
	var out []Identity
	err := ix.locked("outlinks", func() error {
		n, ok := ix.notes[id]
		if !ok {
			return fmt.Errorf("noteboks: outlinks %s: %w", id, ErrUnresolved)
		}
		out = n.links.Sorted()
		return nil
	})
	return out, err
}

// Backlinks returns every link occurrence that targets id, ordered by source
// note, then position. id need not be indexed itself.
func (ix *Index) Backlinks(ctx context.Context, id Identity) ([]Backlink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Backlink
	err := ix.locked("backlinks", func() error {
		rows, err := ix.store.Backlinks(id.Name, id.Kind.Keyword())
		if err != nil {
			return fmt.Errorf("noteboks: backlinks %s: %w", id, err)
		}
		out = make([]Backlink, 0, len(rows))
		for _, b := range rows {
			kind, ok := identity.KindFromKeyword(b.Source.Kind)
			if !ok {
				ix.logger.Warn("graph store has unknown kind", "kind", b.Source.Kind, "note", b.Source.Name)
				continue
			}
			out = append(out, Backlink{
				Source: Identity{Name: b.Source.Name, Kind: kind},
				Target: b.Link.Target,
				Location: Location{
					URI: identity.ToURI(b.Source.Path),
					Range: Range{
						Start: Position{Line: b.Link.StartLine, Character: b.Link.StartCol},
						End:   Position{Line: b.Link.EndLine, Character: b.Link.EndCol},
					},
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// References returns the locations of every link that targets the note at
// uri.
func (ix *Index) References(ctx context.Context, uri string) ([]Location, error) {
	id, ok := identity.FromURI(uri)
	if !ok {
		return nil, fmt.Errorf("noteboks: references %s: %w", uri, ErrUnresolved)
	}
	back, err := ix.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Location, len(back))
	for i, b := range back {
		out[i] = b.Location
	}
	return out, nil
}
