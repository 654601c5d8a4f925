// Package links finds link constructs in a parsed note and resolves their
// targets to note identities.
package links

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/noteboks/internal/identity"
	"github.com/jward/noteboks/internal/syntax"
)

// Pattern selects every inline link that carries a destination. The @uri
// capture is the destination node; @link is the whole construct.
const Pattern = `(inline_link (link_destination) @uri) @link`

// Link is one link occurrence in a buffer. Byte offsets index the tree's
// source.
type Link struct {
	// Target is the link target text with any <...> delimiters removed.
	Target string
	// ID is the resolved target. Valid only when Resolved is set.
	ID       identity.Identity
	Resolved bool

	Start       int // start of the whole construct
	End         int
	TargetStart int // span of the target text, opening delimiter excluded
	TargetEnd   int
}

// Contains reports whether offset falls inside the link construct.
func (l Link) Contains(offset int) bool {
	return offset >= l.Start && offset < l.End
}

// Set is a set of link targets.
type Set map[identity.Identity]struct{}

// Sorted returns the members ordered by identity.Compare.
func (s Set) Sorted() []identity.Identity {
	ids := lo.Keys(s)
	slices.SortFunc(ids, identity.Compare)
	return ids
}

// Has reports membership.
func (s Set) Has(id identity.Identity) bool {
	_, ok := s[id]
	return ok
}

// Extractor runs the link query. Queries are immutable once compiled, so an
// Extractor may be shared; each call uses its own cursor.
type Extractor struct {
	query *sitter.Query
	uriID uint32
}

// NewExtractor compiles the link query for lang.
func NewExtractor(lang *sitter.Language) (*Extractor, error) {
	q, err := sitter.NewQuery([]byte(Pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("links: compile query: %w", err)
	}
	x := &Extractor{query: q}
	found := false
	for i := uint32(0); i < q.CaptureCount(); i++ {
		if q.CaptureNameForId(i) == "uri" {
			x.uriID = i
			found = true
		}
	}
	if !found {
		q.Close()
		return nil, fmt.Errorf("links: query has no @uri capture")
	}
	return x, nil
}

// Close releases the compiled query.
func (x *Extractor) Close() {
	x.query.Close()
}

// All returns every link occurrence in document order. Targets that do not
// resolve are still returned with Resolved unset.
func (x *Extractor) All(t *syntax.Tree) []Link {
	if t == nil {
		return nil
	}
	src := t.Source()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(x.query, t.Root())

	var out []Link
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)

		var uri, link *sitter.Node
		for _, c := range match.Captures {
			if c.Index == x.uriID {
				uri = c.Node
			} else {
				link = c.Node
			}
		}
		if uri == nil || link == nil {
			continue
		}
		out = append(out, newLink(link, uri, src))
	}
	return out
}

// Extract returns the set of resolved targets. Unresolvable targets are
// dropped.
func (x *Extractor) Extract(t *syntax.Tree) Set {
	return Targets(x.All(t))
}

// At returns the link whose construct contains offset.
func (x *Extractor) At(t *syntax.Tree, offset int) (Link, bool) {
	return lo.Find(x.All(t), func(l Link) bool { return l.Contains(offset) })
}

// Targets collects the resolved targets of links.
func Targets(links []Link) Set {
	set := make(Set, len(links))
	for _, l := range links {
		if l.Resolved {
			set[l.ID] = struct{}{}
		}
	}
	return set
}

func newLink(link, uri *sitter.Node, src []byte) Link {
	destEnd := int(uri.EndByte())
	start, end := int(uri.StartByte()), destEnd
	if end-start >= 2 && src[start] == '<' && src[end-1] == '>' {
		start++
		end--
	}
	target := string(src[start:end])

	// A parenthesized title directly after the destination is read as the
	// kind keyword: [x](Foo (list)) and [x](<Foo Bar> (list)) target
	// "Foo (list)" and "Foo Bar (list)".
	if title := uri.NextNamedSibling(); title != nil && title.Type() == "link_title" {
		if ts := int(title.StartByte()); ts < len(src) && src[ts] == '(' {
			end = int(title.EndByte())
			target += string(src[destEnd:end])
		}
	}

	l := Link{
		Target:      target,
		Start:       int(link.StartByte()),
		End:         int(link.EndByte()),
		TargetStart: start,
		TargetEnd:   end,
	}
	l.ID, l.Resolved = identity.FromLinkText(l.Target)
	return l
}
