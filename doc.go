// Package noteboks indexes a vault of plain-text notes for an editor. For
// every note it keeps a live text buffer, a tree-sitter syntax tree derived
// from that buffer, and the set of notes the buffer links to, and it answers
// point queries (hover, go-to-definition, references) against them.
//
// # Notes
//
// A note is a file whose extension names its kind:
//
//	.note   note
//	.art    article
//	.list   list
//	.index  index
//	.dump   dump
//
// The file stem and the kind form the note's [Identity]. Two files with the
// same identity collide; the one inserted last wins and the collision is
// reported by [Index.Conflicts].
//
// Notes link to each other with inline links whose destination names the
// target, optionally followed by a parenthesized kind keyword:
//
//	See [the plan](<Plan>) and [groceries](<Groceries (list)>).
//
// An unknown keyword falls back to note. Destinations that do not name a note,
// such as URLs or anchors, are ignored.
//
// # Pipeline
//
// Every mutation runs the same steps under the index lock before it returns:
//
//  1. Sync: [Index.Open] replaces a buffer; [Index.Change] applies ordered,
//     versioned edits. Out-of-order versions are held until their
//     predecessor arrives.
//  2. Reparse: the edits are replayed onto the previous tree and the buffer
//     is parsed incrementally.
//  3. Relink: the link query runs over the new tree and the note's link set
//     is replaced wholesale, then mirrored into an in-memory SQLite graph
//     that serves backlink queries.
//
// A failed parse leaves the note loaded but with no tree and no links.
//
// # Usage
//
//	ix, err := noteboks.New("path/to/vault", noteboks.WithLogger(logger))
//	if err != nil { ... }
//	defer ix.Close()
//
//	stats, err := ix.Scan(ctx)
//	h, err := ix.Hover(ctx, uri, noteboks.Position{Line: 3, Character: 12})
//	loc, err := ix.Definition(ctx, uri, pos)
//
// # Hover scripts
//
// [WithHoverScript] formats hover text with a Risor script. See the
// internal/runtime package for the globals a script receives.
package noteboks
