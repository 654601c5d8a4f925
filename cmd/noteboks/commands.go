package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/noteboks"
	"github.com/jward/noteboks/internal/identity"
)

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// resolveNote reads a note argument either as a file name with a note
// extension ("Plan.note") or as a link target ("Plan", "Groceries (list)").
func resolveNote(arg string) (noteboks.Identity, error) {
	if id, ok := identity.FromPath(arg); ok {
		return id, nil
	}
	if id, ok := identity.FromLinkText(arg); ok {
		return id, nil
	}
	return noteboks.Identity{}, fmt.Errorf("%q does not name a note", arg)
}

// positionArgs parses <file> <line> <col> into a document URI and position.
func positionArgs(args []string) (string, noteboks.Position, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return "", noteboks.Position{}, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return "", noteboks.Position{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return "", noteboks.Position{}, err
	}
	return identity.ToURI(file), noteboks.Position{Line: line, Character: col}, nil
}

func intPtr(n int) *int { return &n }

// --- scan ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the vault and summarize the link graph",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ix, stats, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("scan", err)
	}
	defer ix.Close()

	graph, err := ix.GraphStats()
	if err != nil {
		return outputError("scan", err)
	}
	fmt.Fprintf(os.Stderr, "Scanned %s in %s\n", ix.Root(), time.Since(start).Round(time.Millisecond))

	return outputResult(CLIResult{
		Command: "scan",
		Results: CLIScan{
			Root:            ix.Root(),
			Visited:         stats.Visited,
			Indexed:         stats.Indexed,
			Skipped:         stats.Skipped,
			Conflicts:       stats.Conflicts,
			Links:           graph.Links,
			ResolvedLinks:   graph.ResolvedLinks,
			DanglingTargets: graph.DanglingTargets,
		},
	})
}

// --- links ---

var linksCmd = &cobra.Command{
	Use:   "links [note]",
	Short: "List notes and the notes they link to",
	Long:  "Without an argument, lists every note. With one, lists only that note. A note is named by its file name (Plan.note) or a link target (\"Groceries (list)\").",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLinks,
}

func runLinks(cmd *cobra.Command, args []string) error {
	ix, _, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("links", err)
	}
	defer ix.Close()

	if len(args) == 1 {
		id, err := resolveNote(args[0])
		if err != nil {
			return outputError("links", err)
		}
		n, ok := ix.Lookup(id)
		if !ok {
			return outputError("links", fmt.Errorf("%s: %w", id, noteboks.ErrUnresolved))
		}
		return outputResult(CLIResult{Command: "links", Results: noteToCLI(n)})
	}

	notes := ix.Notes()
	out := make([]CLINote, len(notes))
	for i, n := range notes {
		out[i] = noteToCLI(n)
	}
	return outputResult(CLIResult{Command: "links", Results: out, TotalCount: intPtr(len(out))})
}

// --- backlinks ---

var backlinksCmd = &cobra.Command{
	Use:   "backlinks <note>",
	Short: "List the links that point at a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacklinks,
}

func runBacklinks(cmd *cobra.Command, args []string) error {
	id, err := resolveNote(args[0])
	if err != nil {
		return outputError("backlinks", err)
	}
	ix, _, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("backlinks", err)
	}
	defer ix.Close()

	back, err := ix.Backlinks(cmd.Context(), id)
	if err != nil {
		return outputError("backlinks", err)
	}
	out := make([]CLIBacklink, len(back))
	for i, b := range back {
		out[i] = CLIBacklink{
			Source:      b.Source.String(),
			Target:      b.Target,
			CLILocation: locationToCLI(b.Location),
		}
	}
	return outputResult(CLIResult{Command: "backlinks", Results: out, TotalCount: intPtr(len(out))})
}

// --- hover ---

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show the hover text for the link at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runHover,
}

func runHover(cmd *cobra.Command, args []string) error {
	uri, pos, err := positionArgs(args)
	if err != nil {
		return outputError("hover", err)
	}
	ix, _, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("hover", err)
	}
	defer ix.Close()

	h, err := ix.Hover(cmd.Context(), uri, pos)
	if err != nil {
		return outputError("hover", err)
	}
	var out *CLIHover
	if h != nil {
		file, _ := identity.PathFromURI(uri)
		out = &CLIHover{Contents: h.Contents, CLILocation: rangeToCLI(file, h.Range)}
	}
	return outputResult(CLIResult{Command: "hover", Results: out})
}

// --- definition ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the note file a link at a position points to",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	uri, pos, err := positionArgs(args)
	if err != nil {
		return outputError("definition", err)
	}
	ix, _, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("definition", err)
	}
	defer ix.Close()

	loc, err := ix.Definition(cmd.Context(), uri, pos)
	if err != nil {
		return outputError("definition", err)
	}
	out := []CLILocation{}
	if loc != nil {
		out = append(out, locationToCLI(*loc))
	}
	return outputResult(CLIResult{Command: "definition", Results: out})
}

// --- conflicts ---

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List files that map to the same note identity",
	Args:  cobra.NoArgs,
	RunE:  runConflicts,
}

func runConflicts(cmd *cobra.Command, args []string) error {
	ix, _, err := openIndex(cmd.Context())
	if err != nil {
		return outputError("conflicts", err)
	}
	defer ix.Close()

	conflicts := ix.Conflicts()
	out := make([]CLIConflict, len(conflicts))
	for i, c := range conflicts {
		out[i] = CLIConflict{Note: c.ID.String(), Kept: c.Kept, Replaced: c.Replaced}
	}
	return outputResult(CLIResult{Command: "conflicts", Results: out, TotalCount: intPtr(len(out))})
}
