package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatNotesText formats CLINote results as aligned columns.
func formatNotesText(w io.Writer, notes []CLINote) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSTATE\tLINKS\tFILE")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.Name, n.Kind, n.State, strings.Join(n.Links, ", "), n.File)
	}
	tw.Flush()
}

// formatBacklinksText formats CLIBacklink results as aligned columns.
func formatBacklinksText(w io.Writer, back []CLIBacklink) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFILE\tLINE\tCOL")
	for _, b := range back {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", b.Source, b.File, b.StartLine, b.StartCol)
	}
	tw.Flush()
}

// formatConflictsText formats CLIConflict results as aligned columns.
func formatConflictsText(w io.Writer, conflicts []CLIConflict) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTE\tKEPT\tREPLACED")
	for _, c := range conflicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Note, c.Kept, c.Replaced)
	}
	tw.Flush()
}

// formatScanText formats CLIScan as readable text.
func formatScanText(w io.Writer, s CLIScan) {
	fmt.Fprintf(w, "Vault: %s\n", s.Root)
	fmt.Fprintf(w, "Files: %d visited, %d indexed, %d skipped\n", s.Visited, s.Indexed, s.Skipped)
	fmt.Fprintf(w, "Links: %d (%d resolved, %d dangling targets)\n", s.Links, s.ResolvedLinks, s.DanglingTargets)
	if s.Conflicts > 0 {
		fmt.Fprintf(w, "Conflicts: %d\n", s.Conflicts)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(result CLIResult) error {
	w := stdout

	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLINote:
		formatNotesText(w, v)
	case CLINote:
		formatNotesText(w, []CLINote{v})
	case []CLIBacklink:
		formatBacklinksText(w, v)
	case []CLIConflict:
		formatConflictsText(w, v)
	case CLIScan:
		formatScanText(w, v)
	case *CLIHover:
		if v != nil {
			fmt.Fprintln(w, v.Contents)
		}
	case nil:
		// No output for nil results (e.g., hover off a link).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		fmt.Fprintf(w, "\n%d results\n", *result.TotalCount)
	}
	return nil
}

func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
