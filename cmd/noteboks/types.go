package main

import (
	"github.com/jward/noteboks"
	"github.com/jward/noteboks/internal/identity"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIScan summarizes a scan and the resulting link graph.
type CLIScan struct {
	Root            string `json:"root"`
	Visited         int    `json:"visited"`
	Indexed         int    `json:"indexed"`
	Skipped         int    `json:"skipped"`
	Conflicts       int    `json:"conflicts"`
	Links           int    `json:"links"`
	ResolvedLinks   int    `json:"resolved_links"`
	DanglingTargets int    `json:"dangling_targets"`
}

// CLINote is a JSON-friendly note with its outgoing links.
type CLINote struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	File  string   `json:"file"`
	State string   `json:"state"`
	Links []string `json:"links"`
}

// CLILocation is a file span.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIBacklink is a link occurrence pointing at the queried note.
type CLIBacklink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	CLILocation
}

// CLIHover is a hover payload and the span of the link target.
type CLIHover struct {
	Contents string `json:"contents"`
	CLILocation
}

// CLIConflict is an identity collision found while scanning.
type CLIConflict struct {
	Note     string `json:"note"`
	Kept     string `json:"kept"`
	Replaced string `json:"replaced"`
}

func noteToCLI(n noteboks.Note) CLINote {
	links := make([]string, len(n.Links))
	for i, l := range n.Links {
		links[i] = l.String()
	}
	return CLINote{
		Name:  n.ID.Name,
		Kind:  n.ID.Kind.Keyword(),
		File:  n.Path,
		State: n.State.String(),
		Links: links,
	}
}

func locationToCLI(loc noteboks.Location) CLILocation {
	file, ok := identity.PathFromURI(loc.URI)
	if !ok {
		file = loc.URI
	}
	return rangeToCLI(file, loc.Range)
}

func rangeToCLI(file string, r noteboks.Range) CLILocation {
	return CLILocation{
		File:      file,
		StartLine: r.Start.Line,
		StartCol:  r.Start.Character,
		EndLine:   r.End.Line,
		EndCol:    r.End.Character,
	}
}
