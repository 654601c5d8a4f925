package noteboks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/noteboks/internal/identity"
)

// Golden test format. Identities are written as link targets, "Name (kind)".
type goldenFile struct {
	Scan      ScanStats           `json:"scan"`
	Notes     []goldenNote        `json:"notes"`
	Backlinks map[string][]string `json:"backlinks"`
}

type goldenNote struct {
	ID    string   `json:"id"`
	Links []string `json:"links"`
}

// TestGolden scans each directory under testdata/ that holds a golden.json
// and compares the index against it.
func TestGolden(t *testing.T) {
	dirs, err := os.ReadDir("testdata")
	if err != nil {
		t.Skip("no testdata directory found")
	}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		root := filepath.Join("testdata", dir.Name())
		goldenPath := filepath.Join(root, "golden.json")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		t.Run(dir.Name(), func(t *testing.T) {
			runGoldenTest(t, root, goldenPath)
		})
	}
}

func runGoldenTest(t *testing.T, root, goldenPath string) {
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var want goldenFile
	require.NoError(t, json.Unmarshal(data, &want))

	ix := newTestIndex(t, root)
	ctx := context.Background()
	stats, err := ix.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Scan, stats, "scan stats")

	var notes []goldenNote
	for _, n := range ix.Notes() {
		assert.Equal(t, StateParsed, n.State, n.ID.String())
		g := goldenNote{ID: n.ID.String(), Links: []string{}}
		for _, l := range n.Links {
			g.Links = append(g.Links, l.String())
		}
		notes = append(notes, g)
	}
	assert.Equal(t, want.Notes, notes, "notes")

	for target, wantSources := range want.Backlinks {
		id, ok := identity.FromLinkText(target)
		require.True(t, ok, "golden target %q", target)

		back, err := ix.Backlinks(ctx, id)
		require.NoError(t, err)
		got := []string{}
		for _, b := range back {
			got = append(got, b.Source.String())
		}
		assert.Equal(t, wantSources, got, "backlinks of %s", target)
	}
}
