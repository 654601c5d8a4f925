package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleInput = HoverInput{
	Target:    "B (list)",
	Name:      "B",
	Kind:      "list",
	Resolved:  true,
	Exists:    true,
	Path:      "/vault/B.list",
	Preview:   "Groceries",
	Backlinks: 3,
	Outlinks:  2,
}

func TestRenderHover_StringResult(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`name + " [" + kind + "] " + preview`)

	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "B [list] Groceries", got)
}

func TestRenderHover_TargetPassthrough(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`target`)

	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "B (list)", got)
}

func TestRenderHover_NonStringResult(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`backlinks + 1`)

	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestRenderHover_LinkCounts(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`sprintf("%d in, %d out", backlinks, outlinks)`)

	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "3 in, 2 out", got)
}

func TestRenderHover_NilResult(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`nil`)

	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRenderHover_SyntaxError(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(`name + `)

	_, err := rt.RenderHover(context.Background(), sampleInput)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestLoad_FromDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "hover.risor")
	require.NoError(t, os.WriteFile(path, []byte(`"path: " + path`), 0o644))

	rt, err := Load(path)
	require.NoError(t, err)
	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "path: /vault/B.list", got)
}

func TestLoad_FromFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"scripts/hover.risor": &fstest.MapFile{Data: []byte(`name`)},
	}
	rt, err := Load("/scripts/hover.risor", WithRuntimeFS(fsys))
	require.NoError(t, err)
	got, err := rt.RenderHover(context.Background(), sampleInput)
	require.NoError(t, err)
	assert.Equal(t, "B", got)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.risor"))
	require.Error(t, err)
}
