package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(sl, sc, el, ec int) *Range {
	return &Range{Start: Position{sl, sc}, End: Position{el, ec}}
}

func TestApply_SingleEdit(t *testing.T) {
	t.Parallel()
	d := New("noteboks", "hello world", 1)

	res, err := d.Apply(2, []Change{{Range: rng(0, 6, 0, 11), Text: "vault"}})
	require.NoError(t, err)
	assert.Equal(t, "hello vault", d.Text())
	assert.Equal(t, int32(2), d.Version())
	assert.False(t, res.Full)
	require.Len(t, res.Edits, 1)
	assert.Equal(t, Edit{
		StartByte: 6, OldEndByte: 11, NewEndByte: 11,
		StartPoint: Point{0, 6}, OldEndPoint: Point{0, 11}, NewEndPoint: Point{0, 11},
	}, res.Edits[0])
}

func TestApply_SequentialEditsSeeEarlierMutations(t *testing.T) {
	t.Parallel()
	d := New("", "abc\ndef", 0)

	_, err := d.Apply(1, []Change{
		{Range: rng(0, 0, 0, 0), Text: "XY\n"}, // "XY\nabc\ndef"
		{Range: rng(1, 1, 2, 1), Text: "-"},    // "XY\na-ef"
	})
	require.NoError(t, err)
	assert.Equal(t, "XY\na-ef", d.Text())
	assert.Equal(t, 2, d.LineCount())
}

func TestApply_MultilineInsertPoints(t *testing.T) {
	t.Parallel()
	d := New("", "ab", 0)
	res, err := d.Apply(1, []Change{{Range: rng(0, 1, 0, 1), Text: "1\n22\n333"}})
	require.NoError(t, err)
	assert.Equal(t, "a1\n22\n333b", d.Text())
	require.Len(t, res.Edits, 1)
	assert.Equal(t, Point{Row: 2, Column: 3}, res.Edits[0].NewEndPoint)
	assert.Equal(t, 1+len("1\n22\n333"), res.Edits[0].NewEndByte)
}

func TestApply_FullReplacement(t *testing.T) {
	t.Parallel()
	d := New("", "old", 3)
	res, err := d.Apply(4, []Change{
		{Range: rng(0, 0, 0, 1), Text: "O"},
		{Text: "brand new"},
		{Range: rng(0, 0, 0, 5), Text: "fresh"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh new", d.Text())
	assert.True(t, res.Full)
	assert.Empty(t, res.Edits)
}

func TestApply_StaleVersion(t *testing.T) {
	t.Parallel()
	d := New("", "text", 5)
	_, err := d.Apply(5, []Change{{Text: "nope"}})
	require.ErrorIs(t, err, ErrStaleVersion)
	_, err = d.Apply(2, []Change{{Text: "nope"}})
	require.ErrorIs(t, err, ErrStaleVersion)
	assert.Equal(t, "text", d.Text())
	assert.Equal(t, int32(5), d.Version())
}

func TestApply_OutOfOrderVersionsConverge(t *testing.T) {
	t.Parallel()
	d := New("", "", 0)

	res, err := d.Apply(3, []Change{{Range: rng(0, 2, 0, 2), Text: "c"}})
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Equal(t, "", d.Text())
	assert.Equal(t, 1, d.Pending())

	res, err = d.Apply(2, []Change{{Range: rng(0, 1, 0, 1), Text: "b"}})
	require.NoError(t, err)
	assert.True(t, res.Deferred)

	res, err = d.Apply(1, []Change{{Range: rng(0, 0, 0, 0), Text: "a"}})
	require.NoError(t, err)
	assert.False(t, res.Deferred)
	assert.Equal(t, "abc", d.Text())
	assert.Equal(t, int32(3), res.Version)
	assert.Len(t, res.Edits, 3)
	assert.Zero(t, d.Pending())
}

func TestApply_DuplicateQueuedVersion(t *testing.T) {
	t.Parallel()
	d := New("", "", 0)
	_, err := d.Apply(5, []Change{{Text: "x"}})
	require.NoError(t, err)
	_, err = d.Apply(5, []Change{{Text: "y"}})
	require.ErrorIs(t, err, ErrStaleVersion)
}

func TestApply_GapOverflow(t *testing.T) {
	t.Parallel()
	d := New("", "", 0)
	for v := int32(2); v < 2+MaxPending; v++ {
		_, err := d.Apply(v, []Change{{Text: "x"}})
		require.NoError(t, err)
	}
	_, err := d.Apply(2+MaxPending, []Change{{Text: "x"}})
	require.ErrorIs(t, err, ErrVersionGap)
}

func TestReplace_DropsPending(t *testing.T) {
	t.Parallel()
	d := New("", "a", 0)
	_, err := d.Apply(4, []Change{{Text: "later"}})
	require.NoError(t, err)
	d.Replace("opened", 10)
	assert.Zero(t, d.Pending())
	assert.Equal(t, "opened", d.Text())
	assert.Equal(t, int32(10), d.Version())
}

func TestOffsetAt_UTF16(t *testing.T) {
	t.Parallel()
	// "é" is 2 bytes / 1 unit, "😀" is 4 bytes / 2 units.
	d := New("", "é😀x\nsecond", 0)

	assert.Equal(t, 0, d.OffsetAt(Position{0, 0}))
	assert.Equal(t, 2, d.OffsetAt(Position{0, 1}))
	assert.Equal(t, 2, d.OffsetAt(Position{0, 2}), "inside surrogate pair clamps to rune start")
	assert.Equal(t, 6, d.OffsetAt(Position{0, 3}))
	assert.Equal(t, 7, d.OffsetAt(Position{0, 4}))
	assert.Equal(t, 7, d.OffsetAt(Position{0, 99}), "column clamps to line end")
	assert.Equal(t, 8, d.OffsetAt(Position{1, 0}))
	assert.Equal(t, len(d.Text()), d.OffsetAt(Position{9, 0}), "line clamps to buffer end")
}

func TestOffsetAt_CRLF(t *testing.T) {
	t.Parallel()
	d := New("", "ab\r\ncd", 0)
	assert.Equal(t, 2, d.OffsetAt(Position{0, 10}))
	assert.Equal(t, 4, d.OffsetAt(Position{1, 0}))
}

func TestPositionAt_RoundTrip(t *testing.T) {
	t.Parallel()
	d := New("", "é😀x\nsecond", 0)
	for _, p := range []Position{{0, 0}, {0, 1}, {0, 3}, {0, 4}, {1, 0}, {1, 6}} {
		assert.Equal(t, p, d.PositionAt(d.OffsetAt(p)))
	}
	assert.Equal(t, Point{Row: 0, Column: 6}, d.PointAt(6))
	assert.Equal(t, Point{Row: 1, Column: 2}, d.PointAt(10))
}

func TestApply_UTF16Edit(t *testing.T) {
	t.Parallel()
	d := New("", "😀 [a](A)", 0)
	// Replace "A" (UTF-16 columns 7..8) with "B".
	res, err := d.Apply(1, []Change{{Range: rng(0, 7, 0, 8), Text: "B"}})
	require.NoError(t, err)
	assert.Equal(t, "😀 [a](B)", d.Text())
	require.Len(t, res.Edits, 1)
	assert.Equal(t, 9, res.Edits[0].StartByte)
	assert.Equal(t, Point{Row: 0, Column: 9}, res.Edits[0].StartPoint)
}
