package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denis567denis/valkey-search/internal/store"
)

func TestReadVector(t *testing.T) {
	v, err := readVector(strings.NewReader("[0.5, -1, 2]\n"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, v)

	v, err = readVector(strings.NewReader(`{"vector": [1, 2]}`))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)

	for _, bad := range []string{"", "[]", `{"vector": []}`, "nope"} {
		_, err := readVector(strings.NewReader(bad))
		assert.Error(t, err, bad)
	}
}

func sampleResults() []store.SearchResult {
	return []store.SearchResult{
		{ID: "a", Score: 0.91234, Payload: &store.Payload{FilePath: "src/a.go", CodeChunk: "func A() {\n}\n", StartLine: 3, EndLine: 4}},
		{ID: "b", Score: 0.5, Payload: &store.Payload{FilePath: "b.go", CodeChunk: strings.Repeat("x", 100), StartLine: 1, EndLine: 1}},
	}
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, printResults(buf, sampleResults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "0.912")
	assert.Contains(t, lines[0], "src/a.go:3-4")
	assert.Contains(t, lines[0], "func A() {")
	assert.True(t, strings.HasSuffix(lines[1], "..."))

	buf.Reset()
	require.NoError(t, printResults(buf, nil))
	assert.Equal(t, "no results\n", buf.String())
}

func TestToHits(t *testing.T) {
	hits := toHits(sampleResults())
	require.Len(t, hits, 2)
	assert.Equal(t, searchHit{
		ID:        "a",
		Score:     0.91234,
		FilePath:  "src/a.go",
		StartLine: 3,
		EndLine:   4,
		CodeChunk: "func A() {\n}\n",
	}, hits[0])
}
