package cmd

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denis567denis/valkey-search/internal/store"
)

func TestReadPoints_Array(t *testing.T) {
	input := `
	[
	  {"id": "p1", "vector": [0.1, 0.2], "payload": {"filePath": "a.go", "codeChunk": "x", "startLine": 1, "endLine": 2}},
	  {"vector": [0.3, 0.4], "payload": {"filePath": "b.go", "codeChunk": "y", "startLine": 3, "endLine": 9, "segmentHash": "h1"}}
	]`

	points, err := readPoints(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "p1", points[0].ID)
	assert.Equal(t, []float32{0.1, 0.2}, points[0].Vector)
	assert.Equal(t, "a.go", points[0].Payload.FilePath)

	assert.Equal(t, uuid.NewSHA1(pointNamespace, []byte("h1")).String(), points[1].ID)
	assert.Equal(t, "h1", points[1].Payload.SegmentHash)
}

func TestReadPoints_Lines(t *testing.T) {
	input := `{"id": "a", "vector": [1], "payload": {"filePath": "a.go", "codeChunk": "", "startLine": 1, "endLine": 1}}
{"id": "b", "vector": [2], "payload": {"filePath": "b.go", "codeChunk": "", "startLine": 1, "endLine": 1}}
`
	points, err := readPoints(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "b", points[1].ID)
}

func TestReadPoints_Errors(t *testing.T) {
	_, err := readPoints(strings.NewReader("  \n"))
	assert.Error(t, err)

	_, err = readPoints(strings.NewReader(`[{"id": 1}]`))
	assert.Error(t, err)

	_, err = readPoints(strings.NewReader(`{"id": "a"} {oops`))
	assert.Error(t, err)
}

func TestPointID_StableFromLocation(t *testing.T) {
	in := pointInput{Payload: store.Payload{FilePath: "src/a.go", StartLine: 10, EndLine: 20}}

	id := pointID(in)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, pointID(in))

	in.Payload.EndLine = 21
	assert.NotEqual(t, id, pointID(in))

	assert.Equal(t, "given", pointID(pointInput{ID: "given"}))
}
