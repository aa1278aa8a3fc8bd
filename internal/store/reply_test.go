package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vserrors "github.com/denis567denis/valkey-search/internal/errors"
)

func TestIsIndexNotFound(t *testing.T) {
	assert.True(t, isIndexNotFound(errors.New("Unknown Index name")))
	assert.True(t, isIndexNotFound(errors.New("idx: no such index")))
	assert.True(t, isIndexNotFound(errors.New("Index with name 'ws-1' not found")))
	assert.False(t, isIndexNotFound(errors.New("ERR syntax error")))
	assert.False(t, isIndexNotFound(nil))
}

func TestParseInfo_RESP2(t *testing.T) {
	info, err := parseInfo(infoReply(12, 1536, 3))
	require.NoError(t, err)

	assert.Equal(t, int64(12), info.numDocs)
	assert.Equal(t, 1536, info.dimension)
	assert.Equal(t, 3, info.segmentDepth)
}

func TestParseInfo_ValkeyNestedDimension(t *testing.T) {
	reply := []any{
		"index_name", "idx",
		"num_docs", int64(4),
		"attributes", []any{
			[]any{"identifier", "vector", "attribute", "vector", "type", "VECTOR",
				"index", []any{"capacity", int64(1000), "dimensions", int64(8), "algorithm", []any{"name", "HNSW"}}},
			[]any{"identifier", "seg0", "attribute", "seg0", "type", "TAG"},
		},
	}

	info, err := parseInfo(reply)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.numDocs)
	assert.Equal(t, 8, info.dimension)
	assert.Equal(t, 1, info.segmentDepth)
}

func TestParseInfo_SegmentGapStopsDepth(t *testing.T) {
	reply := []any{
		"num_docs", "0",
		"attributes", []any{
			[]any{"attribute", "seg0", "type", "TAG"},
			[]any{"attribute", "seg2", "type", "TAG"},
		},
	}

	info, err := parseInfo(reply)
	require.NoError(t, err)
	assert.Equal(t, 1, info.segmentDepth)
}

func TestParseInfo_TagOptions(t *testing.T) {
	legacy, err := parseInfo([]any{"attributes", []any{
		[]any{"identifier", "filePath", "attribute", "filePath", "type", "TAG", "SEPARATOR", ","},
	}})
	require.NoError(t, err)
	assert.True(t, legacy.staleTagOptions())

	current, err := parseInfo([]any{"attributes", []any{
		[]any{"identifier", "filePath", "attribute", "filePath", "type", "TAG", "SEPARATOR", tagSeparator, "CASESENSITIVE"},
	}})
	require.NoError(t, err)
	assert.False(t, current.staleTagOptions())

	unreported, err := parseInfo([]any{"attributes", []any{
		[]any{"identifier", "filePath", "attribute", "filePath", "type", "TAG"},
	}})
	require.NoError(t, err)
	assert.False(t, unreported.staleTagOptions(), "engines that omit tag options are trusted")
}

func TestParseInfo_Malformed(t *testing.T) {
	_, err := parseInfo("OK")
	require.Error(t, err)
	assert.Equal(t, vserrors.ErrCodeMalformedReply, vserrors.GetCode(err))
}

func TestParseSearch_RESP2(t *testing.T) {
	reply := []any{
		int64(2),
		"idx:a", []any{"payload", `{"filePath":"a.go"}`, "__vector_score", "0.1"},
		"idx:b", []any{"__vector_score", "0.3"},
	}

	total, hits, err := parseSearch(reply, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, hits, 2)
	assert.Equal(t, "idx:a", hits[0].key)
	assert.Equal(t, "0.1", hits[0].fields["__vector_score"])
	assert.Equal(t, `{"filePath":"a.go"}`, hits[0].fields["payload"])
	assert.Equal(t, "0.3", hits[1].fields["__vector_score"])
}

func TestParseSearch_NoContent(t *testing.T) {
	total, hits, err := parseSearch([]any{int64(3), "idx:a", "idx:b", "idx:c"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, hits, 3)
	assert.Equal(t, "idx:c", hits[2].key)
	assert.Nil(t, hits[2].fields)
}

func TestParseSearch_RESP3(t *testing.T) {
	reply := map[any]any{
		"total_results": int64(1),
		"results": []any{
			map[any]any{
				"id":               "idx:a",
				"extra_attributes": map[any]any{"__vector_score": "0.2"},
			},
		},
	}

	total, hits, err := parseSearch(reply, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, hits, 1)
	assert.Equal(t, "0.2", hits[0].fields["__vector_score"])
}

func TestDecodePayload(t *testing.T) {
	p, ok := decodePayload(`{"filePath":"a.go","codeChunk":"x","startLine":1,"endLine":3,"fields":{"lang":"go"}}`)
	require.True(t, ok)
	assert.Equal(t, "a.go", p.FilePath)
	assert.Equal(t, 3, p.EndLine)
	assert.Equal(t, "go", p.Fields["lang"])

	_, ok = decodePayload(`{"filePath":"a.go","codeChunk":"x","startLine":1}`)
	assert.False(t, ok, "endLine missing")

	_, ok = decodePayload(`not json`)
	assert.False(t, ok)
}

func TestUnwrapJSONPath(t *testing.T) {
	assert.Equal(t, `{"a":1}`, unwrapJSONPath(`[{"a":1}]`))
	assert.Equal(t, `{"a":1}`, unwrapJSONPath(`{"a":1}`))
}
