package store

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/denis567denis/valkey-search/internal/config"
)

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, "src", escapeTag("src"))
	assert.Equal(t, `main\.go`, escapeTag("main.go"))
	assert.Equal(t, `src\/app\-v2\/a\ b\.ts`, escapeTag("src/app-v2/a b.ts"))
	assert.Equal(t, "snake_case", escapeTag("snake_case"))
}

func TestKNNQuery(t *testing.T) {
	assert.Equal(t, "*=>[KNN 10 @vector $vec AS __vector_score]", knnQuery(nil, 10))
	assert.Equal(t,
		`(@seg0:{src} @seg1:{my\-app})=>[KNN 5 @vector $vec AS __vector_score]`,
		knnQuery([]string{"src", "my-app"}, 5))
}

func TestSearchArgs(t *testing.T) {
	blob := []byte{1, 2, 3, 4}

	hash := searchArgs("idx", config.StorageHash, "q", blob, 7)
	assert.Equal(t, []any{"FT.SEARCH", "idx", "q", "PARAMS", "2", "vec", blob,
		"RETURN", "2", "payload", "__vector_score",
		"LIMIT", "0", "7", "DIALECT", "2"}, hash)

	js := searchArgs("idx", config.StorageJSON, "q", blob, 7)
	assert.Equal(t, []any{"FT.SEARCH", "idx", "q", "PARAMS", "2", "vec", blob,
		"RETURN", "4", "$.payload", "AS", "payload", "__vector_score",
		"LIMIT", "0", "7", "DIALECT", "2"}, js)
}

func TestFilePathQuery(t *testing.T) {
	assert.Equal(t, `@filePath:{src\/a\.go}`, filePathQuery([]string{"src/a.go"}))
	assert.Equal(t, `@filePath:{a\.go | b\.go}`, filePathQuery([]string{"a.go", "b.go"}))
}

func TestFilePathQuery_CommaAndCase(t *testing.T) {
	assert.Equal(t, `@filePath:{a\,b\.go | README\.md}`, filePathQuery([]string{"a,b.go", "README.md"}))
}

func TestSegmentFilter(t *testing.T) {
	assert.Equal(t, `(@seg0:{pkg})`, segmentFilter([]string{"pkg"}))
	assert.Equal(t, `(@seg0:{Src} @seg1:{a\,b})`, segmentFilter([]string{"Src", "a,b"}))
}

func TestKeysArgs(t *testing.T) {
	assert.Equal(t,
		[]any{"FT.SEARCH", "idx", "q", "NOCONTENT", "LIMIT", "20", "10", "DIALECT", "2"},
		keysArgs("idx", "q", 20, 10))
}

func TestEncodeVector(t *testing.T) {
	blob := encodeVector([]float32{1.5, -2})
	assert.Len(t, blob, 8)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(blob[0:])))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32(blob[4:])))
}

func TestScoreFromDistance(t *testing.T) {
	assert.InDelta(t, 0.75, scoreFromDistance("COSINE", 0.25), 1e-9)
	assert.InDelta(t, 0.75, scoreFromDistance("IP", 0.25), 1e-9)
	assert.InDelta(t, 0.5, scoreFromDistance("L2", 1), 1e-9)
	assert.InDelta(t, 1.0, scoreFromDistance("L2", 0), 1e-9)
}
