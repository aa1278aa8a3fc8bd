package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denis567denis/valkey-search/internal/config"
)

func TestCreateArgs_Hash(t *testing.T) {
	spec := indexSpec{
		storageMode:    config.StorageHash,
		dimension:      4,
		distanceMetric: "COSINE",
		algorithm:      "HNSW",
		hnswM:          16,
		hnswEF:         200,
		segmentDepth:   2,
	}

	assert.Equal(t, []any{
		"FT.CREATE", "idx", "ON", "HASH", "PREFIX", "1", "idx:", "SCHEMA",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
		"filePath", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
		"segmentHash", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
		"startLine", "NUMERIC",
		"endLine", "NUMERIC",
		"seg0", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
		"seg1", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
	}, spec.createArgs("idx"))
}

func TestCreateArgs_JSONFlat(t *testing.T) {
	spec := indexSpec{
		storageMode:    config.StorageJSON,
		dimension:      3,
		distanceMetric: "L2",
		algorithm:      "FLAT",
		segmentDepth:   1,
	}

	assert.Equal(t, []any{
		"FT.CREATE", "idx", "ON", "JSON", "PREFIX", "1", "idx:", "SCHEMA",
		"$.vector", "AS", "vector", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32", "DIM", "3", "DISTANCE_METRIC", "L2",
		"$.filePath", "AS", "filePath", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
		"$.segmentHash", "AS", "segmentHash", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
		"$.startLine", "AS", "startLine", "NUMERIC",
		"$.endLine", "AS", "endLine", "NUMERIC",
		"$.seg0", "AS", "seg0", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
	}, spec.createArgs("idx"))
}

func TestAlterArgs(t *testing.T) {
	spec := indexSpec{storageMode: config.StorageHash}
	assert.Equal(t,
		[]any{"FT.ALTER", "idx", "SCHEMA", "ADD",
			"seg5", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE",
			"seg6", "TAG", "SEPARATOR", "\x1f", "CASESENSITIVE"},
		spec.alterArgs("idx", 5, 7))
}

// Path tags must neither fold case nor split on characters that can appear
// in file names.
func TestTagAttributes_WholeValueCaseSensitive(t *testing.T) {
	spec := indexSpec{storageMode: config.StorageHash, dimension: 2, distanceMetric: "COSINE", algorithm: "FLAT", segmentDepth: 3}
	args := spec.createArgs("idx")

	tags := 0
	for i, a := range args {
		if a != "TAG" {
			continue
		}
		tags++
		require.Less(t, i+3, len(args))
		assert.Equal(t, "SEPARATOR", args[i+1])
		sep := args[i+2].(string)
		assert.Len(t, sep, 1)
		assert.NotContains(t, "/,;| .-_", sep)
		assert.Equal(t, "CASESENSITIVE", args[i+3])
	}
	assert.Equal(t, 5, tags, "filePath, segmentHash and seg0..seg2")
}
