// Package store is the vector store adapter over a Redis-compatible search
// engine (Redis Stack, Valkey with valkey-search). It keeps one search index
// per workspace and translates point upserts, KNN searches and path-scoped
// deletions into FT.*, HSET and JSON.SET commands.
package store

import (
	"context"
	"encoding/json"
)

// Payload is the metadata stored alongside each vector.
type Payload struct {
	FilePath    string `json:"filePath"`
	CodeChunk   string `json:"codeChunk"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	SegmentHash string `json:"segmentHash,omitempty"`

	// PathSegments maps segment position ("0", "1", ...) to the directory or
	// file name at that depth. Filled in by the store on upsert.
	PathSegments map[string]string `json:"pathSegments,omitempty"`

	// Fields carries optional scalar metadata (strings, numbers, booleans).
	Fields map[string]any `json:"fields,omitempty"`
}

// Point is one embedded chunk.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult is one nearest-neighbour hit.
type SearchResult struct {
	ID      string
	Score   float64
	Payload *Payload
}

// IndexInfo summarizes the remote index for a workspace.
type IndexInfo struct {
	Name             string `json:"name"`
	Exists           bool   `json:"exists"`
	NumDocs          int64  `json:"num_docs"`
	Dimension        int    `json:"dimension"`
	SegmentDepth     int    `json:"segment_depth"`
	StorageMode      string `json:"storage_mode"`
	IndexingComplete bool   `json:"indexing_complete"`
}

// VectorStore is the surface consumed by indexing code.
type VectorStore interface {
	// Initialize creates the index if needed. It reports true when a new
	// index was created, including recreation after a dimension change.
	Initialize(ctx context.Context) (bool, error)

	UpsertPoints(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]SearchResult, error)

	DeletePointsByFilePath(ctx context.Context, filePath string) error
	DeletePointsByMultipleFilePaths(ctx context.Context, filePaths []string) error
	// DeletePointsByDirectory removes the points of every file under dir.
	DeletePointsByDirectory(ctx context.Context, dir string) error

	// ClearCollection removes every document but keeps the index.
	ClearCollection(ctx context.Context) error
	// DeleteCollection drops the index and its documents.
	DeleteCollection(ctx context.Context) error
	CollectionExists(ctx context.Context) (bool, error)

	HasIndexedData(ctx context.Context) (bool, error)
	MarkIndexingComplete(ctx context.Context) error
	MarkIndexingIncomplete(ctx context.Context) error
}

var _ VectorStore = (*Store)(nil)

// searchConfig is the resolved form of the SearchOption list.
type searchConfig struct {
	directoryPrefix string
	minScore        float64
	maxResults      int
}

// SearchOption tunes a single Search call.
type SearchOption func(*searchConfig)

// WithDirectoryPrefix limits results to files under prefix (workspace
// relative or absolute). "", "." and "./" mean the whole workspace.
func WithDirectoryPrefix(prefix string) SearchOption {
	return func(c *searchConfig) {
		c.directoryPrefix = prefix
	}
}

// WithMinScore drops hits scoring below min.
func WithMinScore(min float64) SearchOption {
	return func(c *searchConfig) {
		c.minScore = min
	}
}

// WithMaxResults caps the number of neighbours requested.
func WithMaxResults(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// requiredPayloadKeys must all be present for a hit to be returned.
var requiredPayloadKeys = []string{"filePath", "codeChunk", "startLine", "endLine"}

// decodePayload parses a stored payload and reports whether it carries the
// fields a caller needs to show a hit.
func decodePayload(raw string) (*Payload, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, false
	}
	for _, k := range requiredPayloadKeys {
		if _, ok := keys[k]; !ok {
			return nil, false
		}
	}

	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}
