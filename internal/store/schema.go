package store

import (
	"strconv"

	"github.com/denis567denis/valkey-search/internal/config"
)

// Attribute names shared by HASH and JSON indexes.
const (
	fieldVector      = "vector"
	fieldFilePath    = "filePath"
	fieldSegmentHash = "segmentHash"
	fieldStartLine   = "startLine"
	fieldEndLine     = "endLine"
	fieldPayload     = "payload"
	fieldScore       = "__vector_score"
)

// tagSeparator splits TAG values. Engines default to ',', which occurs in
// file names; the unit separator never does.
const tagSeparator = "\x1f"

// tagType declares a case sensitive TAG attribute holding one whole value.
func tagType() []any {
	return []any{"TAG", "SEPARATOR", tagSeparator, "CASESENSITIVE"}
}

// indexSpec is everything FT.CREATE needs to know.
type indexSpec struct {
	storageMode    string
	dimension      int
	distanceMetric string
	algorithm      string
	hnswM          int
	hnswEF         int
	segmentDepth   int
}

// attr renders one schema attribute. JSON indexes address document fields
// by path and alias them to the HASH field name.
func (s indexSpec) attr(name string, typ ...any) []any {
	if s.storageMode == config.StorageJSON {
		return append([]any{"$." + name, "AS", name}, typ...)
	}
	return append([]any{name}, typ...)
}

func (s indexSpec) vectorAttr() []any {
	params := []any{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dimension),
		"DISTANCE_METRIC", s.distanceMetric,
	}
	if s.algorithm == "HNSW" {
		if s.hnswM > 0 {
			params = append(params, "M", strconv.Itoa(s.hnswM))
		}
		if s.hnswEF > 0 {
			params = append(params, "EF_CONSTRUCTION", strconv.Itoa(s.hnswEF))
		}
	}
	typ := append([]any{"VECTOR", s.algorithm, strconv.Itoa(len(params))}, params...)
	return s.attr(fieldVector, typ...)
}

// createArgs builds FT.CREATE for index with documents under "{index}:".
func (s indexSpec) createArgs(index string) []any {
	on := "HASH"
	if s.storageMode == config.StorageJSON {
		on = "JSON"
	}

	args := []any{"FT.CREATE", index, "ON", on, "PREFIX", "1", index + ":", "SCHEMA"}
	args = append(args, s.vectorAttr()...)
	args = append(args, s.attr(fieldFilePath, tagType()...)...)
	args = append(args, s.attr(fieldSegmentHash, tagType()...)...)
	args = append(args, s.attr(fieldStartLine, "NUMERIC")...)
	args = append(args, s.attr(fieldEndLine, "NUMERIC")...)
	for i := 0; i < s.segmentDepth; i++ {
		args = append(args, s.attr(segmentField(i), tagType()...)...)
	}
	return args
}

// alterArgs adds segment attributes from..to-1.
func (s indexSpec) alterArgs(index string, from, to int) []any {
	args := []any{"FT.ALTER", index, "SCHEMA", "ADD"}
	for i := from; i < to; i++ {
		args = append(args, s.attr(segmentField(i), tagType()...)...)
	}
	return args
}
