package store

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/denis567denis/valkey-search/internal/config"
)

// escapeTag backslash-escapes everything except letters, digits and
// underscore so a value can sit inside a TAG clause {...}.
func escapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v) * 2)
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// knnQuery builds the query string for a KNN search with an optional path
// segment filter.
func knnQuery(segments []string, k int) string {
	filter := "*"
	if len(segments) > 0 {
		filter = segmentFilter(segments)
	}
	return fmt.Sprintf("%s=>[KNN %d @%s $vec AS %s]", filter, k, fieldVector, fieldScore)
}

// segmentFilter matches documents whose leading path segments equal
// segments, i.e. files under that directory.
func segmentFilter(segments []string) string {
	clauses := make([]string, len(segments))
	for i, s := range segments {
		clauses[i] = fmt.Sprintf("@%s:{%s}", segmentField(i), escapeTag(s))
	}
	return "(" + strings.Join(clauses, " ") + ")"
}

// searchArgs builds the FT.SEARCH command for a KNN query.
func searchArgs(index, storageMode, query string, blob []byte, k int) []any {
	var ret []any
	if storageMode == config.StorageJSON {
		ret = []any{"$." + fieldPayload, "AS", fieldPayload, fieldScore}
	} else {
		ret = []any{fieldPayload, fieldScore}
	}

	args := []any{"FT.SEARCH", index, query, "PARAMS", "2", "vec", blob, "RETURN", strconv.Itoa(len(ret))}
	args = append(args, ret...)
	return append(args, "LIMIT", "0", strconv.Itoa(k), "DIALECT", "2")
}

// filePathQuery matches documents whose filePath tag is any of paths.
func filePathQuery(paths []string) string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = escapeTag(p)
	}
	return fmt.Sprintf("@%s:{%s}", fieldFilePath, strings.Join(escaped, " | "))
}

// keysArgs pages through keys matching query without fetching content.
func keysArgs(index, query string, offset, limit int) []any {
	return []any{"FT.SEARCH", index, query, "NOCONTENT",
		"LIMIT", strconv.Itoa(offset), strconv.Itoa(limit), "DIALECT", "2"}
}
