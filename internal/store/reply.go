package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	vserrors "github.com/denis567denis/valkey-search/internal/errors"
)

// isIndexNotFound recognizes the "no such index" replies of RediSearch
// ("Unknown Index name", "no such index") and valkey-search
// ("Index with name 'x' not found").
func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") ||
		strings.Contains(msg, "no such index") ||
		(strings.Contains(msg, "index") && strings.Contains(msg, "not found"))
}

func isIndexExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isDuplicateField(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

func malformed(what string, v any) error {
	return vserrors.New(vserrors.ErrCodeMalformedReply, fmt.Sprintf("unexpected %s reply: %T", what, v), nil)
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f), true
		}
	case []byte:
		return toInt64(string(t))
	}
	return 0, false
}

// pairs flattens RESP2 key/value arrays and RESP3 maps into one map keyed
// by lower-cased name.
func pairs(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case []any:
		m := make(map[string]any, len(t)/2)
		for i := 0; i+1 < len(t); i += 2 {
			k, ok := toString(t[i])
			if !ok {
				continue
			}
			m[strings.ToLower(k)] = t[i+1]
		}
		return m, true
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := toString(k); ok {
				m[strings.ToLower(ks)] = val
			}
		}
		return m, true
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[strings.ToLower(k)] = val
		}
		return m, true
	}
	return nil, false
}

// findInt searches a nested reply for the first integer under one of keys.
// valkey-search nests the vector dimension under an "index" sub-array.
func findInt(v any, keys ...string) (int64, bool) {
	m, ok := pairs(v)
	if !ok {
		return 0, false
	}
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			if n, ok := toInt64(raw); ok {
				return n, true
			}
		}
	}
	for _, child := range m {
		switch child.(type) {
		case []any, map[any]any, map[string]any:
			if n, ok := findInt(child, keys...); ok {
				return n, true
			}
		}
	}
	return 0, false
}

var segmentFieldRe = regexp.MustCompile(`^seg(\d+)$`)

// remoteIndex is the subset of FT.INFO the store relies on.
type remoteIndex struct {
	numDocs      int64
	dimension    int
	segmentDepth int

	// Options of the filePath TAG, when the engine reports them.
	tagSeparator     string
	tagCaseSensitive bool
}

// staleTagOptions reports an index whose TAG attributes were declared with
// the engine defaults, which fold case and split on ','.
func (r *remoteIndex) staleTagOptions() bool {
	if r.tagSeparator == "" {
		return false
	}
	return r.tagSeparator != tagSeparator || !r.tagCaseSensitive
}

// hasFlag reports whether a RESP2 attribute array carries a bare flag.
func hasFlag(v any, flag string) bool {
	arr, _ := v.([]any)
	for _, el := range arr {
		if s, ok := toString(el); ok && strings.EqualFold(s, flag) {
			return true
		}
	}
	return false
}

// parseInfo extracts document count, vector dimension and indexed segment
// depth from an FT.INFO reply.
func parseInfo(reply any) (*remoteIndex, error) {
	top, ok := pairs(reply)
	if !ok {
		return nil, malformed("FT.INFO", reply)
	}

	info := &remoteIndex{}
	if n, ok := toInt64(top["num_docs"]); ok {
		info.numDocs = n
	}

	attrs, _ := top["attributes"].([]any)
	if attrs == nil {
		// Older RediSearch versions call it "fields".
		attrs, _ = top["fields"].([]any)
	}

	seen := make(map[int]bool)
	for _, a := range attrs {
		m, ok := pairs(a)
		if !ok {
			continue
		}
		name, _ := toString(m["attribute"])
		if name == "" {
			name, _ = toString(m["identifier"])
		}

		if sm := segmentFieldRe.FindStringSubmatch(name); sm != nil {
			n, _ := strconv.Atoi(sm[1])
			seen[n] = true
			continue
		}

		if name == fieldFilePath {
			info.tagSeparator, _ = toString(m["separator"])
			info.tagCaseSensitive = hasFlag(a, "CASESENSITIVE")
			continue
		}

		typ, _ := toString(m["type"])
		if strings.EqualFold(typ, "VECTOR") || name == fieldVector {
			if d, ok := findInt(a, "dim", "dimensions"); ok {
				info.dimension = int(d)
			}
		}
	}

	// Depth counts contiguous seg0..segN-1 only; a gap means later
	// attributes can't be relied on for prefix filters.
	for seen[info.segmentDepth] {
		info.segmentDepth++
	}
	return info, nil
}

// searchHit is one raw FT.SEARCH document.
type searchHit struct {
	key    string
	fields map[string]string
}

// parseSearch decodes an FT.SEARCH reply. With NOCONTENT, fields is nil.
func parseSearch(reply any, noContent bool) (int64, []searchHit, error) {
	switch t := reply.(type) {
	case []any:
		return parseSearchRESP2(t, noContent)
	case map[any]any, map[string]any:
		return parseSearchRESP3(t)
	}
	return 0, nil, malformed("FT.SEARCH", reply)
}

func parseSearchRESP2(arr []any, noContent bool) (int64, []searchHit, error) {
	if len(arr) == 0 {
		return 0, nil, malformed("FT.SEARCH", arr)
	}
	total, ok := toInt64(arr[0])
	if !ok {
		return 0, nil, malformed("FT.SEARCH total", arr[0])
	}

	step := 2
	if noContent {
		step = 1
	}

	hits := make([]searchHit, 0, (len(arr)-1)/step)
	for i := 1; i < len(arr); i += step {
		key, ok := toString(arr[i])
		if !ok {
			return 0, nil, malformed("FT.SEARCH key", arr[i])
		}
		hit := searchHit{key: key}
		if !noContent && i+1 < len(arr) {
			hit.fields = stringFields(arr[i+1])
		}
		hits = append(hits, hit)
	}
	return total, hits, nil
}

func parseSearchRESP3(reply any) (int64, []searchHit, error) {
	top, _ := pairs(reply)
	total, _ := toInt64(top["total_results"])
	results, _ := top["results"].([]any)

	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		m, ok := pairs(r)
		if !ok {
			continue
		}
		key, _ := toString(m["id"])
		hits = append(hits, searchHit{key: key, fields: stringFields(m["extra_attributes"])})
	}
	return total, hits, nil
}

// stringFields keeps field names as sent; payload and score names are
// case-sensitive on the wire.
func stringFields(v any) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case []any:
		for i := 0; i+1 < len(t); i += 2 {
			k, ok1 := toString(t[i])
			val, ok2 := toString(t[i+1])
			if ok1 && ok2 {
				out[k] = val
			}
		}
	case map[any]any:
		for k, val := range t {
			ks, ok1 := toString(k)
			vs, ok2 := toString(val)
			if ok1 && ok2 {
				out[ks] = vs
			}
		}
	case map[string]any:
		for k, val := range t {
			if vs, ok := toString(val); ok {
				out[k] = vs
			}
		}
	}
	return out
}
