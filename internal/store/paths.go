package store

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"

	vserrors "github.com/denis567denis/valkey-search/internal/errors"
)

// normalizeFilePath returns p relative to workspace in slash form.
// Absolute paths must live under the workspace.
func normalizeFilePath(workspace, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", vserrors.New(vserrors.ErrCodeInvalidPath, "empty file path", nil)
	}

	native := filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
	if filepath.IsAbs(native) {
		rel, err := filepath.Rel(workspace, native)
		if err != nil {
			return "", vserrors.New(vserrors.ErrCodeInvalidPath, "path outside workspace: "+p, err)
		}
		native = rel
	}

	cleaned := path.Clean(filepath.ToSlash(native))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", vserrors.New(vserrors.ErrCodeInvalidPath, "path outside workspace: "+p, nil)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// splitSegments splits a normalized relative path into its components.
func splitSegments(rel string) []string {
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// segmentMap is the payload form of a path's segments.
func segmentMap(segments []string) map[string]string {
	m := make(map[string]string, len(segments))
	for i, s := range segments {
		m[strconv.Itoa(i)] = s
	}
	return m
}

// prefixSegments turns a directory prefix into the segments a hit must
// match. It returns nil when the prefix selects the whole workspace.
func prefixSegments(workspace, prefix string) ([]string, error) {
	trimmed := strings.TrimSpace(prefix)
	switch trimmed {
	case "", ".", "./", `.\`:
		return nil, nil
	}

	rel, err := normalizeFilePath(workspace, trimmed)
	if err != nil {
		// The workspace root itself, given as an absolute path.
		if filepath.Clean(filepath.FromSlash(trimmed)) == filepath.Clean(workspace) {
			return nil, nil
		}
		return nil, err
	}
	return splitSegments(rel), nil
}

func segmentField(i int) string {
	return "seg" + strconv.Itoa(i)
}
