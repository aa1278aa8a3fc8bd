package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// IndexName derives the per-workspace index name: prefix, a dash, and the
// first 16 hex characters of the SHA-256 of the absolute workspace path.
func IndexName(prefix, workspacePath string) (string, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return prefix + "-" + hex.EncodeToString(sum[:])[:16], nil
}

func documentKey(index, id string) string {
	return index + ":" + id
}

// metaKey lives outside the document prefix so FT.CREATE never indexes it.
func metaKey(index string) string {
	return "meta:" + index
}

// globEscape escapes SCAN MATCH metacharacters.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
