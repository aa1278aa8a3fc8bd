package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexName_HashesAbsolutePath(t *testing.T) {
	dir := t.TempDir()

	name, err := IndexName("ws", dir)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(filepath.Clean(dir)))
	assert.Equal(t, "ws-"+hex.EncodeToString(sum[:])[:16], name)
	assert.Len(t, name, len("ws-")+16)
}

func TestIndexName_StableAcrossSpellings(t *testing.T) {
	dir := t.TempDir()

	a, err := IndexName("ws", dir)
	require.NoError(t, err)
	b, err := IndexName("ws", dir+string(filepath.Separator)+"."+string(filepath.Separator))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestIndexName_DiffersPerWorkspace(t *testing.T) {
	a, err := IndexName("ws", t.TempDir())
	require.NoError(t, err)
	b, err := IndexName("ws", t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ws-abc:p1", documentKey("ws-abc", "p1"))
	assert.Equal(t, "meta:ws-abc", metaKey("ws-abc"))
	assert.Equal(t, `ws\*a\?b\[c\]`, globEscape("ws*a?b[c]"))
}
