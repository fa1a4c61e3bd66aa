package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known SHA-256 of the ASCII string "hello".
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestBytes(t *testing.T) {
	assert.Equal(t, helloDigest, Bytes([]byte("hello")))
	assert.NotEqual(t, Bytes([]byte("hello")), Bytes([]byte("hello ")))

	// Empty input still has a well-defined digest.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Bytes(nil))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, helloDigest, got)

	// File and Bytes agree on identical content.
	assert.Equal(t, Bytes([]byte("hello")), got)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
