package hashstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStability(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("hello world"), 0o644))

	h1, err := Fingerprint(a)
	require.NoError(t, err)
	h2, err := Fingerprint(a)
	require.NoError(t, err)
	h3, err := Fingerprint(b)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
	require.Equal(t, h1, h3, "identical bytes must produce identical digests")
	require.Equal(t, h1, FingerprintBytes([]byte("hello world")))

	require.NoError(t, os.WriteFile(b, []byte("hello worlds"), 0o644))
	h4, err := Fingerprint(b)
	require.NoError(t, err)
	require.NotEqual(t, h1, h4)
}

func TestFingerprintMissingFile(t *testing.T) {
	_, err := Fingerprint(filepath.Join(t.TempDir(), "missing.md"))
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "hashes.json"))
	require.Empty(t, store.Load())
}

func TestLoadMalformedReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	require.Empty(t, New(path).Load())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.json")
	store := New(path)

	hashes := map[string]string{
		"content/a.md": "abc",
		"content/b.md": "def",
	}
	require.NoError(t, store.Save(hashes))
	require.Equal(t, hashes, store.Load())

	// Pretty-printed with a trailing newline for diffability.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  ")
	require.True(t, json.Valid(data))
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.json")
	store := New(path)

	require.NoError(t, store.Save(map[string]string{"a": "1"}))
	require.NoError(t, store.Save(map[string]string{"b": "2"}))
	require.Equal(t, map[string]string{"b": "2"}, store.Load())

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
