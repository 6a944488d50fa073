// Package hashstore computes content fingerprints for source files and
// persists the path→digest mapping between builds. The mapping is the only
// cross-invocation state the builder keeps: it is the baseline every
// incremental decision is made against.
package hashstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrSourceUnavailable marks fingerprinting failures caused by the source
// file being missing or unreadable. Callers treat it as "no baseline, must
// rebuild", not as a fatal error.
var ErrSourceUnavailable = errors.New("source unavailable")

// Fingerprint returns the sha256 hex digest of the file's content.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FingerprintBytes digests in-memory content. Two equal byte slices always
// produce the same digest as Fingerprint on a file with that content.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store persists the path→digest mapping for one site.
type Store struct {
	path string
}

// New creates a store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted mapping. A missing or malformed store file yields
// an empty map: the first build, or a build after cache corruption, is
// simply a full build.
func (s *Store) Load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Hash store unreadable, starting from empty baseline", "path", s.path, "error", err)
		}
		return map[string]string{}
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		slog.Warn("Hash store malformed, starting from empty baseline", "path", s.path, "error", err)
		return map[string]string{}
	}
	if hashes == nil {
		return map[string]string{}
	}
	return hashes
}

// Save atomically replaces the persisted mapping. The JSON is pretty-printed
// with sorted keys so the file diffs cleanly; ordering is not a correctness
// requirement.
func (s *Store) Save(hashes map[string]string) error {
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hash store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".build-hash-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp hash store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp hash store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp hash store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace hash store: %w", err)
	}
	return nil
}
