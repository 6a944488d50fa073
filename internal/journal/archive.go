// Package journal merges free-form scratch input into the persisted journal
// archive and classifies what changed between runs.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is one journal item. Newest entries come first in the archive.
type Entry struct {
	Date    string `json:"date"` // "2006-01-02 15:04", local to the build host
	Content string `json:"content"`
}

// document is the persisted archive schema. Count records how many entries
// were present at the last persist; an external edit that removes entries
// leaves it stale, which is how deletions are recognized on the next run.
//
// Legacy archives are a bare JSON array of entries (no version, no count)
// and migrate to this schema on the first write.
type document struct {
	Version int     `json:"version"`
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

const schemaVersion = 1

// LoadResult captures the persisted archive as last read, including the raw
// bytes the canonical comparison runs against.
type LoadResult struct {
	Entries       []Entry
	RecordedCount int
	Raw           []byte
	Legacy        bool  // archive was a bare array, not the versioned document
	Err           error // non-nil: no usable prior archive (first run)
}

// LoadArchive reads and parses the archive file. A missing or malformed
// file is reported through Err, not as a failure: the reconciler treats it
// as first-run initialization.
func LoadArchive(path string) LoadResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{Err: err}
	}
	entries, count, legacy, err := parseArchive(raw)
	if err != nil {
		return LoadResult{Raw: raw, Err: err}
	}
	return LoadResult{Entries: entries, RecordedCount: count, Raw: raw, Legacy: legacy}
}

// parseArchive accepts both the versioned document and the legacy bare
// array, sniffed by the first JSON token rather than by probing fields.
func parseArchive(raw []byte) ([]Entry, int, bool, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, 0, false, fmt.Errorf("parse legacy archive: %w", err)
		}
		return entries, len(entries), true, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, false, fmt.Errorf("parse archive: %w", err)
	}
	if doc.Version > schemaVersion {
		return nil, 0, false, fmt.Errorf("archive schema version %d is newer than supported %d", doc.Version, schemaVersion)
	}
	return doc.Entries, doc.Count, false, nil
}

// Canonical returns the serialization the archive is persisted in. Count is
// always recomputed from the entries.
func Canonical(entries []Entry) []byte {
	if entries == nil {
		entries = []Entry{}
	}
	doc := document{Version: schemaVersion, Count: len(entries), Entries: entries}
	data, _ := json.MarshalIndent(doc, "", "  ")
	return append(data, '\n')
}

// writeArchive atomically replaces the archive file with the canonical
// serialization of entries.
func writeArchive(path string, entries []Entry) error {
	data := Canonical(entries)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".journal-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}
