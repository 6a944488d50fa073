package journal

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ChangeType classifies the outcome of one reconciliation pass.
type ChangeType string

const (
	ChangeNone     ChangeType = "none"
	ChangeInit     ChangeType = "init"     // no usable prior archive existed
	ChangeAdded    ChangeType = "added"    // scratch content became a new entry
	ChangeModified ChangeType = "modified" // archive externally edited
	ChangeDeleted  ChangeType = "deleted"  // archive externally edited, entries removed
)

// Outcome is the result of Reconcile plus what Persist must do.
type Outcome struct {
	Entries       []Entry
	Type          ChangeType
	Changed       bool
	PreviousCount int

	scratchConsumed bool
	legacyMigrated  bool
}

// Reconciler folds scratch input into the archive. It is build-scoped:
// construct one per pass, never share across builds.
type Reconciler struct {
	ArchivePath string
	ScratchPath string
	Now         func() time.Time
}

// NewReconciler creates a reconciler over the configured journal files.
func NewReconciler(archivePath, scratchPath string) *Reconciler {
	return &Reconciler{ArchivePath: archivePath, ScratchPath: scratchPath, Now: time.Now}
}

// ReadScratch returns the pending scratch content. A missing scratch file is
// simply empty input.
func (r *Reconciler) ReadScratch() (string, error) {
	data, err := os.ReadFile(r.ScratchPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read journal scratch: %w", err)
	}
	return string(data), nil
}

// Reconcile computes the merged archive and its classification. It has no
// side effects; Persist applies them.
//
// Classification rules:
//   - no prior archive (missing or malformed): init, seeded from scratch if
//     any; always changed so the canonical baseline gets written
//   - scratch non-empty: a new entry is prepended; added
//   - otherwise the canonical serialization of the parsed archive is
//     compared to the raw bytes last read; a mismatch is an external edit,
//     deleted when entries dropped below the recorded count, modified
//     otherwise
func (r *Reconciler) Reconcile(scratch string, prev LoadResult) Outcome {
	trimmed := strings.TrimSpace(scratch)

	if prev.Err != nil {
		entries := []Entry{}
		if trimmed != "" {
			entries = []Entry{r.newEntry(trimmed)}
		}
		return Outcome{
			Entries:         entries,
			Type:            ChangeInit,
			Changed:         true,
			scratchConsumed: trimmed != "",
		}
	}

	if trimmed != "" {
		merged := make([]Entry, 0, len(prev.Entries)+1)
		merged = append(merged, r.newEntry(trimmed))
		merged = append(merged, prev.Entries...)
		return Outcome{
			Entries:         merged,
			Type:            ChangeAdded,
			Changed:         true,
			PreviousCount:   prev.RecordedCount,
			scratchConsumed: true,
		}
	}

	if !bytes.Equal(Canonical(prev.Entries), prev.Raw) {
		ct := ChangeModified
		if len(prev.Entries) < prev.RecordedCount {
			ct = ChangeDeleted
		}
		return Outcome{
			Entries:       prev.Entries,
			Type:          ct,
			Changed:       true,
			PreviousCount: prev.RecordedCount,
			// A legacy bare array never matches the canonical form; the
			// rewrite is a one-time schema upgrade, not a hand-edit.
			legacyMigrated: prev.Legacy,
		}
	}

	return Outcome{Entries: prev.Entries, Type: ChangeNone, PreviousCount: prev.RecordedCount}
}

// Persist writes the archive and, if scratch content was consumed, truncates
// the scratch file. The two writes are not atomic as a pair: a crash in
// between can duplicate one entry on the next run. Accepted as
// at-most-once-on-success (see DESIGN.md).
func (r *Reconciler) Persist(out Outcome) error {
	if !out.Changed {
		return nil
	}
	if err := writeArchive(r.ArchivePath, out.Entries); err != nil {
		return err
	}
	if out.scratchConsumed {
		if err := os.WriteFile(r.ScratchPath, nil, 0o644); err != nil {
			return fmt.Errorf("clear journal scratch: %w", err)
		}
	}
	if out.legacyMigrated {
		slog.Info("Journal archive migrated to versioned schema",
			"entries", len(out.Entries))
	} else {
		slog.Info("Journal reconciled",
			"type", string(out.Type),
			"entries", len(out.Entries),
			"previous", out.PreviousCount)
	}
	return nil
}

// Run performs one full reconciliation pass: read, reconcile, persist.
func (r *Reconciler) Run() (Outcome, error) {
	scratch, err := r.ReadScratch()
	if err != nil {
		return Outcome{}, err
	}
	prev := LoadArchive(r.ArchivePath)
	if prev.Err != nil && !os.IsNotExist(prev.Err) {
		slog.Warn("Journal archive unreadable, reinitializing", "path", r.ArchivePath, "error", prev.Err)
	}
	out := r.Reconcile(scratch, prev)
	if err := r.Persist(out); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (r *Reconciler) newEntry(content string) Entry {
	return Entry{
		Date:    r.Now().Format("2006-01-02 15:04"),
		Content: content,
	}
}
