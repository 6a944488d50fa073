package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// Watcher observes the source tree and reports paths whose changes should
// trigger a rebuild. Outputs the builder itself writes (hash store, journal
// archive, dist tree, scratch truncation) are filtered out so builds do not
// retrigger themselves.
type Watcher struct {
	cfg *config.Config
	fw  *fsnotify.Watcher
}

// NewWatcher sets up filesystem watches over the content directory, the
// template directory, and the site root (config, about, journal, doit).
func NewWatcher(cfg *config.Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dirs := map[string]struct{}{
		cfg.Paths.Content:                      {},
		cfg.Paths.Templates:                    {},
		filepath.Dir(cfg.ConfigPath):           {},
		filepath.Dir(cfg.Paths.About):          {},
		filepath.Dir(cfg.Paths.JournalScratch): {},
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return &Watcher{cfg: cfg, fw: fw}, nil
}

// Run forwards relevant change events to notify until the context ends.
func (w *Watcher) Run(ctx context.Context, notify func(path string)) error {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			slog.Debug("Source changed", "path", event.Name, "op", event.Op.String())
			notify(event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	p := w.cfg.Paths

	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	if name == p.HashStore || name == p.JournalArchive {
		return false
	}
	if name == p.Dist || strings.HasPrefix(name, p.Dist+string(os.PathSeparator)) {
		return false
	}

	if name == p.JournalScratch {
		// The build truncates the scratch after consuming it; an empty
		// scratch write is our own side effect, not user input.
		if info, err := os.Stat(name); err == nil && info.Size() == 0 {
			return false
		}
		return true
	}

	switch name {
	case w.cfg.ConfigPath, p.About, p.Doit:
		return true
	}
	if strings.HasPrefix(name, p.Content+string(os.PathSeparator)) {
		return true
	}
	if strings.HasPrefix(name, p.Templates+string(os.PathSeparator)) {
		return true
	}
	return false
}
