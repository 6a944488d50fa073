// Package builder runs one incremental build pass: fingerprint diffing,
// category invalidation, content processing, journal reconciliation,
// aggregate generation, cleanup, and baseline persistence.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/blogbuilder/internal/assets"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
	"git.home.luguber.info/inful/blogbuilder/internal/deps"
	"git.home.luguber.info/inful/blogbuilder/internal/doit"
	"git.home.luguber.info/inful/blogbuilder/internal/feed"
	"git.home.luguber.info/inful/blogbuilder/internal/hashstore"
	"git.home.luguber.info/inful/blogbuilder/internal/history"
	"git.home.luguber.info/inful/blogbuilder/internal/journal"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

// ItemFailure records one content item that could not be processed.
type ItemFailure struct {
	Path string
	Err  error
}

// Result summarizes one build pass.
type Result struct {
	BuildID         string
	Duration        time.Duration
	ItemsBuilt      int
	ItemsSkipped    int
	Failures        []ItemFailure
	DeletedSources  []string
	JournalChange   journal.ChangeType
	FeedRegenerated bool
	Outcome         string // success | partial | noop
}

// Builder orchestrates build passes. It is safe to call Run repeatedly from
// one goroutine; each pass constructs its own processing state.
type Builder struct {
	cfg      *config.Config
	graph    *deps.Graph
	store    *hashstore.Store
	recorder metrics.Recorder
	events   history.Store
	now      func() time.Time
	newID    func() string
}

// New creates a builder for the given site.
func New(cfg *config.Config) *Builder {
	return &Builder{
		cfg:      cfg,
		graph:    deps.NewGraph(cfg),
		store:    hashstore.New(cfg.Paths.HashStore),
		recorder: metrics.NoopRecorder{},
		events:   history.NoopStore{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithRecorder injects a metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	b.recorder = r
	return b
}

// WithHistory injects a build event store.
func (b *Builder) WithHistory(s history.Store) *Builder {
	b.events = s
	return b
}

// Graph exposes the dependency table, for the deps listing command and the
// watch daemon.
func (b *Builder) Graph() *deps.Graph { return b.graph }

// Run executes one build pass. On error the persisted fingerprint baseline
// is left untouched.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := b.now()
	res := &Result{BuildID: b.newID()}
	b.record(ctx, res.BuildID, history.EventBuildStarted, map[string]string{"config": b.cfg.ConfigPath})

	err := b.run(ctx, res)
	res.Duration = b.now().Sub(start)
	b.recorder.ObserveBuildDuration(res.Duration)

	if err != nil {
		b.recorder.IncBuildOutcome("failed")
		b.record(ctx, res.BuildID, history.EventBuildFinished, map[string]any{
			"outcome":     "failed",
			"error":       err.Error(),
			"duration_ms": res.Duration.Milliseconds(),
		})
		return res, err
	}

	res.Outcome = outcome(res)
	b.recorder.IncBuildOutcome(res.Outcome)
	b.recorder.AddItemsBuilt(res.ItemsBuilt)
	b.record(ctx, res.BuildID, history.EventBuildFinished, map[string]any{
		"outcome":     res.Outcome,
		"items":       res.ItemsBuilt,
		"failures":    len(res.Failures),
		"duration_ms": res.Duration.Milliseconds(),
	})
	slog.Info("Build finished",
		"build_id", res.BuildID,
		"outcome", res.Outcome,
		"built", res.ItemsBuilt,
		"skipped", res.ItemsSkipped,
		"failed", len(res.Failures),
		"duration", res.Duration)
	return res, nil
}

func (b *Builder) run(ctx context.Context, res *Result) error {
	p := b.cfg.Paths

	if err := b.stage("prepare", func() error {
		for _, dir := range []string{p.Dist, p.DistPost(), p.DistStatic()} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	previous := b.store.Load()

	watched := b.fingerprintWatched()
	changes := deps.Detect(b.graph, previous, watched)
	for _, cat := range b.graph.Categories() {
		if changes.Dirty[cat] {
			slog.Debug("Category dirty", "category", string(cat))
		}
	}

	baseline := b.invalidate(previous, changes)

	sources, err := b.listSources()
	if err != nil {
		return fmt.Errorf("list content: %w", err)
	}
	res.DeletedSources = b.staleSources(previous, sources)

	var (
		posts      []*content.Post
		itemHashes = map[string]string{}
		about      aboutResult
		journalOut journal.Outcome
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		copier := assets.NewCopier()
		dst := filepath.Join(p.DistStatic(), filepath.Base(p.Stylesheet()))
		if err := copier.Copy(p.Stylesheet(), dst); err != nil {
			return fmt.Errorf("assets: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		posts, err = b.processItems(gctx, res, sources, baseline, itemHashes)
		return err
	})

	g.Go(func() error {
		var err error
		about, err = b.processAbout(baseline)
		return err
	})

	g.Go(func() error {
		rec := journal.NewReconciler(p.JournalArchive, p.JournalScratch)
		var err error
		journalOut, err = rec.Run()
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if about.built {
		res.ItemsBuilt++
	}
	if about.failure != nil {
		res.Failures = append(res.Failures, *about.failure)
	}

	res.JournalChange = journalOut.Type
	b.recorder.IncJournalChange(string(journalOut.Type))
	b.record(ctx, res.BuildID, history.EventJournalReconciled, map[string]any{
		"type":    string(journalOut.Type),
		"entries": len(journalOut.Entries),
	})

	b.sortPosts(posts)

	if err := b.stage("aggregates", func() error {
		return b.generateAggregates(res, posts, journalOut, changes)
	}); err != nil {
		return err
	}

	if err := b.stage("cleanup", func() error {
		return b.cleanup(res, posts)
	}); err != nil {
		return err
	}

	return b.stage("persist", func() error {
		merged := make(map[string]string, len(watched)+len(posts)+1)
		for path, digest := range watched {
			merged[path] = digest
		}
		for _, post := range posts {
			if digest, ok := itemHashes[post.SourcePath]; ok {
				merged[post.SourcePath] = digest
			} else if digest, ok := baseline[post.SourcePath]; ok {
				merged[post.SourcePath] = digest
			}
		}
		if about.hash != "" {
			merged[p.About] = about.hash
		} else if digest, ok := baseline[p.About]; ok {
			if _, err := os.Stat(p.About); err == nil {
				merged[p.About] = digest
			}
		}
		return b.store.Save(merged)
	})
}

// fingerprintWatched digests every path in the dependency table. Missing
// files simply have no current fingerprint.
func (b *Builder) fingerprintWatched() map[string]string {
	current := make(map[string]string)
	for _, path := range b.graph.AllWatchedPaths() {
		digest, err := hashstore.Fingerprint(path)
		if err != nil {
			slog.Debug("Watched path unavailable", "path", path, "error", err)
			continue
		}
		current[path] = digest
	}
	return current
}

// invalidate drops per-item fingerprints for dirty categories so their whole
// domain reprocesses this run.
func (b *Builder) invalidate(previous map[string]string, changes deps.Changes) map[string]string {
	baseline := make(map[string]string, len(previous))
	for path, digest := range previous {
		baseline[path] = digest
	}
	if changes.Dirty[deps.CategoryArticle] {
		prefix := b.cfg.Paths.Content + string(os.PathSeparator)
		for path := range baseline {
			if strings.HasPrefix(path, prefix) {
				delete(baseline, path)
			}
		}
		delete(baseline, b.cfg.Paths.About)
	}
	return baseline
}

// listSources returns the markdown sources under the content directory,
// sorted by name. A missing content directory is fatal upstream.
func (b *Builder) listSources() ([]string, error) {
	entries, err := os.ReadDir(b.cfg.Paths.Content)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		sources = append(sources, filepath.Join(b.cfg.Paths.Content, entry.Name()))
	}
	sort.Strings(sources)
	return sources, nil
}

// staleSources returns previously fingerprinted content sources that no
// longer exist, about page included.
func (b *Builder) staleSources(previous map[string]string, sources []string) []string {
	existing := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		existing[src] = struct{}{}
	}

	prefix := b.cfg.Paths.Content + string(os.PathSeparator)
	var gone []string
	for path := range previous {
		if strings.HasPrefix(path, prefix) {
			if _, ok := existing[path]; !ok {
				gone = append(gone, path)
			}
			continue
		}
		if path == b.cfg.Paths.About {
			if _, err := os.Stat(path); err != nil {
				gone = append(gone, path)
			}
		}
	}
	sort.Strings(gone)
	return gone
}

// processItems walks the content sources in order. Changed items are fully
// rendered and written; unchanged items get a metadata-only reload. Per-item
// errors are collected, not fatal.
func (b *Builder) processItems(ctx context.Context, res *Result, sources []string, baseline, itemHashes map[string]string) ([]*content.Post, error) {
	proc, err := content.NewProcessor(b.cfg)
	if err != nil {
		return nil, err
	}

	var posts []*content.Post
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		digest, err := hashstore.Fingerprint(src)
		if err != nil {
			b.itemFailed(ctx, res, src, err)
			continue
		}

		if prev, ok := baseline[src]; ok && prev == digest {
			post, err := proc.BasicInfo(src, false)
			if err != nil {
				b.itemFailed(ctx, res, src, err)
				continue
			}
			posts = append(posts, post)
			res.ItemsSkipped++
			continue
		}

		post, normalized, err := proc.Process(src, false)
		if err != nil {
			b.itemFailed(ctx, res, src, err)
			continue
		}

		outPath := filepath.Join(b.cfg.Paths.DistPost(), post.Slug+".html")
		if err := os.WriteFile(outPath, []byte(post.HTML), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", outPath, err)
		}

		itemHashes[src] = hashstore.FingerprintBytes(normalized)
		posts = append(posts, post)
		res.ItemsBuilt++
		slog.Info("Item built", "path", src, "slug", post.Slug)
		b.record(ctx, res.BuildID, history.EventItemBuilt, map[string]string{"path": src, "slug": post.Slug})
	}
	return posts, nil
}

type aboutResult struct {
	hash    string
	built   bool
	failure *ItemFailure
}

// processAbout renders the about page when its source changed. It runs on
// its own errgroup branch, so it reports through the returned value instead
// of mutating shared build state.
func (b *Builder) processAbout(baseline map[string]string) (aboutResult, error) {
	src := b.cfg.Paths.About
	digest, err := hashstore.Fingerprint(src)
	if err != nil {
		slog.Debug("No about page source", "path", src)
		return aboutResult{}, nil
	}
	if prev, ok := baseline[src]; ok && prev == digest {
		return aboutResult{}, nil
	}

	proc, err := content.NewProcessor(b.cfg)
	if err != nil {
		return aboutResult{}, err
	}
	post, normalized, err := proc.Process(src, true)
	if err != nil {
		slog.Warn("About page failed", "path", src, "error", err)
		return aboutResult{failure: &ItemFailure{Path: src, Err: err}}, nil
	}
	if err := os.WriteFile(b.cfg.Paths.DistAbout(), []byte(post.HTML), 0o644); err != nil {
		return aboutResult{}, fmt.Errorf("write about page: %w", err)
	}
	return aboutResult{hash: hashstore.FingerprintBytes(normalized), built: true}, nil
}

func (b *Builder) itemFailed(ctx context.Context, res *Result, path string, err error) {
	res.Failures = append(res.Failures, ItemFailure{Path: path, Err: err})
	slog.Warn("Item skipped", "path", path, "error", err)
	b.record(ctx, res.BuildID, history.EventItemFailed, map[string]string{"path": path, "error": err.Error()})
}

// generateAggregates writes the index page (always), the journal and doit
// pages when their inputs changed or the output is missing, and the feed
// when any item changed or was deleted.
func (b *Builder) generateAggregates(res *Result, posts []*content.Post, journalOut journal.Outcome, changes deps.Changes) error {
	p := b.cfg.Paths
	gen := site.NewGenerator(b.cfg, content.NewRenderer())

	indexHTML, err := gen.IndexPage(posts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.DistIndex(), []byte(indexHTML), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	if journalOut.Changed || changes.Dirty[deps.CategoryJournal] || outputMissing(p.DistJournals()) {
		journalsHTML, err := gen.JournalsPage(journalOut.Entries)
		if err != nil {
			return err
		}
		if err := os.WriteFile(p.DistJournals(), []byte(journalsHTML), 0o644); err != nil {
			return fmt.Errorf("write journals page: %w", err)
		}
	}

	if changes.Dirty[deps.CategoryDoit] || outputMissing(p.DistDoit()) {
		data, err := doit.Load(p.Doit)
		if err != nil {
			slog.Warn("Doit data unavailable", "path", p.Doit, "error", err)
		}
		doitHTML, err := gen.DoitPage(data)
		if err != nil {
			return err
		}
		if err := os.WriteFile(p.DistDoit(), []byte(doitHTML), 0o644); err != nil {
			return fmt.Errorf("write doit page: %w", err)
		}
	}

	if res.ItemsBuilt > 0 || len(res.DeletedSources) > 0 {
		rss, err := feed.Generate(b.cfg, posts, b.now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(p.DistFeed(), []byte(rss), 0o644); err != nil {
			return fmt.Errorf("write feed: %w", err)
		}
		res.FeedRegenerated = true
	}
	return nil
}

func outputMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}

// cleanup removes post outputs whose source is gone or whose slug changed.
// Expected outputs are derived from the current post set; anything else
// under dist/post is stale. Failed items have no known output name, so
// pruning is deferred to the next clean pass when any item failed.
func (b *Builder) cleanup(res *Result, posts []*content.Post) error {
	deleted := res.DeletedSources
	if len(deleted) == 0 && res.ItemsBuilt == 0 {
		return nil
	}

	if len(res.Failures) > 0 {
		slog.Debug("Pruning deferred, failed items have no known output")
	} else {
		expected := make(map[string]struct{}, len(posts))
		for _, post := range posts {
			expected[post.Slug+".html"] = struct{}{}
		}

		entries, err := os.ReadDir(b.cfg.Paths.DistPost())
		if err != nil {
			return fmt.Errorf("list post outputs: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
				continue
			}
			if _, ok := expected[entry.Name()]; ok {
				continue
			}
			stale := filepath.Join(b.cfg.Paths.DistPost(), entry.Name())
			if err := os.Remove(stale); err != nil {
				slog.Warn("Could not remove stale output", "path", stale, "error", err)
				continue
			}
			slog.Info("Removed stale output", "path", stale)
		}
	}

	for _, src := range deleted {
		if src == b.cfg.Paths.About {
			if err := os.Remove(b.cfg.Paths.DistAbout()); err != nil && !os.IsNotExist(err) {
				slog.Warn("Could not remove about output", "error", err)
			}
		}
	}
	return nil
}

func (b *Builder) sortPosts(posts []*content.Post) {
	loc := b.cfg.Location()
	sort.SliceStable(posts, func(i, j int) bool {
		ti := content.ParseDate(posts[i].Date, loc)
		tj := content.ParseDate(posts[j].Date, loc)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return posts[i].Slug < posts[j].Slug
	})
}

// stage wraps one pipeline stage with timing and a stage-labeled error.
func (b *Builder) stage(name string, fn func() error) error {
	start := b.now()
	err := fn()
	b.recorder.ObserveStageDuration(name, b.now().Sub(start))
	if err != nil {
		b.recorder.IncStageResult(name, metrics.ResultFailed)
		return fmt.Errorf("%s: %w", name, err)
	}
	b.recorder.IncStageResult(name, metrics.ResultSuccess)
	return nil
}

func (b *Builder) record(ctx context.Context, buildID, eventType string, payload any) {
	if err := b.events.Append(ctx, buildID, eventType, payload); err != nil {
		slog.Warn("Could not record build event", "type", eventType, "error", err)
	}
}

func outcome(res *Result) string {
	if len(res.Failures) > 0 {
		return "partial"
	}
	if res.ItemsBuilt == 0 && len(res.DeletedSources) == 0 && (res.JournalChange == journal.ChangeNone || res.JournalChange == "") {
		return "noop"
	}
	return "success"
}
