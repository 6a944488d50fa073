package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/journal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.ConfigPath = filepath.Join(dir, "blog.yaml")
	cfg.Site.Title = "Test Blog"
	cfg.Site.Author = "tester"
	cfg.Site.BaseURL = "https://example.com"
	cfg.Paths.Content = filepath.Join(dir, "content")
	cfg.Paths.About = filepath.Join(dir, "about.md")
	cfg.Paths.JournalScratch = filepath.Join(dir, "journals.md")
	cfg.Paths.JournalArchive = filepath.Join(dir, "journals.json")
	cfg.Paths.Doit = filepath.Join(dir, "doit.json")
	cfg.Paths.Templates = filepath.Join(dir, "templates")
	cfg.Paths.Dist = filepath.Join(dir, "dist")
	cfg.Paths.HashStore = filepath.Join(dir, ".build-hash.json")

	require.NoError(t, os.MkdirAll(cfg.Paths.Content, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Paths.Templates, 0o755))
	require.NoError(t, os.WriteFile(cfg.ConfigPath, []byte("site:\n  title: Test Blog\n"), 0o644))

	require.NoError(t, os.WriteFile(cfg.Paths.PageTemplate(), []byte("<h1>$title$</h1>$body$"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Paths.IndexTemplate(), []byte("<main>$body$</main>"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Paths.JournalsTemplate(), []byte("<main>$body$</main>"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Paths.DoitTemplate(), []byte("$summary$|$body$"), 0o644))
	require.NoError(t, os.WriteFile(cfg.Paths.Stylesheet(), []byte("body {\n  color: red;\n}\n"), 0o644))

	return cfg
}

func writePost(t *testing.T, cfg *config.Config, name, slug, date, body string) string {
	t.Helper()
	doc := "---\ntitle: " + slug + "\nslug: " + slug + "\ndate: " + date + "\n---\n\n" + body + "\n"
	path := filepath.Join(cfg.Paths.Content, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestFirstBuild(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")
	writePost(t, cfg, "b.md", "beta", "2026-01-01 09:00", "Beta body.")

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "success", res.Outcome)
	require.Equal(t, 2, res.ItemsBuilt)
	require.Empty(t, res.Failures)
	require.True(t, res.FeedRegenerated)
	require.Equal(t, journal.ChangeInit, res.JournalChange)

	for _, out := range []string{
		filepath.Join(cfg.Paths.DistPost(), "alpha.html"),
		filepath.Join(cfg.Paths.DistPost(), "beta.html"),
		cfg.Paths.DistIndex(),
		cfg.Paths.DistJournals(),
		cfg.Paths.DistDoit(),
		cfg.Paths.DistFeed(),
		filepath.Join(cfg.Paths.DistStatic(), "style.css"),
		cfg.Paths.HashStore,
	} {
		_, err := os.Stat(out)
		require.NoError(t, err, out)
	}

	css, err := os.ReadFile(filepath.Join(cfg.Paths.DistStatic(), "style.css"))
	require.NoError(t, err)
	require.Equal(t, "body{color:red}", string(css))
}

func TestSecondBuildIsNoop(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")
	// No explicit metadata: defaults get written back on the first pass.
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Paths.Content, "b.md"),
		[]byte("---\n---\n\nBare body.\n"), 0o644))

	b := New(cfg)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	storeBefore, err := os.ReadFile(cfg.Paths.HashStore)
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "noop", res.Outcome)
	require.Zero(t, res.ItemsBuilt)
	require.Equal(t, 2, res.ItemsSkipped)
	require.False(t, res.FeedRegenerated)
	require.Equal(t, journal.ChangeNone, res.JournalChange)

	storeAfter, err := os.ReadFile(cfg.Paths.HashStore)
	require.NoError(t, err)
	require.Equal(t, string(storeBefore), string(storeAfter))
}

func TestNoopPassLeavesAggregatePagesUntouched(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")

	b := New(cfg)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	sentinel := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, path := range []string{cfg.Paths.DistJournals(), cfg.Paths.DistDoit()} {
		require.NoError(t, os.Chtimes(path, sentinel, sentinel))
	}

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "noop", res.Outcome)

	for _, path := range []string{cfg.Paths.DistJournals(), cfg.Paths.DistDoit()} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.True(t, info.ModTime().Equal(sentinel), "%s must not be rewritten on a no-change pass", path)
	}

	index, err := os.Stat(cfg.Paths.DistIndex())
	require.NoError(t, err)
	require.True(t, index.ModTime().After(sentinel), "index is regenerated every pass")
}

func TestDoitDataChangeRegeneratesPage(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")

	b := New(cfg)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.Paths.Doit,
		[]byte(`[{"date": "2026.07.25", "wake": "6.30", "steps": 12345}]`), 0o644))

	_, err = New(cfg).Run(context.Background())
	require.NoError(t, err)

	page, err := os.ReadFile(cfg.Paths.DistDoit())
	require.NoError(t, err)
	require.Contains(t, string(page), "07.25")
}

func TestTemplateChangeRebuildsAllItems(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")
	writePost(t, cfg, "b.md", "beta", "2026-01-01 09:00", "Beta body.")

	b := New(cfg)
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.Paths.PageTemplate(), []byte("<h2>$title$</h2>$body$"), 0o644))

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.ItemsBuilt, "dirty article category reprocesses every item")

	out, err := os.ReadFile(filepath.Join(cfg.Paths.DistPost(), "alpha.html"))
	require.NoError(t, err)
	require.Contains(t, string(out), "<h2>alpha</h2>")
}

func TestDeletionRemovesOutputAndFingerprint(t *testing.T) {
	cfg := testConfig(t)
	gone := writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")
	writePost(t, cfg, "b.md", "beta", "2026-01-01 09:00", "Beta body.")

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{gone}, res.DeletedSources)
	require.True(t, res.FeedRegenerated)

	_, err = os.Stat(filepath.Join(cfg.Paths.DistPost(), "alpha.html"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Paths.DistPost(), "beta.html"))
	require.NoError(t, err)

	store, err := os.ReadFile(cfg.Paths.HashStore)
	require.NoError(t, err)
	require.NotContains(t, string(store), "a.md")
	require.Contains(t, string(store), "b.md")
}

func TestSlugRenamePrunesOldOutput(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	writePost(t, cfg, "a.md", "renamed", "2026-01-02 10:00", "Alpha body.")
	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.ItemsBuilt)
	require.Empty(t, res.DeletedSources)

	_, err = os.Stat(filepath.Join(cfg.Paths.DistPost(), "renamed.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Paths.DistPost(), "alpha.html"))
	require.True(t, os.IsNotExist(err), "output under the old slug is pruned")
}

func TestPartialFailureIsolation(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "a.md", "alpha", "2026-01-02 10:00", "Alpha body.")
	writePost(t, cfg, "c.md", "gamma", "2026-01-03 08:00", "Gamma body.")
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Paths.Content, "b.md"),
		[]byte("---\ntitle: broken\n\nno closing delimiter"), 0o644))

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err, "per-item failures never abort the build")
	require.Equal(t, "partial", res.Outcome)
	require.Equal(t, 2, res.ItemsBuilt)
	require.Len(t, res.Failures, 1)
	require.Contains(t, res.Failures[0].Path, "b.md")

	store, err := os.ReadFile(cfg.Paths.HashStore)
	require.NoError(t, err)
	require.Contains(t, string(store), "a.md")
	require.NotContains(t, string(store), "b.md", "failed items get no fingerprint")
	require.Contains(t, string(store), "c.md")
}

func TestAboutPage(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Paths.About,
		[]byte("---\ntitle: About\nslug: about\ndate: 2026-01-01\n---\n\nWho I am.\n"), 0o644))

	b := New(cfg)
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.ItemsBuilt)

	out, err := os.ReadFile(cfg.Paths.DistAbout())
	require.NoError(t, err)
	require.Contains(t, string(out), "Who I am.")

	res, err = b.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.ItemsBuilt, "unchanged about page is not rewritten")
}

func TestJournalScratchFoldedIntoArchive(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Paths.JournalScratch, []byte("first note\n"), 0o644))

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, journal.ChangeInit, res.JournalChange)

	scratch, err := os.ReadFile(cfg.Paths.JournalScratch)
	require.NoError(t, err)
	require.Empty(t, scratch, "consumed scratch is truncated")

	archive, err := os.ReadFile(cfg.Paths.JournalArchive)
	require.NoError(t, err)
	require.Contains(t, string(archive), "first note")

	page, err := os.ReadFile(cfg.Paths.DistJournals())
	require.NoError(t, err)
	require.Contains(t, string(page), "first note")
}

func TestIndexOrdersNewestFirst(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg, "old.md", "older", "2025-01-01 09:00", "Old body.")
	writePost(t, cfg, "new.md", "newer", "2026-01-02 10:00", "New body.")

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	index, err := os.ReadFile(cfg.Paths.DistIndex())
	require.NoError(t, err)
	html := string(index)
	require.Contains(t, html, "newer")
	require.Contains(t, html, "older")
	require.Less(t,
		strings.Index(html, "newer"), strings.Index(html, "older"),
		"index lists posts newest first")
}
