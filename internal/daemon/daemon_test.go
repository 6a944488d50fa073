package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	deb, err := NewDebouncer(DebouncerConfig{QuietWindow: 20 * time.Millisecond, MaxDelay: time.Second})
	require.NoError(t, err)

	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		deb.Run(ctx, func(context.Context) { fired.Add(1) })
		close(done)
	}()

	for i := 0; i < 5; i++ {
		deb.Request()
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, 5*time.Millisecond, "burst coalesces into one build")

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load(), "no spurious extra builds")

	cancel()
	<-done
}

func TestDebouncerMaxDelayBoundsPostponement(t *testing.T) {
	deb, err := NewDebouncer(DebouncerConfig{QuietWindow: 40 * time.Millisecond, MaxDelay: 100 * time.Millisecond})
	require.NoError(t, err)

	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deb.Run(ctx, func(context.Context) { fired.Add(1) })

	// Keep requesting faster than the quiet window; only the max delay can
	// let a build through.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && fired.Load() == 0 {
		deb.Request()
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, fired.Load(), int32(1), "max delay forces a build")
}

func TestDebouncerRejectsBadConfig(t *testing.T) {
	_, err := NewDebouncer(DebouncerConfig{QuietWindow: 0, MaxDelay: time.Second})
	require.Error(t, err)
	_, err = NewDebouncer(DebouncerConfig{QuietWindow: time.Second, MaxDelay: 0})
	require.Error(t, err)
}

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Paths.Dist = dir
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "post"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte("<html><body>home</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "about.html"),
		[]byte("<html><body>about</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post", "hello.html"),
		[]byte("<html><body>hello</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed"),
		[]byte("<rss></rss>"), 0o644))
	return cfg
}

func TestServerCleanURLs(t *testing.T) {
	srv := NewServer(testServerConfig(t), NewLiveReloadHub(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cases := []struct {
		path string
		want string
	}{
		{"/", "home"},
		{"/about", "about"},
		{"/post/hello", "hello"},
		{"/feed", "<rss>"},
	}
	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		require.NoError(t, err)
		body := make([]byte, 4096)
		n, _ := resp.Body.Read(body)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, tc.path)
		require.Contains(t, string(body[:n]), tc.want, tc.path)
	}

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerInjectsLivereloadScript(t *testing.T) {
	srv := NewServer(testServerConfig(t), NewLiveReloadHub(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body := make([]byte, 4096)
	n, _ := resp.Body.Read(body)
	resp.Body.Close()
	require.Contains(t, string(body[:n]), "/livereload.js")

	resp, err = http.Get(ts.URL + "/livereload.js")
	require.NoError(t, err)
	n, _ = resp.Body.Read(body)
	resp.Body.Close()
	require.Contains(t, string(body[:n]), "EventSource")
}

func TestWatcherRelevance(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.ConfigPath = filepath.Join(dir, "blog.yaml")
	cfg.Paths.Content = filepath.Join(dir, "content")
	cfg.Paths.About = filepath.Join(dir, "about.md")
	cfg.Paths.JournalScratch = filepath.Join(dir, "journals.md")
	cfg.Paths.JournalArchive = filepath.Join(dir, "journals.json")
	cfg.Paths.Doit = filepath.Join(dir, "doit.json")
	cfg.Paths.Templates = filepath.Join(dir, "templates")
	cfg.Paths.Dist = filepath.Join(dir, "dist")
	cfg.Paths.HashStore = filepath.Join(dir, ".build-hash.json")

	w := &Watcher{cfg: cfg}

	require.True(t, w.relevant(filepath.Join(cfg.Paths.Content, "a.md")))
	require.True(t, w.relevant(filepath.Join(cfg.Paths.Templates, "page.html")))
	require.True(t, w.relevant(cfg.Paths.About))
	require.True(t, w.relevant(cfg.ConfigPath))
	require.True(t, w.relevant(cfg.Paths.Doit))

	require.False(t, w.relevant(cfg.Paths.HashStore))
	require.False(t, w.relevant(cfg.Paths.JournalArchive))
	require.False(t, w.relevant(filepath.Join(cfg.Paths.Dist, "index.html")))
	require.False(t, w.relevant(filepath.Join(dir, ".build-hash-123.tmp")))
	require.False(t, w.relevant(filepath.Join(dir, "random.txt")))

	// An empty scratch write is the build's own truncation.
	require.NoError(t, os.WriteFile(cfg.Paths.JournalScratch, nil, 0o644))
	require.False(t, w.relevant(cfg.Paths.JournalScratch))
	require.NoError(t, os.WriteFile(cfg.Paths.JournalScratch, []byte("note"), 0o644))
	require.True(t, w.relevant(cfg.Paths.JournalScratch))
}

func TestLiveReloadBroadcast(t *testing.T) {
	hub := NewLiveReloadHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast("build-42")

	buf := make([]byte, 1024)
	deadline := time.Now().Add(2 * time.Second)
	var got string
	for time.Now().Before(deadline) && !strings.Contains(got, "build-42") {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			got += string(buf[:n])
		}
		if err != nil {
			break
		}
	}
	require.Contains(t, got, `{"build":"build-42"}`)
}
