package daemon

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// Server serves the built site with clean URLs, the livereload endpoints,
// and optionally Prometheus metrics.
type Server struct {
	cfg *config.Config
	hub *LiveReloadHub
	reg *prom.Registry
}

// NewServer creates the preview server. reg may be nil to disable /metrics.
func NewServer(cfg *config.Config, hub *LiveReloadHub, reg *prom.Registry) *Server {
	return &Server{cfg: cfg, hub: hub, reg: reg}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(liveReloadScript))
	})
	if s.reg != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.reg))
	}
	mux.HandleFunc("/", s.serveSite)
	return mux
}

// serveSite resolves clean URLs against the output tree: "/" maps to
// index.html, "/about" to about.html, "/post/x" to post/x.html. Exact file
// paths are served as-is. HTML pages get the livereload script injected.
func (s *Server) serveSite(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if rel == "" || rel == "." {
		rel = "index.html"
	}

	for _, candidate := range []string{rel, rel + ".html"} {
		full := filepath.Join(s.cfg.Paths.Dist, candidate)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		if strings.HasSuffix(full, ".html") {
			s.serveHTML(w, r, full)
		} else {
			http.ServeFile(w, r, full)
		}
		return
	}
	http.NotFound(w, r)
}

func (s *Server) serveHTML(w http.ResponseWriter, _ *http.Request, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	html := string(data)
	if strings.Contains(html, "</body>") {
		html = strings.Replace(html,
			"</body>", `<script async src="/livereload.js"></script></body>`, 1)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}
