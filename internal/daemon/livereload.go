package daemon

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// LiveReloadHub manages SSE clients for build-change broadcasts.
type LiveReloadHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]chan string
	last    string
}

func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]chan string{}}
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan string, 8)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.clients[id] = ch
	current := h.last
	h.mu.Unlock()
	defer h.removeClient(id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if current != "" {
		if _, err := bw.WriteString("data: {\"build\":\"" + current + "\"}\n\n"); err != nil {
			return
		}
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				return
			}
			bw.Flush()
			flusher.Flush()
		case build := <-ch:
			if _, err := bw.WriteString("data: {\"build\":\"" + build + "\"}\n\n"); err != nil {
				return
			}
			bw.Flush()
			flusher.Flush()
		}
	}
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Broadcast notifies all clients of a finished build. Clients whose channel
// is full are dropped.
func (h *LiveReloadHub) Broadcast(buildID string) {
	if buildID == "" {
		return
	}
	h.mu.Lock()
	h.last = buildID
	snapshot := make(map[int]chan string, len(h.clients))
	for id, ch := range h.clients {
		snapshot[id] = ch
	}
	h.mu.Unlock()

	for id, ch := range snapshot {
		select {
		case ch <- buildID:
		default:
			h.removeClient(id)
		}
	}
	slog.Debug("Livereload broadcast", "build_id", buildID, "clients", len(snapshot))
}

// ClientCount reports connected SSE clients.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// liveReloadScript is served at /livereload.js and reloads the page when a
// new build is announced.
const liveReloadScript = `(() => {
  if (window.__BLOGBUILDER_LR__) return;
  window.__BLOGBUILDER_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let first = true, current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (first) { current = p.build; first = false; return; }
        if (p.build && p.build !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
