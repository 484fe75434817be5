package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Snapshot is the live state served at GET /state.
type Snapshot struct {
	Specimen       int    `json:"specimen"`
	SpecimenName   string `json:"specimen_name"`
	Tab            int    `json:"tab"`
	TraySteps      int    `json:"tray_steps"`
	RotationOffset int    `json:"rotation_offset"`
	ZoomSteps      int    `json:"zoom_steps"`
	FocusSteps     int    `json:"focus_steps"`
	Phase          string `json:"phase"`
	Initializing   bool   `json:"initializing"`
	Initialized    bool   `json:"initialized"`
	Autonomous     bool   `json:"autonomous"`
	ErrorState     bool   `json:"error_state"`
	PanelOpen      bool   `json:"panel_open"`
}

// SnapshotFunc assembles the current Snapshot.
type SnapshotFunc func() Snapshot

// Server exposes the exhibit status page: a live state JSON endpoint
// and an SSE event stream.
type Server struct {
	addr        string
	broadcaster *Broadcaster
	snapshot    SnapshotFunc
	staticFS    fs.FS
}

// NewServer creates a server configured for the given address and
// dependencies.
func NewServer(addr string, b *Broadcaster, snapshot SnapshotFunc) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}
	return &Server{
		addr:        addr,
		broadcaster: b,
		snapshot:    snapshot,
		staticFS:    subFS,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.staticFS))))
	mux.HandleFunc("GET /{$}", s.serveIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleState returns the live state snapshot as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.snapshot())
}

// serveIndex serves the status page (root path only).
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(s.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleEvents handles GET /events for SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := s.broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
