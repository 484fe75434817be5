package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Event is a single SSE message to status clients. Kind is "log",
// "specimen", "panel" or "alert".
type Event struct {
	Time     string `json:"t"`
	Kind     string `json:"kind"`
	Msg      string `json:"msg,omitempty"`
	Specimen int    `json:"specimen,omitempty"`
	Name     string `json:"name,omitempty"`
	Open     *bool  `json:"open,omitempty"`
}

// Broadcaster distributes events to multiple SSE clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a
// cleanup function. The caller must call the returned cleanup when done
// (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends an event to all subscribed clients. Slow clients may
// miss events (non-blocking, buffered).
func (b *Broadcaster) Publish(evt Event) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// PublishLog is a convenience for plain log lines.
func (b *Broadcaster) PublishLog(msg string) {
	b.Publish(Event{Kind: "log", Msg: msg})
}

// LogWriter wraps the broadcaster as io.Writer so debug output can be
// teed to SSE clients.
func LogWriter(b *Broadcaster) *logWriter {
	return &logWriter{b: b}
}

type logWriter struct {
	b *Broadcaster
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.PublishLog(msg)
	}
	return len(p), nil
}
