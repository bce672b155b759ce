package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GriffinCanCode/dynamic-fps/internal/metrics"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator/transitions"
	"github.com/GriffinCanCode/dynamic-fps/internal/trace"
)

// StatusProvider returns the latest loop snapshot.
type StatusProvider interface {
	Status() orchestrator.Status
}

// Journal is the read side of the transition journal.
type Journal interface {
	Recent(n int) []transitions.Entry
	Since(t time.Time) []transitions.Entry
	Events() <-chan transitions.Event
}

// Message is the envelope shared by every WebSocket message.
type Message struct {
	Type string `json:"type"`
}

type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-RateLimitWindow)
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	status   StatusProvider
	journal  Journal
	gatherer prometheus.Gatherer

	mu      sync.RWMutex
	clients map[*client]struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a server and starts forwarding journal events to WebSocket
// clients. A nil gatherer disables /metrics.
func New(status StatusProvider, journal Journal, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		status:   status,
		journal:  journal,
		gatherer: gatherer,
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Close stops the broadcaster.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transitions", s.handleTransitions)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	// trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.Close()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.status.Status())
}

// handleTransitions serves the newest journal entries, oldest first.
// ?since=<RFC3339> keeps entries at or after that time; ?limit=n caps the count.
func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := DefaultTransitionLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(r.Context(), w, http.StatusBadRequest, ErrorMessage{Type: "error", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxTransitionLimit)
	}

	var entries []transitions.Entry
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, ErrorMessage{Type: "error", Message: "since must be an RFC 3339 timestamp"})
			return
		}
		entries = s.journal.Since(since)
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
	} else {
		entries = s.journal.Recent(limit)
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"transitions": entries,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		trace.Logger(ctx).Warn("encode response failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// The snapshot is queued before the client is registered so it always
	// precedes broadcast events.
	c := &client{send: make(chan any, ClientSendBuffer)}
	c.send <- StatusMessage{Type: "status", Status: s.status.Status()}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writeLoop(ctx, conn, c)
	}()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		close(c.send)
		s.mu.Unlock()
		<-written
		if n := c.dropped.Load(); n > 0 {
			log.Warn("websocket client fell behind", "remote", r.RemoteAddr, "dropped", n)
		}
	}()

	rl := &rateLimiter{}
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}

		if !rl.allow(time.Now()) {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.enqueue(ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		switch msg.Type {
		case "status":
			c.enqueue(StatusMessage{Type: "status", Status: s.status.Status()})
		default:
			c.enqueue(ErrorMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

// client is one WebSocket connection. Only its writeLoop writes to the
// connection, so messages arrive in the order they were queued.
type client struct {
	send    chan any
	dropped atomic.Uint64
}

// enqueue queues v without blocking; a client that cannot keep up loses
// messages instead of stalling the broadcaster.
func (c *client) enqueue(v any) {
	select {
	case c.send <- v:
	default:
		c.dropped.Add(1)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for v := range c.send {
		if err := s.write(ctx, conn, v); err != nil {
			// Later messages are dropped by enqueue once the queue fills.
			trace.Logger(ctx).Debug("websocket write error", "error", err)
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (s *Server) broadcastEvents() {
	events := s.journal.Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			s.mu.RLock()
			for c := range s.clients {
				c.enqueue(evt)
			}
			s.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
