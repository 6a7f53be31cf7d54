// Package inspect serves a development-time HTTP inspector for a reactive
// graph: engine counters, registered sources with their current values, and
// a WebSocket stream of watch events.
//
// Routes:
//
//	GET /stats           engine counter snapshot (cell.ReadStats)
//	GET /sources         registered sources with id, rank and current value
//	GET /sources/{name}  a single registered source
//	GET /ws              WebSocket stream: one snapshot message, then one
//	                     event message per watcher notification
//
// The inspector is a development tool. Register sources and start the
// server before the graph's goroutine begins writing; watcher registration
// for WebSocket clients runs on the connection's goroutine and is not
// synchronized against graph activity.
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
)

// Config configures the inspector.
type Config struct {
	// Logger receives connection and error logs.
	// Default: slog.Default() with component=inspect.
	Logger *slog.Logger

	// CheckOrigin validates WebSocket upgrade origins.
	// Default: allow all (development tool).
	CheckOrigin func(*http.Request) bool

	// SendBuffer is the per-client event buffer; events beyond it are
	// dropped rather than blocking the writer. Default: 64.
	SendBuffer int
}

// Option configures the inspector.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithCheckOrigin sets the WebSocket origin check.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = check
	}
}

// WithSendBuffer sets the per-client event buffer size.
func WithSendBuffer(n int) Option {
	return func(c *Config) {
		c.SendBuffer = n
	}
}

// Server exposes a registered set of sources over HTTP.
type Server struct {
	mu      sync.Mutex
	sources map[string]cell.Watchable

	logger     *slog.Logger
	upgrader   websocket.Upgrader
	sendBuffer int
}

// New creates an inspector server with no registered sources.
func New(opts ...Option) *Server {
	config := Config{
		Logger:      slog.Default().With("component", "inspect"),
		CheckOrigin: func(*http.Request) bool { return true },
		SendBuffer:  64,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Server{
		sources: make(map[string]cell.Watchable),
		logger:  config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		sendBuffer: config.SendBuffer,
	}
}

// Register makes src visible to the inspector under name. Registering the
// same name again replaces the previous source.
func (s *Server) Register(name string, src cell.Watchable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
}

// Unregister removes a source. Connected clients keep receiving its events
// until they disconnect.
func (s *Server) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, name)
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name  string `json:"name"`
	ID    uint64 `json:"id"`
	Rank  int    `json:"rank"`
	Value any    `json:"value"`
}

// Event is a single watcher notification on the WebSocket stream.
type Event struct {
	Type   string    `json:"type"` // "snapshot" or "event"
	Source string    `json:"source,omitempty"`
	Old    any       `json:"old,omitempty"`
	New    any       `json:"new,omitempty"`
	Time   time.Time `json:"time,omitempty"`

	// Sources is set on the initial snapshot message.
	Sources []SourceInfo `json:"sources,omitempty"`
}

// Handler returns the inspector's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", s.handleStats)
	r.Get("/sources", s.handleSources)
	r.Get("/sources/{name}", s.handleSource)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves the inspector on addr. Blocks.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("inspector listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cell.ReadStats())
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	src, ok := s.sources[name]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown source: " + name})
		return
	}
	// PeekAny first: it realizes an unrealized expression, which sets the
	// rank this response reports.
	value := src.PeekAny()
	writeJSON(w, http.StatusOK, SourceInfo{
		Name:  name,
		ID:    src.ID(),
		Rank:  src.Rank(),
		Value: value,
	})
}

// snapshot lists the registered sources sorted by name.
func (s *Server) snapshot() []SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]SourceInfo, 0, len(s.sources))
	for name, src := range s.sources {
		// PeekAny first: realizing an expression sets its rank.
		value := src.PeekAny()
		infos = append(infos, SourceInfo{
			Name:  name,
			ID:    src.ID(),
			Rank:  src.Rank(),
			Value: value,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// client is one WebSocket subscriber. Its pointer doubles as the watcher
// key on every source it observes.
type client struct {
	conn *websocket.Conn
	send chan Event
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.logger.Info("inspector client connected", "remote", conn.RemoteAddr())

	c := &client{conn: conn, send: make(chan Event, s.sendBuffer)}

	s.mu.Lock()
	subscribed := make(map[string]cell.Watchable, len(s.sources))
	for name, src := range s.sources {
		subscribed[name] = src
	}
	s.mu.Unlock()

	for name, src := range subscribed {
		name := name
		src.WatchAny(c, func(key, _, old, new any) {
			ev := Event{Type: "event", Source: name, Old: old, New: new, Time: time.Now()}
			select {
			case c.send <- ev:
			default:
				// Slow client: drop rather than stall the writer.
			}
		})
	}

	// The snapshot is sent after subscribing, so a client that has read it
	// is guaranteed to see every later event.
	c.send <- Event{Type: "snapshot", Sources: s.snapshot()}

	go c.writePump(s.logger)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	for _, src := range subscribed {
		src.Unwatch(c)
	}
	close(c.send)
	s.logger.Info("inspector client disconnected", "remote", conn.RemoteAddr())
}

// writePump drains the client's event buffer onto the connection. Exits
// when the buffer is closed or a write fails.
func (c *client) writePump(logger *slog.Logger) {
	defer c.conn.Close()
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			logger.Error("websocket write failed", "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
