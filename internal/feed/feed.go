// Package feed streams store state changes to websocket clients.
//
// On connect a client receives one "snapshot" frame per watched store,
// then a "state" frame after every transition. Clients may restrict the
// feed with ?stores=GetAccounts,GetBudgetSummary.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/fintrack/internal/state"
)

// Frame types.
const (
	FrameSnapshot = "snapshot"
	FrameState    = "state"
)

// Defaults.
const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultBuffer       = 64
)

// Frame is one message sent to a client. Seq increases by one per frame
// queued for the client; a gap means frames were dropped.
type Frame struct {
	Type   string       `json:"type"`
	Seq    uint64       `json:"seq"`
	Status state.Status `json:"status"`
}

// Source provides the stores to watch. *ledger.Registry implements it.
type Source interface {
	Handles() []state.Handle
}

// Server upgrades HTTP requests to websocket feeds.
type Server struct {
	source       Source
	logger       *slog.Logger
	writeTimeout time.Duration
	buffer       int
	upgrader     websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithBuffer sets how many frames may queue per client before new frames
// are dropped.
func WithBuffer(n int) Option {
	return func(s *Server) {
		s.buffer = n
	}
}

// WithCheckOrigin replaces the origin check. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// New creates a feed server over source.
func New(source Source, opts ...Option) *Server {
	s := &Server{
		source:       source,
		logger:       slog.Default(),
		writeTimeout: DefaultWriteTimeout,
		buffer:       DefaultBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type client struct {
	conn    *websocket.Conn
	frames  chan Frame
	done    chan struct{}
	dropped atomic.Uint64

	mu  sync.Mutex // orders seq assignment with enqueue
	seq uint64
}

// ServeHTTP handles the websocket upgrade and serves the connection until
// the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handles := selectHandles(s.source.Handles(), r.URL.Query().Get("stores"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		frames: make(chan Frame, s.buffer+len(handles)),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("feed client connected", "remote", r.RemoteAddr, "stores", len(handles))

	unwatch := make([]func(), 0, len(handles))
	for _, h := range handles {
		c.push(FrameSnapshot, h.Status())
	}
	for _, h := range handles {
		unwatch = append(unwatch, h.Watch(func(st state.Status) {
			if !c.push(FrameState, st) {
				s.logger.Debug("feed frame dropped", "store", st.Name)
			}
		}))
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(c)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("feed read failed", "error", err)
			}
			break
		}
	}

	for _, fn := range unwatch {
		fn()
	}
	close(c.done)
	<-writerDone
	conn.Close()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.logger.Info("feed client disconnected", "remote", r.RemoteAddr, "dropped", c.dropped.Load())
}

// push queues a frame without blocking. It reports false when the queue
// is full or the client is gone.
func (c *client) push(kind string, st state.Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return false
	default:
	}
	c.seq++
	f := Frame{Type: kind, Seq: c.seq, Status: st}
	select {
	case c.frames <- f:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.frames:
			data, err := json.Marshal(f)
			if err != nil {
				s.logger.Error("feed encode failed", "store", f.Status.Name, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("feed write failed", "error", err)
				c.conn.Close()
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

func selectHandles(all []state.Handle, filter string) []state.Handle {
	if filter == "" {
		return all
	}
	names := strings.Split(filter, ",")
	var picked []state.Handle
	for _, h := range all {
		if slices.Contains(names, h.Name()) {
			picked = append(picked, h)
		}
	}
	return picked
}
