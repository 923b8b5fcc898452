package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"inpaint_backend/logging"
)

// Event types pushed to websocket clients.
const (
	EventStroke          = "stroke"
	EventReset           = "reset"
	EventInpaintStarted  = "inpaint_started"
	EventInpaintComplete = "inpaint_complete"
	EventInpaintFailed   = "inpaint_failed"
)

// Event is one session change. Data is the JSON body the matching API
// call returned.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}

// BroadcasterConfig tunes the websocket broadcaster.
type BroadcasterConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	BufferSize     int
}

// DefaultBroadcasterConfig returns the default configuration
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512,
		BufferSize:     64,
	}
}

type client struct {
	remoteAddr string
	send       chan []byte
}

// Broadcaster fans session events out to websocket clients so every open
// page sees strokes and results from the others.
type Broadcaster struct {
	cfg      BroadcasterConfig
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	events     chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
}

// NewBroadcaster returns a broadcaster. Call Start before serving clients.
func NewBroadcaster(cfg BroadcasterConfig, logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := DefaultBroadcasterConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = d.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = d.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = d.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = d.MaxMessageSize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	return &Broadcaster{
		cfg:    cfg,
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*websocket.Conn]*client),
		events:     make(chan Event, cfg.BufferSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Start runs the broadcast loop until ctx is done, then closes every client.
func (b *Broadcaster) Start(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case conn := <-b.register:
			b.add(conn)
		case conn := <-b.unregister:
			b.remove(conn)
		case ev := <-b.events:
			b.fanOut(ev)
		}
	}
}

// Publish queues ev without blocking. Events are dropped when the queue is
// full.
func (b *Broadcaster) Publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.Warn("Event queue full, dropping event", zap.String("type", ev.Type))
	}
}

// HandleConnection upgrades the request and registers the client.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("Websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(b.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return
	}
	go b.readPump(conn)
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) add(conn *websocket.Conn) {
	c := &client{remoteAddr: conn.RemoteAddr().String(), send: make(chan []byte, b.cfg.BufferSize)}
	b.mu.Lock()
	b.clients[conn] = c
	count := len(b.clients)
	b.mu.Unlock()

	go b.writePump(conn, c)
	b.logger.Debug("Client connected", zap.String("remote", c.remoteAddr), zap.Int("clients", count))
}

// remove must only run on the broadcast loop.
func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	c, ok := b.clients[conn]
	if ok {
		delete(b.clients, conn)
		close(c.send)
	}
	count := len(b.clients)
	b.mu.Unlock()

	if ok {
		conn.Close()
		b.logger.Debug("Client disconnected", zap.String("remote", c.remoteAddr), zap.Int("clients", count))
	}
}

func (b *Broadcaster) fanOut(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	var slow []*websocket.Conn
	b.mu.RLock()
	for conn, c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	b.mu.RUnlock()

	for _, conn := range slow {
		b.logger.Warn("Client too slow, disconnecting", zap.String("remote", conn.RemoteAddr().String()))
		b.remove(conn)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, c := range b.clients {
		close(c.send)
		conn.Close()
		delete(b.clients, conn)
	}
}

// readPump discards client messages and keeps the read deadline moving.
func (b *Broadcaster) readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("Unexpected websocket close", zap.Error(err))
			}
			break
		}
	}
	select {
	case b.unregister <- conn:
	case <-b.done:
	}
}

// writePump is the only writer on conn.
func (b *Broadcaster) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
