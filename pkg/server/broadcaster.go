package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is the number of messages queued per client before new
	// ones are skipped for it.
	sendBuffer = 16
)

// client owns one connection. Only its writer goroutine writes data frames.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster pushes JSON messages to every connected websocket client.
type Broadcaster struct {
	clients  map[*client]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	// initial, when set, produces the message sent to a client on connect.
	initial func() any
}

func NewBroadcaster(logger zerolog.Logger, initial func() any) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
		initial:  initial,
	}
}

// Broadcast queues v for every client without waiting on any of them. A
// client whose queue is full misses this message.
func (b *Broadcaster) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal broadcast")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			b.logger.Debug().Msg("websocket client lagging, message skipped")
		}
	}
}

func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler upgrades the request and registers the client until it
// disconnects. Client messages are read and discarded.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
		if b.initial != nil {
			if msg, err := json.Marshal(b.initial()); err == nil {
				c.send <- msg
			}
		}
		b.mu.Lock()
		b.clients[c] = struct{}{}
		b.mu.Unlock()

		go b.writeLoop(c)
		go func() {
			defer b.remove(c)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Debug().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client dropped")
			// unblocks the reader, which unregisters the client
			c.conn.Close()
			return
		}
	}
}

// remove unregisters c and closes its connection once.
func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		b.remove(c)
	}
}
