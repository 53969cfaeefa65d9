package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/pailer/pailer-core/server/poster"
)

const (
	eventClientBuffer = 64
	eventWriteWait    = 10 * time.Second
	eventPongWait     = 60 * time.Second
	eventPingPeriod   = (eventPongWait * 9) / 10
)

// EventHub fans poster events out to websocket clients. Slow clients are dropped rather than
// blocking the auto-updater.
type EventHub struct {
	logger   hclog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub creates an empty hub.
func NewEventHub(logger hclog.Logger) *EventHub {
	return &EventHub{
		logger: logger.Named("events"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Requests are authenticated by token before they reach the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*eventClient]struct{}),
	}
}

// Emit broadcasts an event to every connected client.
func (h *EventHub) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(poster.Event{Name: event, Payload: payload})
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping slow event client", "remoteAddr", client.conn.RemoteAddr().String())
			h.removeLocked(client)
		}
	}

	return nil
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams events until the client disconnects.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, eventClientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Event client connected", "remoteAddr", conn.RemoteAddr().String())

	go h.writePump(client)
	h.readPump(client)
}

// Close disconnects every client and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *EventHub) removeLocked(client *eventClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

// readPump discards client messages and detects disconnects.
func (h *EventHub) readPump(client *eventClient) {
	defer func() {
		h.remove(client)
		_ = client.conn.Close()
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(client *eventClient) {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
