// Package websocket implements the diagnostics tail-stream: a client
// subscribes to one loop ID and receives each diagnostics.Record for
// that loop passed to Hub.Publish. The Hub does not read the sideband
// log file itself.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/diagnostics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one subscriber to a single loop's diagnostics stream.
type Client struct {
	ID     string
	LoopID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// Hub fans out diagnostics.Records to every client subscribed to the
// record's loop ID.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan diagnostics.Record
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewHub builds an idle Hub; call Run to start its dispatch loop.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan diagnostics.Record, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Publish forwards a diagnostics record to every client subscribed to
// its loop ID. It is the only way records reach the Hub; neither the
// Collector nor the serve dashboard command calls it.
func (h *Hub) Publish(rec diagnostics.Record) {
	select {
	case h.broadcast <- rec:
	default:
		h.logger.Warn("diagnostics broadcast channel full, dropping record", zap.String("loop_id", rec.LoopID))
	}
}

// Run drives the Hub's register/unregister/broadcast loop until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("diagnostics client connected", zap.String("client_id", client.ID), zap.String("loop_id", client.LoopID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("diagnostics client disconnected", zap.String("client_id", client.ID))
		case rec := <-h.broadcast:
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.LoopID != rec.LoopID {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client.ID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount reports the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler upgrades HTTP requests to websocket connections.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler builds a Handler serving connections through hub.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// ServeWS upgrades the request and subscribes it to the loop ID given
// by the "loop_id" query parameter.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade diagnostics connection", zap.Error(err))
		return
	}

	loopID := r.URL.Query().Get("loop_id")
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = loopID + "_" + time.Now().Format("20060102150405")
	}

	client := &Client{
		ID:     clientID,
		LoopID: loopID,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h.hub,
		logger: h.logger,
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump only exists to detect disconnects and honor pings; the
// dashboard client never sends anything meaningful upstream.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("diagnostics websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
