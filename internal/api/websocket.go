package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
)

const (
	// wsWriteWait bounds how long one write may take before the
	// connection is considered dead.
	wsWriteWait = 10 * time.Second

	// wsPongWait is the read deadline; pings go out every wsPingPeriod
	// to keep it refreshed.
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second

	// wsMaxMessageBytes caps inbound message size. Streamed blocks are
	// single lines; anything larger is a protocol violation.
	wsMaxMessageBytes = 4096

	// wsSendBuffer is the per-client outbound queue. A client that
	// cannot drain it loses messages and, on broadcast, the connection.
	wsSendBuffer = 256
)

// Event is a server-push message broadcast to every connected client.
type Event struct {
	Type      string `json:"type"` // "job"
	JobID     string `json:"job_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// BlockRequest is one block submitted over a WebSocket connection.
type BlockRequest struct {
	ID      string `json:"id,omitempty"` // echoed back for correlation
	Block   string `json:"block"`
	Dialect string `json:"dialect,omitempty"`
	Strict  *bool  `json:"strict,omitempty"`
}

// BlockResponse answers one BlockRequest on the same connection.
type BlockResponse struct {
	Type   string       `json:"type"` // "block" or "error"
	ID     string       `json:"id,omitempty"`
	Result *rs274.Block `json:"result,omitempty"`
	Error  *APIError    `json:"error,omitempty"`
}

// Client represents a WebSocket client connection.
type Client struct {
	server *Server
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// Hub maintains active WebSocket connections and broadcasts events. The
// clients map is owned by the Run goroutine; everything else talks to it
// through the channels.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stop       sync.Once
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles client registration and broadcasting until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logging.WebSocketEvent("client_connected", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			logging.WebSocketEvent("client_disconnected", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client cannot drain its queue, disconnect.
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client. Idempotent.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

func (h *Hub) add(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("failed to marshal event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		logging.Warn("broadcast channel full, dropping event")
	}
}

// broadcastJob pushes one job state change to WebSocket subscribers.
func (s *Server) broadcastJob(id string, status JobStatus, progress int, message string) {
	s.hub.Broadcast(Event{
		Type:     "job",
		JobID:    id,
		Status:   string(status),
		Progress: progress,
		Message:  message,
	})
}

// readPump reads streamed block requests and answers each one.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			break
		}
		c.reply(c.service(data))
	}
}

// service normalizes one streamed block request. Each message stands
// alone: no modal state carries between messages, so submit full blocks.
func (c *Client) service(data []byte) BlockResponse {
	var req BlockRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return BlockResponse{Type: "error", Error: &APIError{Code: "INVALID_JSON", Message: "Invalid JSON message"}}
	}
	if req.Block == "" {
		return BlockResponse{Type: "error", ID: req.ID, Error: &APIError{Code: "MISSING_PARAMS", Message: "block is required"}}
	}

	n, err := c.server.normalizer(req.Dialect, req.Strict)
	if err != nil {
		return BlockResponse{Type: "error", ID: req.ID, Error: &APIError{Code: "UNKNOWN_DIALECT", Message: err.Error()}}
	}

	block, err := c.server.normalizeBlock(n, req.Block)
	if err != nil {
		return BlockResponse{Type: "error", ID: req.ID, Error: &APIError{
			Code:    normalizeErrorCode(err),
			Message: err.Error(),
			Details: errorDetails(err),
		}}
	}
	return BlockResponse{Type: "block", ID: req.ID, Result: block}
}

// reply queues a response on this connection only.
func (c *Client) reply(resp BlockResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error("failed to marshal block response", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		logging.Warn("client send buffer full, dropping response")
	}
}

// writePump writes queued messages to the WebSocket connection and keeps
// it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any additional queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and registers the client with
// the hub. Origins are checked against the configured allow list.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), s.cfg.AllowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{server: s, hub: s.hub, conn: conn, send: make(chan []byte, wsSendBuffer)}
	client.hub.add(client)

	go client.writePump()
	go client.readPump()
}

// originAllowed reports whether a WebSocket origin may connect. Clients
// without an Origin header (non-browsers) are always allowed; browsers
// must match the configured list, or anything when the list is empty.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if origin == candidate || candidate == "*" {
			return true
		}
	}
	return false
}
