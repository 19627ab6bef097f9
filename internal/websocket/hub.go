// Package websocket serves browse sessions over WebSocket. Every connection
// owns one browse controller; hub broadcasts reach all sessions.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/animescout/animescout/internal/browse"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Message types.
const (
	TypeSessionReady = "session:ready"
	TypeBrowseView   = "browse:view"
	TypeBrowseError  = "browse:error"
	TypeHealthStatus = "health:status"
	TypeFilterSet    = "filter:set"
	TypeFilterReset  = "filter:reset"
	TypePageNext     = "page:next"
	TypePagePrevious = "page:previous"
	TypePageSet      = "page:set"
	TypeLookupInput  = "lookup:input"
	TypeLookupSelect = "lookup:select"
	TypeLookupClear  = "lookup:clear"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrHubStopped     = errors.New("websocket hub stopped")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// SessionFactory creates the controller behind a new session. The listener
// must be installed on the controller so views reach the connection.
type SessionFactory func(flow browse.Flow, listener func(browse.View)) *browse.Controller

// SessionObserver is notified when sessions open and close.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// incomingMessage wraps a message from a client.
type incomingMessage struct {
	client  *Client
	message []byte
}

// Hub manages WebSocket connections and broadcasts.
type Hub struct {
	factory  SessionFactory
	observer SessionObserver
	logger   zerolog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	incoming   chan incomingMessage
	done       chan struct{}
	mu         sync.RWMutex
}

// Client represents a WebSocket connection and its browse session.
type Client struct {
	id      string
	flow    browse.Flow
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *browse.Controller
}

// Message represents a WebSocket message.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FilterSetPayload is the payload for filter:set messages. Value may be a
// string, a number or an array of numbers (genre ids).
type FilterSetPayload struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// PageSetPayload is the payload for page:set messages.
type PageSetPayload struct {
	Page int `json:"page"`
}

// LookupInputPayload is the payload for lookup:input messages.
type LookupInputPayload struct {
	Text string `json:"text"`
}

// LookupSelectPayload is the payload for lookup:select messages.
type LookupSelectPayload struct {
	ID int `json:"id"`
}

// ErrorPayload is the payload for browse:error messages.
type ErrorPayload struct {
	Request    string `json:"request"`
	Error      string `json:"error"`
	Validation bool   `json:"validation"`
}

// SessionPayload is the payload for session:ready messages.
type SessionPayload struct {
	ID   string      `json:"id"`
	Flow browse.Flow `json:"flow"`
}

// NewHub creates a new WebSocket hub.
func NewHub(factory SessionFactory, observer SessionObserver, logger zerolog.Logger) *Hub {
	return &Hub{
		factory:    factory,
		observer:   observer,
		logger:     logger.With().Str("component", "websocket").Logger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan incomingMessage, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every remaining session. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.closeClient(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.observer != nil {
				h.observer.SessionOpened()
			}
			h.logger.Debug().Str("session", client.id).Str("flow", string(client.flow)).Msg("Session opened")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.closeClient(client)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.enqueue(message)
			}
			h.mu.RUnlock()

		case incoming := <-h.incoming:
			h.mu.RLock()
			_, ok := h.clients[incoming.client]
			h.mu.RUnlock()
			if ok {
				h.handleIncoming(incoming)
			}
		}
	}
}

// closeClient must be called with h.mu held. The session is closed before the
// send channel so no view is published to a closed channel.
func (h *Hub) closeClient(client *Client) {
	delete(h.clients, client)
	client.session.Close()
	close(client.send)
	if h.observer != nil {
		h.observer.SessionClosed()
	}
	h.logger.Debug().Str("session", client.id).Msg("Session closed")
}

// handleIncoming processes messages received from clients.
func (h *Hub) handleIncoming(incoming incomingMessage) {
	var msg inboundMessage
	if err := json.Unmarshal(incoming.message, &msg); err != nil {
		incoming.client.sendError("", err)
		return
	}

	if err := h.dispatch(incoming.client.session, msg); err != nil {
		h.logger.Debug().
			Err(err).
			Str("session", incoming.client.id).
			Str("type", msg.Type).
			Msg("Rejected session message")
		incoming.client.sendError(msg.Type, err)
	}
}

func (h *Hub) dispatch(session *browse.Controller, msg inboundMessage) error {
	switch msg.Type {
	case TypeFilterSet:
		var payload FilterSetPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		value, err := rawValue(payload.Value)
		if err != nil {
			return err
		}
		return session.SetFilter(payload.Field, value)

	case TypeFilterReset:
		return session.Reset()

	case TypePageNext:
		return session.Next()

	case TypePagePrevious:
		return session.Previous()

	case TypePageSet:
		var payload PageSetPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		return session.SetPage(payload.Page)

	case TypeLookupInput:
		var payload LookupInputPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		return session.SetSuggestionInput(payload.Text)

	case TypeLookupSelect:
		var payload LookupSelectPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return err
		}
		return session.SelectSuggestion(payload.ID)

	case TypeLookupClear:
		return session.ClearLookup()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// rawValue flattens a filter value into the textual form accepted by FilterState.Set.
func rawValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	var ids []int
	if err := json.Unmarshal(raw, &ids); err == nil {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, ","), nil
	}

	return "", fmt.Errorf("invalid payload: unsupported filter value %s", raw)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	data, err := encode(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and opens a browse session for the
// flow named by the "flow" query parameter.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	flow, err := browse.ParseFlow(c.QueryParam("flow"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:   uuid.NewString(),
		flow: flow,
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	client.session = h.factory(flow, client.publishView)

	client.sendMessage(TypeSessionReady, SessionPayload{ID: client.id, Flow: flow})
	select {
	case h.register <- client:
	case <-h.done:
		client.session.Close()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return nil
	}

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()

	client.session.Start()
	return nil
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return json.Marshal(msg)
}

// ID returns the session id.
func (c *Client) ID() string {
	return c.id
}

// publishView is the controller listener. It runs under the controller lock
// and never blocks.
func (c *Client) publishView(view browse.View) {
	c.sendMessage(TypeBrowseView, view)
}

func (c *Client) sendError(request string, err error) {
	c.sendMessage(TypeBrowseError, ErrorPayload{
		Request:    request,
		Error:      err.Error(),
		Validation: browse.IsValidation(err),
	})
}

func (c *Client) sendMessage(msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("type", msgType).Msg("Failed to encode message")
		return
	}
	c.enqueue(data)
}

// enqueue drops the message when the peer is not keeping up.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn().Str("session", c.id).Msg("Send buffer full, dropping message")
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("session", c.id).Msg("Unexpected close")
			}
			break
		}

		// Forward message to hub for processing
		select {
		case c.hub.incoming <- incomingMessage{client: c, message: message}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages as separate frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
