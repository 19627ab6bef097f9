package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animescout/animescout/internal/browse"
	"github.com/animescout/animescout/internal/jikan/mock"
)

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type countingObserver struct {
	opened, closed chan struct{}
}

func (o *countingObserver) SessionOpened() { o.opened <- struct{}{} }
func (o *countingObserver) SessionClosed() { o.closed <- struct{}{} }

func newTestHub(t *testing.T, observer SessionObserver) (*Hub, *httptest.Server) {
	t.Helper()
	hub, server, _ := newStoppableHub(t, observer)
	return hub, server
}

// newStoppableHub also returns the function that stops the hub's run loop.
func newStoppableHub(t *testing.T, observer SessionObserver) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	catalog := mock.NewClient()
	factory := func(flow browse.Flow, listener func(browse.View)) *browse.Controller {
		return browse.NewController(browse.Options{
			Flow:        flow,
			Client:      catalog,
			FilterDelay: 5 * time.Millisecond,
			TextDelay:   5 * time.Millisecond,
			Logger:      zerolog.Nop(),
			Listener:    listener,
		})
	}

	hub := NewHub(factory, observer, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server, flow string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?flow=" + flow
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "payload": payload}))
}

// readUntil reads messages until match accepts one, failing after a deadline.
func readUntil(t *testing.T, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg received
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("no matching message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readView(t *testing.T, conn *websocket.Conn, match func(browse.View) bool) browse.View {
	t.Helper()
	var view browse.View
	readUntil(t, conn, func(msg received) bool {
		if msg.Type != TypeBrowseView {
			return false
		}
		var v browse.View
		if err := json.Unmarshal(msg.Payload, &v); err != nil {
			return false
		}
		if match(v) {
			view = v
			return true
		}
		return false
	})
	return view
}

func settled(v browse.View) bool {
	return !v.Loading && !v.Settling && len(v.Items) > 0
}

func TestHub_SessionLifecycle(t *testing.T) {
	observer := &countingObserver{opened: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	hub, server := newTestHub(t, observer)
	conn := dial(t, server, "general")

	ready := readUntil(t, conn, func(m received) bool { return m.Type == TypeSessionReady })
	var session SessionPayload
	require.NoError(t, json.Unmarshal(ready.Payload, &session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, browse.FlowGeneral, session.Flow)

	view := readView(t, conn, settled)
	assert.Len(t, view.Items, browse.PageSize)
	assert.True(t, view.HasNextPage)
	assert.Equal(t, 5114, view.Items[1].ID)

	<-observer.opened
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	select {
	case <-observer.closed:
	case <-time.After(3 * time.Second):
		t.Fatal("session was not closed")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_FilterMessages(t *testing.T) {
	_, server := newTestHub(t, nil)
	conn := dial(t, server, "general")
	readView(t, conn, settled)

	send(t, conn, TypeFilterSet, map[string]interface{}{"field": "type", "value": "movie"})
	view := readView(t, conn, func(v browse.View) bool { return v.Filters.Type == "movie" && settled(v) })
	assert.Equal(t, 32281, view.Items[0].ID)
	assert.False(t, view.HasNextPage)
	assert.True(t, view.Filtered)

	send(t, conn, TypeFilterSet, map[string]interface{}{"field": "genres", "value": []int{37, 22}})
	view = readView(t, conn, func(v browse.View) bool { return len(v.Filters.Genres) == 2 && settled(v) })
	assert.Equal(t, []int{22, 37}, view.Filters.Genres)
	assert.Equal(t, 32281, view.Items[0].ID)

	send(t, conn, TypeFilterReset, nil)
	view = readView(t, conn, func(v browse.View) bool { return !v.Filtered && settled(v) })
	assert.Len(t, view.Items, browse.PageSize)
}

func TestHub_Pagination(t *testing.T) {
	_, server := newTestHub(t, nil)
	conn := dial(t, server, "general")
	readView(t, conn, settled)

	send(t, conn, TypePageNext, nil)
	view := readView(t, conn, func(v browse.View) bool { return v.Page == 2 && settled(v) })
	assert.False(t, view.HasNextPage)

	send(t, conn, TypePageNext, nil)
	send(t, conn, TypePageSet, map[string]int{"page": 1})
	view = readView(t, conn, func(v browse.View) bool { return v.Page == 1 && settled(v) })
	assert.True(t, view.HasNextPage)
}

func TestHub_Errors(t *testing.T) {
	_, server := newTestHub(t, nil)
	conn := dial(t, server, "general")
	readView(t, conn, settled)

	send(t, conn, TypeFilterSet, map[string]interface{}{"field": "minScore", "value": 11})
	msg := readUntil(t, conn, func(m received) bool { return m.Type == TypeBrowseError })
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.True(t, payload.Validation)
	assert.Equal(t, TypeFilterSet, payload.Request)

	send(t, conn, "devmode:set", map[string]bool{"enabled": true})
	msg = readUntil(t, conn, func(m received) bool { return m.Type == TypeBrowseError })
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.False(t, payload.Validation)
	assert.Contains(t, payload.Error, "unknown message type")
}

func TestHub_QuickLookup(t *testing.T) {
	_, server := newTestHub(t, nil)
	conn := dial(t, server, "general")
	readView(t, conn, settled)

	send(t, conn, TypeLookupInput, map[string]string{"text": "frieren"})
	view := readView(t, conn, func(v browse.View) bool { return len(v.Suggestions) > 0 })
	assert.Equal(t, 52991, view.Suggestions[0].ID)

	send(t, conn, TypeLookupSelect, map[string]int{"id": 52991})
	view = readView(t, conn, func(v browse.View) bool { return v.Lookup != nil })
	require.Len(t, view.Items, 1)
	assert.Equal(t, 52991, view.Items[0].ID)
	assert.True(t, view.FiltersDisabled)
	assert.False(t, view.HasNextPage)

	send(t, conn, TypeLookupClear, nil)
	view = readView(t, conn, func(v browse.View) bool { return v.Lookup == nil && settled(v) })
	assert.Len(t, view.Items, browse.PageSize)
}

func TestHub_Broadcast(t *testing.T) {
	hub, server := newTestHub(t, nil)
	conn := dial(t, server, "top")
	readUntil(t, conn, func(m received) bool { return m.Type == TypeSessionReady })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Broadcast(TypeHealthStatus, map[string]bool{"healthy": true}))

	msg := readUntil(t, conn, func(m received) bool { return m.Type == TypeHealthStatus })
	assert.JSONEq(t, `{"healthy": true}`, string(msg.Payload))
}

func TestHub_InvalidFlow(t *testing.T) {
	_, server := newTestHub(t, nil)

	resp, err := http.Get(server.URL + "/ws?flow=weekly")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRawValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"tv"`, "tv"},
		{`7.5`, "7.5"},
		{`2024`, "2024"},
		{`[1, 4]`, "1,4"},
		{`null`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		got, err := rawValue(json.RawMessage(tt.raw))
		if err != nil || got != tt.want {
			t.Errorf("rawValue(%s) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}

	if _, err := rawValue(json.RawMessage(`{"a": 1}`)); err == nil {
		t.Error("expected error for object value")
	}
}

func TestHub_Stop(t *testing.T) {
	hub, server, stop := newStoppableHub(t, nil)
	conn := dial(t, server, "general")
	readUntil(t, conn, func(m received) bool { return m.Type == TypeSessionReady })
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 3*time.Second, 10*time.Millisecond)

	stop()

	// The open session is closed by the server.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg received
		if err := conn.ReadJSON(&msg); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("session was not closed after stop")
			}
			break
		}
	}
	assert.Equal(t, 0, hub.ClientCount())

	require.Eventually(t, func() bool {
		return errors.Is(hub.Broadcast(TypeHealthStatus, nil), ErrHubStopped)
	}, 3*time.Second, 10*time.Millisecond)

	// New connections are turned away instead of blocking on registration.
	late := dial(t, server, "top")
	require.NoError(t, late.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
