package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	ws "github.com/smartinbox/backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandler(t *testing.T) {
	t.Setenv("SMARTINBOX_TEST_MODE", "true")

	hub := ws.NewHub(10)
	handler := NewWebSocketHandler(hub)

	server := httptest.NewServer(http.HandlerFunc(handler.Handle))
	defer server.Close()

	// Convert http:// to ws://
	wsURL := "ws" + server.URL[4:]

	t.Run("rejects missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("registers the connection and delivers events", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=user:user-1", nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		// Registration happens in the handler goroutine after the upgrade.
		require.Eventually(t, func() bool {
			return hub.ActiveConnections("user-1") == 1
		}, 2*time.Second, 10*time.Millisecond)

		hub.SendJSON("user-1", ws.Event{Type: ws.EventSyncCompleted, AccountID: "acct-1", NewEmails: 3})

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var event ws.Event
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, ws.EventSyncCompleted, event.Type)
		assert.Equal(t, "acct-1", event.AccountID)
		assert.Equal(t, 3, event.NewEmails)
	})

	t.Run("unregisters on disconnect", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=user:user-2", nil)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return hub.ActiveConnections("user-2") == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, conn.Close())

		require.Eventually(t, func() bool {
			return hub.ActiveConnections("user-2") == 0
		}, 2*time.Second, 10*time.Millisecond)
	})
}
