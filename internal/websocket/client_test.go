package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_StreamsEventsInOrder(t *testing.T) {
	upgrader := NewUpgrader(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		client := NewClient(context.Background(), conn, "user-1", DefaultClientConfig())
		require.NoError(t, client.SendEvent(GENERATION_STARTED, map[string]int{"total": 2}))
		require.NoError(t, client.SendEvent(QUESTION_GENERATED, map[string]int{"attempt": 1}))
		require.NoError(t, client.SendEvent(GENERATION_COMPLETED, map[string]string{"draftId": "d1"}))
		client.Close()

		assert.ErrorIs(t, client.SendEvent(QUESTION_FAILED, nil), ErrClientClosed)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "ожидается нормальное закрытие: %v", err)
			break
		}
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		types = append(types, event.Type)
	}

	assert.Equal(t, []string{GENERATION_STARTED, QUESTION_GENERATED, GENERATION_COMPLETED}, types)
}

func TestClient_ContextCanceledOnDisconnect(t *testing.T) {
	upgrader := NewUpgrader(nil)
	canceled := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		client := NewClient(context.Background(), conn, "", DefaultClientConfig())
		select {
		case <-client.Context().Done():
			close(canceled)
		case <-time.After(3 * time.Second):
		}
		client.Close()
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	select {
	case <-canceled:
	case <-time.After(3 * time.Second):
		t.Fatal("контекст клиента не отменен после отключения")
	}
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	upgrader := NewUpgrader([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, upgrader.CheckOrigin(req), "Запрос без Origin разрешен")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))

	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(req))
}
