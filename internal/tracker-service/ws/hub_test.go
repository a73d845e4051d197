package ws

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func subscribe(t *testing.T, hub *Hub, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Channel: channel}))
	// a inscrição é processada pelo loop de leitura do servidor
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs[channel]) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastToSubscriber(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, hub, conn, "board")

	hub.Broadcast(BoardUpdate{Channel: "board", Payload: map[string]string{"k": "v"}})

	var got BoardUpdate
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "board", got.Channel)
}

func TestHubBroadcastIgnoresOtherChannels(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, hub, conn, "board")

	hub.Broadcast(BoardUpdate{Channel: "other", Payload: 1})
	hub.Broadcast(BoardUpdate{Channel: "board", Payload: 2})

	var got BoardUpdate
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "board", got.Channel)
}

func TestHubConcurrentPingAndBroadcast(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, hub, conn, "board")

	// broadcasts disparados de outra goroutine enquanto o loop de leitura
	// responde pings na mesma conexão; o mutex por conexão serializa as
	// escritas
	const broadcasts, pings = 50, 20
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcasts; i++ {
			hub.Broadcast(BoardUpdate{Channel: "board", Payload: i})
		}
	}()
	for i := 0; i < pings; i++ {
		require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	}

	gotPongs, gotBoards := 0, 0
	for gotPongs+gotBoards < broadcasts+pings {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		if bytes.Contains(raw, []byte(`"pong"`)) {
			gotPongs++
		} else {
			gotBoards++
		}
	}
	assert.Equal(t, pings, gotPongs)
	assert.Equal(t, broadcasts, gotBoards)
	<-done
}
