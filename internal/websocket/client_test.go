package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleep-better/internal/backend"
	"sleep-better/internal/domain"
	"sleep-better/internal/service"
	"sleep-better/internal/testutil"
)

// startRelay serves one chat client per connection against a running hub
// and returns the websocket URL.
func startRelay(t *testing.T, hub *Hub, session Session, chat *testutil.MockBackend) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(context.Background(), hub, conn, session, service.NewChatService(chat))
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func testSession() Session {
	return Session{
		ID:        service.TokenDigest("tok-bob"),
		Token:     "tok-bob",
		Username:  "bob",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestClient_GreetsOnConnect(t *testing.T) {
	conn := dial(t, startRelay(t, runHub(t), testSession(), testutil.NewMockBackend()))

	msg := readServerMessage(t, conn)

	assert.Equal(t, TypeBotReply, msg.Type)
	assert.Equal(t, domain.ChatGreeting, msg.Content)
	assert.Equal(t, domain.ChatOptions, msg.Options)
}

func TestClient_RelaysMessages(t *testing.T) {
	chat := testutil.NewMockBackend()
	conn := dial(t, startRelay(t, runHub(t), testSession(), chat))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "How long should I sleep?"}))
	msg := readServerMessage(t, conn)

	assert.Equal(t, TypeBotReply, msg.Type)
	assert.Equal(t, "echo: How long should I sleep?", msg.Content)
	assert.Equal(t, []string{"tok-bob"}, chat.SeenTokens())
}

func TestClient_OptionCommands(t *testing.T) {
	chat := testutil.NewMockBackend()
	conn := dial(t, startRelay(t, runHub(t), testSession(), chat))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "/option=3"}))
	msg := readServerMessage(t, conn)
	assert.Equal(t, "echo: "+domain.ChatOptions[2], msg.Content)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "/options"}))
	msg = readServerMessage(t, conn)
	assert.Equal(t, domain.ChatOptions, msg.Options)
	assert.Len(t, chat.SeenTokens(), 1, "/options must not reach the backend")
}

func TestClient_RejectsBadInput(t *testing.T) {
	conn := dial(t, startRelay(t, runHub(t), testSession(), testutil.NewMockBackend()))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readServerMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "   "}))
	msg = readServerMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)

	// still open
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "hi"}))
	msg = readServerMessage(t, conn)
	assert.Equal(t, "echo: hi", msg.Content)
}

func TestClient_BackendFailureKeepsSocketOpen(t *testing.T) {
	chat := testutil.NewMockBackend()
	calls := 0
	chat.ChatFunc = func(ctx context.Context, token, username, message string) (string, error) {
		calls++
		if calls == 1 {
			return "", backend.ErrUnavailable
		}
		return "ok", nil
	}
	conn := dial(t, startRelay(t, runHub(t), testSession(), chat))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "hi"}))
	assert.Equal(t, TypeError, readServerMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "hi"}))
	assert.Equal(t, "ok", readServerMessage(t, conn).Content)
}

func TestClient_ClosesOnRejectedToken(t *testing.T) {
	chat := testutil.NewMockBackend()
	chat.ChatFunc = func(ctx context.Context, token, username, message string) (string, error) {
		return "", backend.ErrUnauthorized
	}
	conn := dial(t, startRelay(t, runHub(t), testSession(), chat))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "hi"}))
	msg := readServerMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestClient_ExpiredSessionIsNotRelayed(t *testing.T) {
	session := testSession()
	session.ExpiresAt = time.Now().Add(-time.Second)
	chat := testutil.NewMockBackend()

	conn := dial(t, startRelay(t, runHub(t), session, chat))
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeMessage, Content: "hi"}))
	msg := readServerMessage(t, conn)

	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, msg.Message, "expired")
	assert.Empty(t, chat.SeenTokens(), "an expired token must not be sent")

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
