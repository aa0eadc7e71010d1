package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"sleep-better/internal/service"
	ws "sleep-better/internal/websocket"
)

// ChatHandler upgrades signed-in visitors to the chatbot socket
type ChatHandler struct {
	hub       *ws.Hub
	responder ws.Responder
	upgrader  websocket.Upgrader
}

// NewChatHandler creates a new chat handler. Cross-origin upgrades are
// accepted only from allowedOrigins; same-host upgrades always are.
func NewChatHandler(hub *ws.Hub, responder ws.Responder, allowedOrigins []string) *ChatHandler {
	return &ChatHandler{
		hub:       hub,
		responder: responder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *ChatHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	session := ws.Session{
		ID:        service.TokenDigest(token),
		Token:     token,
		Username:  user.Username,
		ExpiresAt: user.ExpiresAt,
	}
	client := ws.NewClient(context.WithoutCancel(r.Context()), h.hub, conn, session, h.responder)

	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
