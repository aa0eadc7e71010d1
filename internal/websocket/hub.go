package websocket

import (
	"context"
	"log/slog"

	"sleep-better/internal/observability"
)

// Hub tracks the open chat sockets of every session so that a logout can
// close them.
type Hub struct {
	// Registered clients by session digest
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	disconnect chan string

	// Shutdown signal
	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		disconnect: make(chan string, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			observability.ChatConnectionsActive.Inc()
			slog.Debug("chat client registered",
				slog.String("user", client.username),
				slog.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sessionID := <-h.disconnect:
			clients := h.clients[sessionID]
			for client := range clients {
				h.unregisterClient(client)
			}
			if len(clients) > 0 {
				slog.Info("closed chat sockets of ended session",
					slog.String("session_id", sessionID),
					slog.Int("sockets", len(clients)))
			}
		}
	}
}

// unregisterClient safely removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.clients[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	client.closeSend()
	observability.ChatConnectionsActive.Dec()
	slog.Debug("chat client unregistered",
		slog.String("user", client.username),
		slog.String("session_id", client.sessionID))

	if len(clients) == 0 {
		delete(h.clients, client.sessionID)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for _, clients := range h.clients {
		for client := range clients {
			h.unregisterClient(client)
		}
	}

	slog.Info("hub shutdown complete")
}

// Register registers a client with the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// DisconnectSession closes every socket opened by sessionID.
func (h *Hub) DisconnectSession(sessionID string) {
	if sessionID == "" {
		return
	}
	select {
	case h.disconnect <- sessionID:
	case <-h.done:
	}
}
