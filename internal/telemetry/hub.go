package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub streams generation diagnostics to websocket subscribers. It plugs into
// the arena as a support module and is safe to broadcast to with no
// subscribers connected.
type Hub struct {
	addr   string
	logger *slog.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	listener net.Listener
	server   *http.Server
	started  bool
}

func NewHub(addr string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		addr:    addr,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) Name() string { return "telemetry-hub" }

func (h *Hub) Start(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	if h.addr == "" {
		return errors.New("telemetry listen address is required")
	}

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{Handler: mux}
	h.listener = listener
	h.started = true

	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("telemetry server", "err", err)
		}
	}()

	h.logger.Info("telemetry hub listening", "addr", listener.Addr().String())
	return nil
}

func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	server := h.server
	for c := range h.clients {
		_ = c.conn.Close()
	}
	h.clients = make(map[*client]struct{})
	h.server = nil
	h.listener = nil
	h.started = false
	h.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Addr reports the bound listen address, useful when the hub was started on
// port 0.
func (h *Hub) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Broadcast pushes one JSON message to every connected subscriber. Slow or
// broken subscribers are dropped.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	list := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.Unlock()

	for _, c := range list {
		if err := c.send(v); err != nil {
			h.logger.Warn("drop telemetry subscriber", "err", err)
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	// Reads are discarded; the socket is push-only. The read loop exists to
	// notice the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = conn.Close()
}
