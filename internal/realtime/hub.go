// Package realtime implements the WebSocket fanout (spec.md §4.6),
// generalized from the teacher's SSE Broker (internal/realtime/broker.go
// in the original snapshot): per-auction subscriber maps become
// per-dealership connection maps, and a JWT query-param replaces the
// teacher's cookie-based SSE auth.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/metrics"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connection is one accepted, authenticated WebSocket client, tagged
// with {userId, dealershipId} per spec.md §4.6.
type Connection struct {
	ws           *websocket.Conn
	userID       int64
	dealershipID int64
	send         chan []byte
}

// Hub fans Notifications out to every connection tagged with a given
// dealershipId. Delivery is best-effort: a connection whose send buffer
// is full is dropped rather than blocking the broadcaster.
type Hub struct {
	logger *slog.Logger
	jwt    *tenant.JWTIssuer

	mu    sync.RWMutex
	conns map[int64]map[*Connection]struct{}
}

func NewHub(jwt *tenant.JWTIssuer, logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		jwt:    jwt,
		conns:  make(map[int64]map[*Connection]struct{}),
	}
}

// Accept upgrades the request to a WebSocket connection after verifying
// the `token` query param. An invalid token is refused with HTTP 401
// before any upgrade; a valid token with no dealership scope is upgraded
// and then closed immediately with a policy-violation close code
// (spec.md §4.6).
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.jwt.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	if claims.DealershipID <= 0 {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "no dealership scope"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	conn := &Connection{ws: ws, userID: claims.UserID, dealershipID: claims.DealershipID, send: make(chan []byte, 64)}
	h.register(conn)
	metrics.RealtimeConnectionsActive.Inc()

	go h.writePump(conn)
	h.readPump(conn)
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conn.dealershipID] == nil {
		h.conns[conn.dealershipID] = make(map[*Connection]struct{})
	}
	h.conns[conn.dealershipID][conn] = struct{}{}
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conns[conn.dealershipID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, conn.dealershipID)
		}
	}
	close(conn.send)
	metrics.RealtimeConnectionsActive.Dec()
}

// readPump drains and discards client frames; its only job is noticing
// when the client goes away so the connection gets reaped.
func (h *Hub) readPump(conn *Connection) {
	defer func() {
		h.unregister(conn)
		_ = conn.ws.Close()
	}()
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes writes to the socket; broadcasts are never
// written directly from Broadcast's goroutine.
func (h *Hub) writePump(conn *Connection) {
	for msg := range conn.send {
		if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcast fans a Notification out to every connection scoped to
// dealershipID. Within one connection, messages arrive in the order
// Broadcast was called; no ordering is guaranteed across connections
// (spec.md §4.6).
func (h *Hub) Broadcast(dealershipID int64, n Notification) error {
	if err := Validate(dealershipID, n); err != nil {
		return err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := h.conns[dealershipID]
	targets := make([]*Connection, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.send <- data:
		default:
			// Buffer full — treat as a dead connection and reap it.
			go h.unregister(conn)
		}
	}

	metrics.RealtimeMessagesSent.WithLabelValues(string(n.Type)).Inc()
	metrics.RealtimeSubscribersPerDealership.Observe(float64(len(targets)))
	return nil
}

// NotifyScrapeComplete satisfies internal/inventory.Notifier.
func (h *Hub) NotifyScrapeComplete(dealershipID int64, run domain.ScrapeRun) {
	_ = h.Broadcast(dealershipID, Notification{
		Type:    NotificationInventorySync,
		Title:   "Inventory sync complete",
		Message: "Scrape run finished via " + run.Method,
		Data:    run,
	})
}

// NotifyPostStatus satisfies internal/posting.Notifier.
func (h *Hub) NotifyPostStatus(dealershipID int64, item domain.PostingQueueItem) {
	_ = h.Broadcast(dealershipID, Notification{
		Type:    NotificationPostStatus,
		Title:   "Posting update",
		Message: string(item.Status),
		Data:    item,
	})
}
