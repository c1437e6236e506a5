package realtime

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_BroadcastToDealership(t *testing.T) {
	issuer := tenant.NewJWTIssuer("test-secret", time.Hour)
	hub := NewHub(issuer, testLogger())

	server := httptest.NewServer(http.HandlerFunc(hub.Accept))
	defer server.Close()

	token, err := issuer.Issue(domain.User{ID: 1, DealershipID: ptrInt64(42)}, tenant.KindSession)
	require.NoError(t, err)

	conn := dial(t, server, token)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // allow Accept to register before broadcasting

	require.NoError(t, hub.Broadcast(42, Notification{
		Type:    NotificationNewLead,
		Title:   "New lead",
		Message: "a customer reached out",
	}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "new_lead")
}

func TestHub_BroadcastOnlyToTargetDealership(t *testing.T) {
	issuer := tenant.NewJWTIssuer("test-secret", time.Hour)
	hub := NewHub(issuer, testLogger())

	server := httptest.NewServer(http.HandlerFunc(hub.Accept))
	defer server.Close()

	token42, err := issuer.Issue(domain.User{ID: 1, DealershipID: ptrInt64(42)}, tenant.KindSession)
	require.NoError(t, err)
	token99, err := issuer.Issue(domain.User{ID: 2, DealershipID: ptrInt64(99)}, tenant.KindSession)
	require.NoError(t, err)

	conn42 := dial(t, server, token42)
	defer conn42.Close()
	conn99 := dial(t, server, token99)
	defer conn99.Close()

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Broadcast(42, Notification{Type: NotificationSystem, Title: "t", Message: "m"}))

	conn42.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn42.ReadMessage()
	require.NoError(t, err)

	conn99.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = conn99.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsInvalidToken(t *testing.T) {
	issuer := tenant.NewJWTIssuer("test-secret", time.Hour)
	hub := NewHub(issuer, testLogger())

	server := httptest.NewServer(http.HandlerFunc(hub.Accept))
	defer server.Close()

	_, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"?token=garbage", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(0, Notification{Type: NotificationSystem}))
	assert.Error(t, Validate(1, Notification{Type: "bogus"}))
	assert.NoError(t, Validate(1, Notification{Type: NotificationSystem}))
}

func ptrInt64(v int64) *int64 { return &v }
