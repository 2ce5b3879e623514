package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/middleware"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/repository"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/service"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestRouter(t *testing.T) (*gin.Engine, *EventHub, *fakeClock) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, logger.Initialize("error"))

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := service.NewLoyaltyService(repository.NewMemoryStore(), clock, service.Rules{
		TargetStamps: 5,
		ScanCooldown: 30 * time.Second,
	})

	hub := NewEventHub()
	adminAuth := middleware.NewAuthorization("test-admin-token")

	router := gin.New()
	a := router.Group("/api/v1")
	NewLoyaltyRoutes(a, svc, hub, adminAuth, "http://kiosk.local")
	NewEventRoutes(a, hub)

	return router, hub, clock
}

func doRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(nil))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetStatus(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/loyalty/alice/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, float64(0), body["stamps"])
	assert.Equal(t, float64(5), body["target"])
	assert.Equal(t, false, body["reward_available"])
	assert.Nil(t, body["last_scan_at"])
}

func TestGetStatus_InvalidUserID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/loyalty/bad@id/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/loyalty/"+strings.Repeat("a", 65)+"/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordScan_CooldownOutcome(t *testing.T) {
	router, _, clock := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["accepted"])

	clock.now = clock.now.Add(10 * time.Second)

	// A rejected scan is still a 200: cooldown is an outcome, not an error.
	w = doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["accepted"])
	assert.Equal(t, float64(20), body["wait_seconds"])

	status := body["status"].(map[string]any)
	assert.Equal(t, float64(1), status["stamps"])
}

func TestScanToRedeemFlow(t *testing.T) {
	router, _, clock := newTestRouter(t)

	var body map[string]any
	for i := 0; i < 5; i++ {
		w := doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/scan", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body = decodeBody(t, w)
		require.Equal(t, true, body["accepted"])
		clock.now = clock.now.Add(30 * time.Second)
	}
	assert.Equal(t, true, body["reward_just_unlocked"])

	w := doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/redeem", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["redeemed"])

	status := body["status"].(map[string]any)
	assert.Equal(t, float64(0), status["stamps"])
	assert.Equal(t, false, status["reward_available"])
}

func TestRedeem_NothingAvailable(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/redeem", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["redeemed"])
}

func TestAdminReset_Authorization(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodDelete, "/api/v1/admin/loyalty/alice/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/admin/loyalty/alice/reset",
		map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/admin/loyalty/alice/reset",
		map[string]string{"X-Admin-Token": "test-admin-token"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["stamps"])
	assert.Nil(t, body["last_scan_at"])
}

func TestAdminCardInfo(t *testing.T) {
	router, _, _ := newTestRouter(t)
	adminHeaders := map[string]string{"X-Admin-Token": "test-admin-token"}

	w := doRequest(router, http.MethodGet, "/api/v1/admin/loyalty/ghost/card", adminHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/admin/loyalty/alice/card", adminHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "alice", body["user_id"])
	assert.NotNil(t, body["created_at"])

	status := body["status"].(map[string]any)
	assert.Equal(t, float64(1), status["stamps"])
}

func TestCreateCard(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/cards", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	userID, ok := body["user_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, userID)

	// The minted card is immediately scannable.
	w = doRequest(router, http.MethodPost, "/api/v1/loyalty/"+userID+"/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["accepted"])
}

func TestQRCode(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/loyalty/alice/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	// Requesting the QR registers the card.
	w = doRequest(router, http.MethodGet, "/api/v1/loyalty/alice/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEventHub_PublishesScanEvents(t *testing.T) {
	router, hub, _ := newTestRouter(t)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/alice"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The subscriber is registered just after the handshake; wait for it.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs["alice"]) > 0
	}, 2*time.Second, 10*time.Millisecond)

	w := doRequest(router, http.MethodPost, "/api/v1/loyalty/alice/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, EventStampRecorded, ev.Type)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, 1, ev.Stamps)
}
