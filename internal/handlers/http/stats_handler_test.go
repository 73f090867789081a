package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SilvusTV/Stream-relay/internal/core/services"
	"github.com/SilvusTV/Stream-relay/internal/infrastructure/transport"
	"github.com/SilvusTV/Stream-relay/pkg/backoff"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *services.MetricsRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := services.NewMetricsRegistry(5*time.Second, nil)
	relays := services.NewRelayService(
		transport.NewFactory(time.Second),
		registry,
		zap.NewNop(),
		backoff.DefaultPolicy(),
	)

	router := gin.New()
	NewStatsHandler(registry, relays).SetupRoutes(router)
	return router, registry
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doGet(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doGet(router, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string            `json:"status"`
		Sessions map[string]string `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
}

func TestStats_ShapeAndValues(t *testing.T) {
	router, registry := setupTestRouter(t)

	registry.RecordBytes("srt0", 125000)
	registry.RecordPacket("srt0")
	registry.RecordLoss("srt0", 7)
	registry.RecordRTT("srt0", 12.5)

	w := doGet(router, "/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Greater(t, resp.Data.Bitrate, int64(0))
	assert.Equal(t, int64(7), resp.Data.PktRcvLoss)
	assert.Equal(t, 12.5, resp.Data.Rtt)
	assert.GreaterOrEqual(t, resp.Data.Uptime, int64(0))

	// The wire shape is fixed; consumers key on these exact names.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Contains(t, raw, "data")

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["data"], &fields))
	for _, name := range []string{
		"bitrate", "bytesRcvDrop", "bytesRcvLoss", "mbpsBandwidth",
		"mbpsRecvRate", "msRcvBuf", "pktRcvDrop", "pktRcvLoss", "rtt", "uptime",
	} {
		assert.Contains(t, fields, name)
	}
}

func TestSessionStats_Known(t *testing.T) {
	router, registry := setupTestRouter(t)
	registry.RecordBytes("srt0", 1316)

	w := doGet(router, "/stats/srt0")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                `json:"status"`
		Data   services.SessionStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, uint64(1316), body.Data.BytesTotal)
}

func TestSessionStats_Unknown(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doGet(router, "/stats/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown session")
}
