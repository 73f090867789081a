package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SilvusTV/Stream-relay/internal/core/services"
)

// StatsHandler is the thin read-only facade over the metrics registry. It
// renders; the core owns metric names and semantics.
type StatsHandler struct {
	registry *services.MetricsRegistry
	relays   *services.RelayService
}

// NewStatsHandler creates the facade handler.
func NewStatsHandler(registry *services.MetricsRegistry, relays *services.RelayService) *StatsHandler {
	return &StatsHandler{registry: registry, relays: relays}
}

// SetupRoutes registers the facade endpoints on the router.
func (h *StatsHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/stats", h.Stats)
	router.GET("/stats/:session", h.SessionStats)
}

// Health answers a minimal liveness probe.
func (h *StatsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports per-session supervisor states. A session stuck in
// backing_off keeps the process ready: relays recover on their own.
func (h *StatsHandler) Ready(c *gin.Context) {
	states := make(map[string]string)
	for label, state := range h.relays.States() {
		states[label] = state.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": states,
	})
}

// StatsData is the aggregate stats payload. Field names follow the SRT
// statistics convention consumed by downstream dashboards.
type StatsData struct {
	Bitrate       int64   `json:"bitrate"`
	BytesRcvDrop  int64   `json:"bytesRcvDrop"`
	BytesRcvLoss  int64   `json:"bytesRcvLoss"`
	MbpsBandwidth float64 `json:"mbpsBandwidth"`
	MbpsRecvRate  float64 `json:"mbpsRecvRate"`
	MsRcvBuf      int64   `json:"msRcvBuf"`
	PktRcvDrop    int64   `json:"pktRcvDrop"`
	PktRcvLoss    int64   `json:"pktRcvLoss"`
	Rtt           float64 `json:"rtt"`
	Uptime        int64   `json:"uptime"`
}

// StatsResponse wraps StatsData with a status marker.
type StatsResponse struct {
	Data   StatsData `json:"data"`
	Status string    `json:"status"`
}

// Stats renders the aggregate snapshot.
func (h *StatsHandler) Stats(c *gin.Context) {
	snap := h.registry.Snapshot()

	data := StatsData{
		Bitrate:      int64(snap["bitrate_kbps"]),
		MbpsRecvRate: snap["bitrate_kbps"] / 1000,
		PktRcvLoss:   int64(snap["packets_lost_total"]),
		Rtt:          snap["rtt_ms"],
		Uptime:       h.registry.UptimeSeconds(),
	}
	c.JSON(http.StatusOK, StatsResponse{Data: data, Status: "ok"})
}

// SessionStats renders one session's snapshot by label.
func (h *StatsHandler) SessionStats(c *gin.Context) {
	label := c.Param("session")
	stats, ok := h.registry.SessionSnapshot(label)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": stats})
}
