package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector mirrors the metrics registry into Prometheus. The
// registry stays the source of truth for /stats; this collector only feeds
// the /metrics exposition.
type PrometheusCollector struct {
	peers            *prometheus.GaugeVec
	bitrateKbps      *prometheus.GaugeVec
	reconnectsTotal  *prometheus.CounterVec
	packetsLostTotal *prometheus.CounterVec
	jitterMs         *prometheus.GaugeVec
	rttMs            *prometheus.GaugeVec
	bytesTotal       *prometheus.CounterVec
	uptimeSeconds    prometheus.GaugeFunc
}

// NewPrometheusCollector registers the relay metric families on the default
// registry. Call once per process.
func NewPrometheusCollector(start time.Time) *PrometheusCollector {
	return &PrometheusCollector{
		peers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamrelay_peers",
			Help: "Connected peers per relay session",
		}, []string{"session"}),

		bitrateKbps: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamrelay_bitrate_kbps",
			Help: "Relayed bitrate per session, averaged over a sliding window",
		}, []string{"session"}),

		reconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrelay_reconnects_total",
			Help: "Reconnection attempts per session",
		}, []string{"session"}),

		packetsLostTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrelay_packets_lost_total",
			Help: "Packets reported lost by the transport, per session",
		}, []string{"session"}),

		jitterMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamrelay_jitter_ms",
			Help: "Smoothed inter-arrival jitter per session in milliseconds",
		}, []string{"session"}),

		rttMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamrelay_rtt_ms",
			Help: "Transport round-trip time per session in milliseconds",
		}, []string{"session"}),

		bytesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamrelay_bytes_total",
			Help: "Total bytes relayed per session",
		}, []string{"session"}),

		uptimeSeconds: promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "streamrelay_uptime_seconds",
			Help: "Process uptime in seconds",
		}, func() float64 {
			return time.Since(start).Seconds()
		}),
	}
}

func (p *PrometheusCollector) OnBytes(session string, n int) {
	p.bytesTotal.WithLabelValues(session).Add(float64(n))
}

func (p *PrometheusCollector) OnBitrate(session string, kbps float64) {
	p.bitrateKbps.WithLabelValues(session).Set(kbps)
}

func (p *PrometheusCollector) OnReconnect(session string) {
	p.reconnectsTotal.WithLabelValues(session).Inc()
}

func (p *PrometheusCollector) OnLoss(session string, n int) {
	p.packetsLostTotal.WithLabelValues(session).Add(float64(n))
}

func (p *PrometheusCollector) OnJitter(session string, ms float64) {
	p.jitterMs.WithLabelValues(session).Set(ms)
}

func (p *PrometheusCollector) OnRTT(session string, ms float64) {
	p.rttMs.WithLabelValues(session).Set(ms)
}

func (p *PrometheusCollector) OnPeers(session string, value int) {
	p.peers.WithLabelValues(session).Set(float64(value))
}
