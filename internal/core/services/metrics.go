package services

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SilvusTV/Stream-relay/internal/core/ports"
)

const bitrateBucketSize = time.Second

// MetricsRegistry is the process-wide metrics model. It is the only mutable
// resource shared across relay sessions; every update is a single atomic
// operation and Snapshot never blocks writers.
//
// An optional ports.Collector mirrors updates into Prometheus.
type MetricsRegistry struct {
	start     time.Time
	window    time.Duration
	collector ports.Collector

	mu       sync.RWMutex
	sessions map[string]*sessionMetrics
}

type sessionMetrics struct {
	bytesTotal  atomic.Uint64
	packetsIn   atomic.Uint64
	timeouts    atomic.Uint64
	reconnects  atomic.Uint64
	packetsLost atomic.Uint64
	jitterBits  atomic.Uint64 // float64 bits
	rttBits     atomic.Uint64 // float64 bits
	peers       atomic.Int64

	// Sliding bitrate window: one bucket per second.
	bmu     sync.Mutex
	buckets []rateBucket
}

type rateBucket struct {
	second int64
	bytes  uint64
}

// NewMetricsRegistry creates a registry with the given bitrate averaging
// window. The collector may be nil.
func NewMetricsRegistry(window time.Duration, collector ports.Collector) *MetricsRegistry {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &MetricsRegistry{
		start:     time.Now(),
		window:    window,
		collector: collector,
		sessions:  make(map[string]*sessionMetrics),
	}
}

func (r *MetricsRegistry) session(label string) *sessionMetrics {
	r.mu.RLock()
	s, ok := r.sessions[label]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[label]; ok {
		return s
	}
	s = &sessionMetrics{buckets: make([]rateBucket, int(r.window/bitrateBucketSize)+1)}
	r.sessions[label] = s
	return s
}

// RecordBytes accounts n relayed bytes against the session's bitrate window.
// The session is materialized even when n contributes nothing.
func (r *MetricsRegistry) RecordBytes(session string, n int) {
	s := r.session(session)
	if n <= 0 {
		return
	}
	s.bytesTotal.Add(uint64(n))
	s.addToWindow(time.Now(), uint64(n))
	if r.collector != nil {
		r.collector.OnBytes(session, n)
		r.collector.OnBitrate(session, s.bitrateKbps(time.Now(), r.window))
	}
}

// RecordPacket counts one received datagram.
func (r *MetricsRegistry) RecordPacket(session string) {
	r.session(session).packetsIn.Add(1)
}

// RecordTimeout counts one absorbed receive timeout.
func (r *MetricsRegistry) RecordTimeout(session string) {
	r.session(session).timeouts.Add(1)
}

// RecordReconnect increments the session's monotonic reconnect counter.
func (r *MetricsRegistry) RecordReconnect(session string) {
	r.session(session).reconnects.Add(1)
	if r.collector != nil {
		r.collector.OnReconnect(session)
	}
}

// RecordLoss adds n to the session's lost-packet counter. Best-effort: a
// proxy until the transport layer decodes real protocol loss.
func (r *MetricsRegistry) RecordLoss(session string, n int) {
	s := r.session(session)
	if n <= 0 {
		return
	}
	s.packetsLost.Add(uint64(n))
	if r.collector != nil {
		r.collector.OnLoss(session, n)
	}
}

// RecordJitter updates the session's jitter gauge in milliseconds.
func (r *MetricsRegistry) RecordJitter(session string, ms float64) {
	r.session(session).jitterBits.Store(math.Float64bits(ms))
	if r.collector != nil {
		r.collector.OnJitter(session, ms)
	}
}

// RecordRTT updates the session's round-trip-time gauge in milliseconds.
// Populated only by transports whose protocol stack measures it.
func (r *MetricsRegistry) RecordRTT(session string, ms float64) {
	r.session(session).rttBits.Store(math.Float64bits(ms))
	if r.collector != nil {
		r.collector.OnRTT(session, ms)
	}
}

// AddPeers moves the session's connected-peers gauge by delta.
func (r *MetricsRegistry) AddPeers(session string, delta int) {
	v := r.session(session).peers.Add(int64(delta))
	if r.collector != nil {
		r.collector.OnPeers(session, int(v))
	}
}

// SessionStats is a point-in-time view of one session's metrics.
type SessionStats struct {
	BytesTotal       uint64  `json:"bytes_total"`
	PacketsIn        uint64  `json:"packets_in"`
	Timeouts         uint64  `json:"timeouts"`
	ReconnectsTotal  uint64  `json:"reconnects_total"`
	PacketsLostTotal uint64  `json:"packets_lost_total"`
	BitrateKbps      float64 `json:"bitrate_kbps"`
	JitterMs         float64 `json:"jitter_ms"`
	RTTMs            float64 `json:"rtt_ms"`
	Peers            int64   `json:"peers"`
}

// SessionSnapshot returns the stats for one session label.
func (r *MetricsRegistry) SessionSnapshot(label string) (SessionStats, bool) {
	r.mu.RLock()
	s, ok := r.sessions[label]
	r.mu.RUnlock()
	if !ok {
		return SessionStats{}, false
	}
	return s.stats(time.Now(), r.window), true
}

// Sessions returns the known session labels.
func (r *MetricsRegistry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.sessions))
	for l := range r.sessions {
		labels = append(labels, l)
	}
	return labels
}

// Snapshot returns the full metric map: aggregate values plus per-session
// entries. Each metric is independently consistent; the set as a whole is not
// atomic, which is fine for observability reads.
func (r *MetricsRegistry) Snapshot() map[string]float64 {
	now := time.Now()

	r.mu.RLock()
	sessions := make(map[string]*sessionMetrics, len(r.sessions))
	for l, s := range r.sessions {
		sessions[l] = s
	}
	r.mu.RUnlock()

	out := map[string]float64{
		"uptime_seconds": time.Since(r.start).Seconds(),
	}

	var peers int64
	var bitrate, jitterMax, rttMax float64
	var reconnects, lost, packets, timeouts uint64
	for label, s := range sessions {
		st := s.stats(now, r.window)
		peers += st.Peers
		bitrate += st.BitrateKbps
		reconnects += st.ReconnectsTotal
		lost += st.PacketsLostTotal
		packets += st.PacketsIn
		timeouts += st.Timeouts
		if st.JitterMs > jitterMax {
			jitterMax = st.JitterMs
		}
		if st.RTTMs > rttMax {
			rttMax = st.RTTMs
		}

		out[label+".bitrate_kbps"] = st.BitrateKbps
		out[label+".reconnects_total"] = float64(st.ReconnectsTotal)
		out[label+".packets_lost_total"] = float64(st.PacketsLostTotal)
		out[label+".jitter_ms"] = st.JitterMs
		out[label+".rtt_ms"] = st.RTTMs
		out[label+".peers"] = float64(st.Peers)
	}

	out["peers"] = float64(peers)
	out["bitrate_kbps"] = bitrate
	out["reconnects_total"] = float64(reconnects)
	out["packets_lost_total"] = float64(lost)
	out["packets_total"] = float64(packets)
	out["timeouts_total"] = float64(timeouts)
	out["jitter_ms"] = jitterMax
	out["rtt_ms"] = rttMax
	return out
}

// UptimeSeconds returns whole seconds since registry creation.
func (r *MetricsRegistry) UptimeSeconds() int64 {
	return int64(time.Since(r.start).Seconds())
}

func (s *sessionMetrics) addToWindow(now time.Time, n uint64) {
	sec := now.Unix()
	idx := int(sec % int64(len(s.buckets)))

	s.bmu.Lock()
	if s.buckets[idx].second != sec {
		s.buckets[idx] = rateBucket{second: sec}
	}
	s.buckets[idx].bytes += n
	s.bmu.Unlock()
}

func (s *sessionMetrics) bitrateKbps(now time.Time, window time.Duration) float64 {
	cutoff := now.Unix() - int64(window/time.Second)
	var total uint64

	s.bmu.Lock()
	for _, b := range s.buckets {
		if b.second > cutoff {
			total += b.bytes
		}
	}
	s.bmu.Unlock()

	return float64(total) * 8 / window.Seconds() / 1000
}

func (s *sessionMetrics) stats(now time.Time, window time.Duration) SessionStats {
	return SessionStats{
		BytesTotal:       s.bytesTotal.Load(),
		PacketsIn:        s.packetsIn.Load(),
		Timeouts:         s.timeouts.Load(),
		ReconnectsTotal:  s.reconnects.Load(),
		PacketsLostTotal: s.packetsLost.Load(),
		BitrateKbps:      s.bitrateKbps(now, window),
		JitterMs:         math.Float64frombits(s.jitterBits.Load()),
		RTTMs:            math.Float64frombits(s.rttBits.Load()),
		Peers:            s.peers.Load(),
	}
}
