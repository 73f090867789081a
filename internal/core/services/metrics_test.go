package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SilvusTV/Stream-relay/internal/core/services"
)

func TestMetricsRegistry_Counters(t *testing.T) {
	r := services.NewMetricsRegistry(5*time.Second, nil)

	r.RecordBytes("srt0", 1316)
	r.RecordBytes("srt0", 1316)
	r.RecordPacket("srt0")
	r.RecordPacket("srt0")
	r.RecordTimeout("srt0")
	r.RecordReconnect("srt0")
	r.RecordLoss("srt0", 3)
	r.RecordJitter("srt0", 2.5)
	r.RecordRTT("srt0", 42.0)
	r.AddPeers("srt0", 1)

	stats, ok := r.SessionSnapshot("srt0")
	require.True(t, ok)
	assert.Equal(t, uint64(2632), stats.BytesTotal)
	assert.Equal(t, uint64(2), stats.PacketsIn)
	assert.Equal(t, uint64(1), stats.Timeouts)
	assert.Equal(t, uint64(1), stats.ReconnectsTotal)
	assert.Equal(t, uint64(3), stats.PacketsLostTotal)
	assert.Equal(t, 2.5, stats.JitterMs)
	assert.Equal(t, 42.0, stats.RTTMs)
	assert.Equal(t, int64(1), stats.Peers)
	assert.Greater(t, stats.BitrateKbps, 0.0)
}

func TestMetricsRegistry_NegativeAndZeroIgnored(t *testing.T) {
	r := services.NewMetricsRegistry(5*time.Second, nil)

	r.RecordBytes("srt0", 0)
	r.RecordBytes("srt0", -5)
	r.RecordLoss("srt0", 0)
	r.RecordLoss("srt0", -1)

	stats, ok := r.SessionSnapshot("srt0")
	require.True(t, ok)
	assert.Equal(t, uint64(0), stats.BytesTotal)
	assert.Equal(t, uint64(0), stats.PacketsLostTotal)
}

func TestMetricsRegistry_UnknownSession(t *testing.T) {
	r := services.NewMetricsRegistry(5*time.Second, nil)
	_, ok := r.SessionSnapshot("nope")
	assert.False(t, ok)
	assert.Empty(t, r.Sessions())
}

func TestMetricsRegistry_Snapshot(t *testing.T) {
	r := services.NewMetricsRegistry(5*time.Second, nil)

	r.RecordBytes("srt0", 1000)
	r.RecordPacket("srt0")
	r.RecordReconnect("srt0")
	r.RecordJitter("srt0", 1.0)
	r.RecordRTT("srt0", 18.0)
	r.RecordBytes("rist1", 2000)
	r.RecordPacket("rist1")
	r.RecordJitter("rist1", 4.0)
	r.RecordRTT("rist1", 7.0)
	r.AddPeers("srt0", 1)
	r.AddPeers("rist1", 1)

	snap := r.Snapshot()

	assert.Equal(t, float64(2), snap["peers"])
	assert.Equal(t, float64(1), snap["reconnects_total"])
	assert.Equal(t, float64(2), snap["packets_total"])
	assert.Equal(t, 4.0, snap["jitter_ms"], "aggregate jitter is the worst session")
	assert.Equal(t, 18.0, snap["rtt_ms"], "aggregate rtt is the worst session")
	assert.Greater(t, snap["bitrate_kbps"], 0.0)
	assert.GreaterOrEqual(t, snap["uptime_seconds"], 0.0)

	// Per-session entries use the label.metric convention.
	assert.Contains(t, snap, "srt0.bitrate_kbps")
	assert.Contains(t, snap, "rist1.jitter_ms")
	assert.Equal(t, 7.0, snap["rist1.rtt_ms"])
	assert.Equal(t, float64(1), snap["srt0.reconnects_total"])
	assert.Equal(t, float64(0), snap["rist1.reconnects_total"])
}

func TestMetricsRegistry_BitrateReflectsWindow(t *testing.T) {
	r := services.NewMetricsRegistry(2*time.Second, nil)

	// 2000 bytes over a 2 second window is 8 kbps.
	r.RecordBytes("srt0", 2000)

	stats, ok := r.SessionSnapshot("srt0")
	require.True(t, ok)
	assert.InDelta(t, 8.0, stats.BitrateKbps, 0.01)
}

func TestMetricsRegistry_ConcurrentWriters(t *testing.T) {
	r := services.NewMetricsRegistry(5*time.Second, nil)

	const writers = 8
	const iterations = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				r.RecordBytes("srt0", 100)
				r.RecordPacket("srt0")
				r.RecordTimeout("srt0")
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	stats, ok := r.SessionSnapshot("srt0")
	require.True(t, ok)
	assert.Equal(t, uint64(writers*iterations*100), stats.BytesTotal)
	assert.Equal(t, uint64(writers*iterations), stats.PacketsIn)
	assert.Equal(t, uint64(writers*iterations), stats.Timeouts)
}

func TestMetricsRegistry_Uptime(t *testing.T) {
	r := services.NewMetricsRegistry(time.Second, nil)
	assert.GreaterOrEqual(t, r.UptimeSeconds(), int64(0))
}
