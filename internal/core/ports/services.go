package ports

// MetricsRecorder is the write side of the metrics registry. Every method is
// safe for concurrent use from any number of sessions; each update is
// independently atomic, no cross-metric transaction is implied.
type MetricsRecorder interface {
	RecordBytes(session string, n int)
	RecordPacket(session string)
	RecordTimeout(session string)
	RecordReconnect(session string)
	RecordLoss(session string, n int)
	RecordJitter(session string, ms float64)
	RecordRTT(session string, ms float64)
	AddPeers(session string, delta int)
}

// Collector mirrors registry updates into an external metrics system
// (Prometheus). The registry forwards to it best-effort; a nil collector is
// valid.
type Collector interface {
	OnBytes(session string, n int)
	OnBitrate(session string, kbps float64)
	OnReconnect(session string)
	OnLoss(session string, n int)
	OnJitter(session string, ms float64)
	OnRTT(session string, ms float64)
	OnPeers(session string, value int)
}
