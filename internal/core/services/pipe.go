package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
	"github.com/SilvusTV/Stream-relay/pkg/backoff"
)

const (
	defaultBufferSize = 64 * 1024
	defaultIdleWait   = 5 * time.Millisecond
	statsPollInterval = time.Second
)

// Pipe moves datagrams from one open receive endpoint to one open send
// endpoint until a fatal transport error or cancellation. recv and send are
// strictly sequential: at most one in-flight pair at a time, no reordering.
// Windowing and retransmission belong to the underlying transport, not here.
type Pipe struct {
	session  string
	rx       ports.Transport
	tx       ports.Transport
	metrics  ports.MetricsRecorder
	log      *zap.Logger
	bufSize  int
	idleWait time.Duration
	lossSeen uint64
}

// PipeOption tweaks pipe construction.
type PipeOption func(*Pipe)

// WithBufferSize overrides the reusable buffer capacity.
func WithBufferSize(n int) PipeOption {
	return func(p *Pipe) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithIdleWait overrides the sleep after an absorbed receive timeout.
func WithIdleWait(d time.Duration) PipeOption {
	return func(p *Pipe) {
		if d > 0 {
			p.idleWait = d
		}
	}
}

// NewPipe builds a pipe over two open transport handles. The pipe takes
// ownership: both handles are closed when Run returns, on every exit path.
func NewPipe(session string, rx, tx ports.Transport, metrics ports.MetricsRecorder, log *zap.Logger, opts ...PipeOption) *Pipe {
	p := &Pipe{
		session:  session,
		rx:       rx,
		tx:       tx,
		metrics:  metrics,
		log:      log.With(zap.String("relay_id", session)),
		bufSize:  defaultBufferSize,
		idleWait: defaultIdleWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the move loop. Transient receive errors (timeout, would-block)
// are absorbed with a short idle wait; any fatal transport error terminates
// the pipe with PipeFailed and the causing error. Cancellation yields
// PipeCancelled and a nil error.
func (p *Pipe) Run(ctx context.Context) (domain.PipeOutcome, error) {
	defer p.closeBoth()

	p.log.Info("pipe start",
		zap.String("input", p.rx.Describe()),
		zap.String("output", p.tx.Describe()),
	)

	// One reusable buffer for the whole pipe lifetime, no per-iteration
	// allocation.
	buf := make([]byte, p.bufSize)

	var lastArrival time.Time
	var jitterMs float64
	lastStatsPoll := time.Now()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("pipe cancelled")
			return domain.PipeCancelled, nil
		default:
		}

		n, err := p.rx.Recv(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("pipe cancelled")
				return domain.PipeCancelled, nil
			}
			if domain.IsTransient(err) {
				p.metrics.RecordTimeout(p.session)
				if serr := backoff.Sleep(ctx, p.idleWait); serr != nil {
					p.log.Info("pipe cancelled")
					return domain.PipeCancelled, nil
				}
				continue
			}
			p.log.Error("pipe recv failed", zap.Error(err))
			return domain.PipeFailed, err
		}
		if n == 0 {
			continue
		}

		now := time.Now()
		if !lastArrival.IsZero() {
			// RFC 3550 style smoothed inter-arrival jitter, in milliseconds.
			d := now.Sub(lastArrival).Seconds() * 1000
			jitterMs += (abs(d) - jitterMs) / 16
			p.metrics.RecordJitter(p.session, jitterMs)
		}
		lastArrival = now

		sent, err := p.tx.Send(ctx, buf[:n])
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("pipe cancelled")
				return domain.PipeCancelled, nil
			}
			if domain.IsTransient(err) {
				// Sink not ready (a listener without a learned peer, a
				// would-block socket). Datagram semantics permit dropping
				// the payload; the next recv supplies fresh data.
				p.metrics.RecordTimeout(p.session)
				if serr := backoff.Sleep(ctx, p.idleWait); serr != nil {
					p.log.Info("pipe cancelled")
					return domain.PipeCancelled, nil
				}
				continue
			}
			p.log.Error("pipe send failed", zap.Error(err))
			return domain.PipeFailed, err
		}

		p.metrics.RecordPacket(p.session)
		p.metrics.RecordBytes(p.session, sent)

		if now.Sub(lastStatsPoll) >= statsPollInterval {
			lastStatsPoll = now
			p.pollTransportStats()
		}
	}
}

// pollTransportStats pulls protocol-level counters from transports that
// expose them (SRT does, the UDP stand-in does not).
func (p *Pipe) pollTransportStats() {
	sp, ok := p.rx.(ports.StatsProvider)
	if !ok {
		return
	}
	stats, ok := sp.TransportStats()
	if !ok {
		return
	}
	if stats.PacketsLost > 0 {
		// The registry counter is monotonic; the provider reports the
		// accumulated total, so record the delta only.
		p.recordLossTotal(stats.PacketsLost)
	}
	if stats.RTTMillis > 0 {
		p.metrics.RecordRTT(p.session, stats.RTTMillis)
	}
}

// lossSeen tracks the last accumulated loss total reported by the transport.
func (p *Pipe) recordLossTotal(total uint64) {
	if total > p.lossSeen {
		p.metrics.RecordLoss(p.session, int(total-p.lossSeen))
		p.lossSeen = total
	}
}

func (p *Pipe) closeBoth() {
	if err := p.rx.Close(); err != nil {
		p.log.Warn("closing input failed", zap.Error(err))
	}
	if err := p.tx.Close(); err != nil {
		p.log.Warn("closing output failed", zap.Error(err))
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
