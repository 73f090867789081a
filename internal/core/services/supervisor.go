package services

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
	"github.com/SilvusTV/Stream-relay/pkg/backoff"
)

// Supervisor wraps a pipe in the reconnection state machine:
// Connecting -> Running -> BackingOff -> Connecting -> ... -> Stopped.
// It turns a possibly-failing one-shot pipe into a long-lived relay task.
type Supervisor struct {
	session  domain.Session
	factory  ports.TransportFactory
	metrics  ports.MetricsRecorder
	log      *zap.Logger
	policy   backoff.Policy
	pipeOpts []PipeOption

	state atomic.Int32
	// Throttles the repeated backing-off log line so a stuck relay stays
	// visible without flooding the sink.
	stateLog *rate.Limiter
}

// NewSupervisor builds a supervisor for one relay session.
func NewSupervisor(session domain.Session, factory ports.TransportFactory, metrics ports.MetricsRecorder, log *zap.Logger, policy backoff.Policy, pipeOpts ...PipeOption) *Supervisor {
	return &Supervisor{
		session: session,
		factory: factory,
		metrics: metrics,
		log: log.With(
			zap.String("relay_id", session.ID),
			zap.String("session", session.Label),
		),
		policy:   policy,
		pipeOpts: pipeOpts,
		stateLog: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// State returns the current state machine position.
func (s *Supervisor) State() domain.SupervisorState {
	return domain.SupervisorState(s.state.Load())
}

func (s *Supervisor) setState(state domain.SupervisorState) {
	s.state.Store(int32(state))
}

// Run drives the session until cancellation. Fatal pipe errors are converted
// into backoff-and-reconnect decisions; they never propagate past here. The
// return is always nil after a clean transition to Stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	b := backoff.New(s.policy)

	for {
		s.setState(domain.StateConnecting)
		if ctx.Err() != nil {
			return s.stop()
		}

		rx, tx, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.stop()
			}
			s.log.Warn("relay connect failed",
				zap.String("input", s.session.Input.Redacted()),
				zap.String("output", s.session.Output.Redacted()),
				zap.Error(err),
			)
			if !s.backOff(ctx, b) {
				return s.stop()
			}
			continue
		}

		s.setState(domain.StateRunning)
		s.metrics.AddPeers(s.session.Label, 1)
		started := time.Now()

		pipe := NewPipe(s.session.Label, rx, tx, s.metrics, s.log, s.pipeOpts...)
		outcome, perr := pipe.Run(ctx)

		s.metrics.AddPeers(s.session.Label, -1)

		if outcome == domain.PipeCancelled {
			return s.stop()
		}

		// Sustained healthy running resets the backoff so a single blip
		// does not inherit the penalty of older failures.
		b.ObserveRun(time.Since(started))

		s.log.Warn("relay pipe failed",
			zap.String("input", s.session.Input.Redacted()),
			zap.String("output", s.session.Output.Redacted()),
			zap.Duration("runtime", time.Since(started)),
			zap.Error(perr),
		)
		if !s.backOff(ctx, b) {
			return s.stop()
		}
	}
}

// connect builds and opens fresh transport handles for both endpoints. No
// partially opened handle survives a failure.
func (s *Supervisor) connect(ctx context.Context) (rx, tx ports.Transport, err error) {
	rx, err = s.factory.New(s.session.Input, ports.DirectionReceive)
	if err != nil {
		return nil, nil, err
	}
	if err = rx.Open(ctx); err != nil {
		_ = rx.Close()
		return nil, nil, err
	}

	tx, err = s.factory.New(s.session.Output, ports.DirectionSend)
	if err != nil {
		_ = rx.Close()
		return nil, nil, err
	}
	if err = tx.Open(ctx); err != nil {
		_ = rx.Close()
		_ = tx.Close()
		return nil, nil, err
	}
	return rx, tx, nil
}

// backOff performs the BackingOff state: exactly one reconnect increment,
// then a cancellable wait. Returns false when cancelled during the wait.
func (s *Supervisor) backOff(ctx context.Context, b *backoff.Backoff) bool {
	s.setState(domain.StateBackingOff)
	s.metrics.RecordReconnect(s.session.Label)

	delay := b.Next()
	if s.stateLog.Allow() {
		s.log.Warn("relay backing off",
			zap.String("state", domain.StateBackingOff.String()),
			zap.String("input", s.session.Input.Redacted()),
			zap.String("output", s.session.Output.Redacted()),
			zap.Duration("delay", delay),
		)
	}
	return backoff.Sleep(ctx, delay) == nil
}

func (s *Supervisor) stop() error {
	s.setState(domain.StateStopped)
	s.log.Info("relay stopped")
	return nil
}
