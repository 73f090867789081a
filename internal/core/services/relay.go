package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
	"github.com/SilvusTV/Stream-relay/pkg/backoff"
)

// RelayService owns the relay sessions: it builds them from configuration,
// starts their supervisors and tears everything down on shutdown.
//
// Startup is an explicit two-phase contract: sessions are registered first
// (AddSession), supervisors only launch once Start is called — after the
// process is genuinely ready to serve.
type RelayService struct {
	factory  ports.TransportFactory
	metrics  ports.MetricsRecorder
	log      *zap.Logger
	policy   backoff.Policy
	pipeOpts []PipeOption

	mu          sync.Mutex
	sessions    []domain.Session
	supervisors map[string]*Supervisor
	cancel      context.CancelFunc
	started     bool
	wg          sync.WaitGroup
}

// NewRelayService creates the orchestrator.
func NewRelayService(factory ports.TransportFactory, metrics ports.MetricsRecorder, log *zap.Logger, policy backoff.Policy, pipeOpts ...PipeOption) *RelayService {
	return &RelayService{
		factory:     factory,
		metrics:     metrics,
		log:         log,
		policy:      policy,
		pipeOpts:    pipeOpts,
		supervisors: make(map[string]*Supervisor),
	}
}

// AddSession parses and registers a background relay session. The label must
// be unique; an empty label derives one from the input scheme and the session
// count ("srt0", "rist1", ...).
func (r *RelayService) AddSession(label, input, output string) (domain.Session, error) {
	in, err := domain.ParseEndpoint(input)
	if err != nil {
		return domain.Session{}, fmt.Errorf("input: %w", err)
	}
	out, err := domain.ParseEndpoint(output)
	if err != nil {
		return domain.Session{}, fmt.Errorf("output: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return domain.Session{}, fmt.Errorf("relay service already started")
	}
	if label == "" {
		label = fmt.Sprintf("%s%d", in.Scheme, len(r.sessions))
	}
	for _, s := range r.sessions {
		if s.Label == label {
			return domain.Session{}, fmt.Errorf("duplicate session label %q", label)
		}
	}

	session := domain.Session{
		ID:     uuid.NewString(),
		Label:  label,
		Input:  in.Clone(),
		Output: out.Clone(),
		Mode:   domain.ModeBackground,
	}
	r.sessions = append(r.sessions, session)
	return session, nil
}

// Start launches one supervisor task per registered session. Idempotent;
// sessions added after Start are rejected.
func (r *RelayService) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, session := range r.sessions {
		sup := NewSupervisor(session, r.factory, r.metrics, r.log, r.policy, r.pipeOpts...)
		r.supervisors[session.Label] = sup

		r.wg.Add(1)
		go func(sup *Supervisor, session domain.Session) {
			defer r.wg.Done()
			r.log.Info("relay session starting",
				zap.String("session", session.Label),
				zap.String("input", session.Input.Redacted()),
				zap.String("output", session.Output.Redacted()),
			)
			_ = sup.Run(runCtx)
		}(sup, session)
	}
}

// RunOnce executes a single session in the caller's goroutine until ctx is
// cancelled. Used by the explicit CLI invocation.
func (r *RelayService) RunOnce(ctx context.Context, label, input, output string) error {
	in, err := domain.ParseEndpoint(input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	out, err := domain.ParseEndpoint(output)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if label == "" {
		label = string(in.Scheme)
	}

	session := domain.Session{
		ID:     uuid.NewString(),
		Label:  label,
		Input:  in,
		Output: out,
		Mode:   domain.ModeRunOnce,
	}
	sup := NewSupervisor(session, r.factory, r.metrics, r.log, r.policy, r.pipeOpts...)
	return sup.Run(ctx)
}

// States reports the state machine position of every running supervisor.
func (r *RelayService) States() map[string]domain.SupervisorState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]domain.SupervisorState, len(r.supervisors))
	for label, sup := range r.supervisors {
		states[label] = sup.State()
	}
	return states
}

// Stop cancels every supervisor and waits for all session tasks to exit.
func (r *RelayService) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
