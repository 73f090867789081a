package transport

import (
	"fmt"
	"time"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
)

// Factory selects the concrete transport for an endpoint's scheme. One fresh
// handle per call; the supervisor never reuses a handle across reconnects.
type Factory struct {
	readTimeout time.Duration
}

// NewFactory creates a factory whose handles time out reads after
// readTimeout.
func NewFactory(readTimeout time.Duration) *Factory {
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	return &Factory{readTimeout: readTimeout}
}

// New implements ports.TransportFactory.
func (f *Factory) New(spec domain.EndpointSpec, dir ports.Direction) (ports.Transport, error) {
	switch spec.Scheme {
	case domain.SchemeSRT:
		return NewSRTTransport(spec, dir, f.readTimeout), nil
	case domain.SchemeRIST:
		return NewRISTTransport(spec, dir, f.readTimeout), nil
	case domain.SchemeUDP:
		return NewUDPTransport(spec, dir, f.readTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedScheme, spec.Scheme)
	}
}
