package transport

import (
	"fmt"
	"time"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
)

// RISTTransport carries the rist:// scheme over the raw datagram stand-in.
// RIST-specific parameters (profile, psk, buffer sizing) ride along opaquely
// in the endpoint spec so configurations stay forward compatible once a
// native RIST binding replaces the stand-in.
//
// TODO: swap the embedded UDP stand-in for a libRIST binding so loss and
// jitter stop being proxies.
type RISTTransport struct {
	*UDPTransport
}

// NewRISTTransport builds an unopened RIST handle.
func NewRISTTransport(spec domain.EndpointSpec, dir ports.Direction, readTimeout time.Duration) *RISTTransport {
	return &RISTTransport{
		UDPTransport: NewUDPTransport(spec, dir, readTimeout),
	}
}

// Describe keeps the rist scheme visible in diagnostics even though the data
// path is the datagram stand-in.
func (t *RISTTransport) Describe() string {
	return fmt.Sprintf("[rist] %s %s %s", t.dir, t.spec.Role, t.spec.Redacted())
}
