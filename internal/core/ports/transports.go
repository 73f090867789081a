// Package ports defines the interfaces between the relay core and its
// collaborators: concrete transports on one side, metrics sinks on the other.
package ports

import (
	"context"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
)

// Receiver is the receive capability of an endpoint.
//
// Recv honors a bounded wait: when no datagram arrives within the transport's
// configured read timeout it returns a TransportError of kind Timeout instead
// of blocking indefinitely.
type Receiver interface {
	Recv(ctx context.Context, buf []byte) (int, error)
}

// Sender is the send capability of an endpoint. A partial send is an error of
// kind ShortWrite; the pipe never silently drops a fragment.
type Sender interface {
	Send(ctx context.Context, buf []byte) (int, error)
}

// Lifecycle owns the open/close state of a transport handle. Handles are
// monotonic (Idle -> Open -> Closed); a fresh handle is constructed per
// reconnection attempt, never reopened.
type Lifecycle interface {
	Open(ctx context.Context) error
	Close() error
	// Describe returns a human-readable endpoint summary for diagnostics.
	// Secrets are redacted. Never parse the result.
	Describe() string
}

// Transport is a fully capable endpoint handle.
type Transport interface {
	Receiver
	Sender
	Lifecycle
}

// StatsProvider is an optional capability: transports backed by a protocol
// stack that decodes loss and round-trip timing expose it here. The pipe
// probes for it with a type assertion.
type StatsProvider interface {
	TransportStats() (TransportStats, bool)
}

// TransportStats carries protocol-level counters for the metrics registry.
type TransportStats struct {
	PacketsLost uint64
	RTTMillis   float64
}

// Direction says which side of the pipe a handle will serve. Listener
// transports need it at handshake time (an SRT listener accepts a publisher
// on the receive side and a subscriber on the send side).
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionSend
)

func (d Direction) String() string {
	if d == DirectionReceive {
		return "receive"
	}
	return "send"
}

// TransportFactory constructs a fresh transport handle for an endpoint spec.
// One handle per reconnection attempt.
type TransportFactory interface {
	New(spec domain.EndpointSpec, dir Direction) (Transport, error)
}
