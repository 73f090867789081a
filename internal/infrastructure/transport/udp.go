// Package transport holds the concrete endpoint implementations behind the
// core's transport capability interfaces: a real SRT binding and a raw UDP
// datagram stand-in that also backs the rist:// scheme until a native RIST
// library is wired in.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
)

type handleState int32

const (
	stateIdle handleState = iota
	stateOpen
	stateClosed
)

func (s handleState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpen:
		return "open"
	default:
		return "closed"
	}
}

// UDPTransport is a plain datagram endpoint. Listeners bind and learn their
// peer from the first inbound datagram; callers dial out. Handles are
// monotonic: Idle -> Open -> Closed, never reopened.
type UDPTransport struct {
	spec        domain.EndpointSpec
	dir         ports.Direction
	scheme      domain.Scheme
	readTimeout time.Duration

	mu    sync.Mutex
	state handleState
	conn  net.PacketConn // listener side
	dconn net.Conn       // caller side
	peer  net.Addr       // learned from the first inbound datagram
}

// NewUDPTransport builds an unopened UDP handle.
func NewUDPTransport(spec domain.EndpointSpec, dir ports.Direction, readTimeout time.Duration) *UDPTransport {
	return &UDPTransport{
		spec:        spec,
		dir:         dir,
		scheme:      spec.Scheme,
		readTimeout: readTimeout,
	}
}

// Open binds (listener) or dials (caller) the datagram socket.
func (t *UDPTransport) Open(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateIdle {
		return domain.NewTransportError(domain.KindInvalidState, "open", fmt.Errorf("handle is %v", t.state))
	}

	switch t.spec.Role {
	case domain.RoleListener:
		conn, err := net.ListenPacket("udp", t.spec.Address())
		if err != nil {
			return classify("open", err)
		}
		t.conn = conn
	default:
		conn, err := net.Dial("udp", t.spec.Address())
		if err != nil {
			return classify("open", err)
		}
		t.dconn = conn
	}

	t.state = stateOpen
	return nil
}

// Recv reads one datagram with a bounded wait. An idle source yields a
// transient Timeout, never an indefinite block.
func (t *UDPTransport) Recv(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	if t.state != stateOpen {
		t.mu.Unlock()
		return 0, domain.NewTransportError(domain.KindInvalidState, "recv", nil)
	}
	conn, dconn := t.conn, t.dconn
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(t.readTimeout)
	if conn != nil {
		_ = conn.SetReadDeadline(deadline)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, classify("recv", err)
		}
		t.mu.Lock()
		t.peer = addr
		t.mu.Unlock()
		return n, nil
	}

	_ = dconn.SetReadDeadline(deadline)
	n, err := dconn.Read(buf)
	if err != nil {
		return 0, classify("recv", err)
	}
	return n, nil
}

// Send writes one datagram. A partial write is a fatal ShortWrite; nothing is
// dropped silently.
func (t *UDPTransport) Send(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	if t.state != stateOpen {
		t.mu.Unlock()
		return 0, domain.NewTransportError(domain.KindInvalidState, "send", nil)
	}
	conn, dconn, peer := t.conn, t.dconn, t.peer
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	var err error
	switch {
	case dconn != nil:
		n, err = dconn.Write(buf)
	case peer != nil:
		n, err = conn.WriteTo(buf, peer)
	default:
		// A listener cannot send before a peer has shown up.
		return 0, domain.NewTransportError(domain.KindWouldBlock, "send", errors.New("no peer yet"))
	}
	if err != nil {
		return 0, classify("send", err)
	}
	if n < len(buf) {
		return n, domain.NewTransportError(domain.KindShortWrite, "send", fmt.Errorf("wrote %d of %d bytes", n, len(buf)))
	}
	return n, nil
}

// Close releases the socket. Idempotent; the handle cannot be reopened.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed {
		return nil
	}
	t.state = stateClosed

	if t.conn != nil {
		return t.conn.Close()
	}
	if t.dconn != nil {
		return t.dconn.Close()
	}
	return nil
}

// Describe returns a diagnostic summary. Secrets are redacted; never parse
// the result.
func (t *UDPTransport) Describe() string {
	return fmt.Sprintf("[%s] %s %s %s", t.scheme, t.dir, t.spec.Role, t.spec.Redacted())
}

// classify maps socket errors onto the transport error taxonomy. The
// transient/fatal split must match what the pipe and supervisor expect.
func classify(op string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.NewTransportError(domain.KindTimeout, op, err)
	}
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return domain.NewTransportError(domain.KindWouldBlock, op, err)
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) {
		return domain.NewTransportError(domain.KindInvalidState, op, err)
	}
	return domain.NewTransportError(domain.KindConnectionReset, op, err)
}
