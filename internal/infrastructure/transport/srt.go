package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	srt "github.com/datarhei/gosrt"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
	"github.com/SilvusTV/Stream-relay/internal/core/ports"
)

// SRTTransport binds one endpoint to the SRT protocol stack. Retransmission,
// encryption and congestion control live entirely inside the library; this
// handle only drives it through open/recv/send/close and translates its
// errors into the core taxonomy.
type SRTTransport struct {
	spec        domain.EndpointSpec
	dir         ports.Direction
	readTimeout time.Duration

	mu    sync.Mutex
	state handleState
	conn  srt.Conn
	ln    srt.Listener
}

// NewSRTTransport builds an unopened SRT handle.
func NewSRTTransport(spec domain.EndpointSpec, dir ports.Direction, readTimeout time.Duration) *SRTTransport {
	return &SRTTransport{
		spec:        spec,
		dir:         dir,
		readTimeout: readTimeout,
	}
}

// srtConfig maps the opaque endpoint parameters onto the library's options.
// Unknown parameters are ignored here and left for the operator to fix on the
// library side; the core never rejects them.
func (t *SRTTransport) srtConfig() srt.Config {
	config := srt.DefaultConfig()
	params := t.spec.Parameters

	if sid, ok := params["streamid"]; ok {
		config.StreamId = sid
	}
	if pass, ok := params["passphrase"]; ok {
		config.Passphrase = pass
	}
	if lat, ok := params["latency"]; ok {
		if ms, err := strconv.Atoi(lat); err == nil && ms > 0 {
			config.ReceiverLatency = time.Duration(ms) * time.Millisecond
			config.PeerLatency = time.Duration(ms) * time.Millisecond
		}
	}
	return config
}

// Open establishes the SRT session: callers dial out, listeners bind and
// accept exactly one peer. Cancelling ctx aborts a pending accept.
func (t *SRTTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateIdle {
		t.mu.Unlock()
		return domain.NewTransportError(domain.KindInvalidState, "open", fmt.Errorf("handle is %v", t.state))
	}
	t.mu.Unlock()

	config := t.srtConfig()

	if t.spec.Role == domain.RoleCaller {
		conn, err := srt.Dial("srt", t.spec.Address(), config)
		if err != nil {
			return classify("open", err)
		}
		t.mu.Lock()
		t.conn = conn
		t.state = stateOpen
		t.mu.Unlock()
		return nil
	}

	ln, err := srt.Listen("srt", t.spec.Address(), config)
	if err != nil {
		return classify("open", err)
	}

	// Accept blocks until a peer connects; watch ctx so a shutdown during
	// Connecting does not hang the supervisor.
	accepted := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-accepted:
		}
	}()

	want := srt.PUBLISH
	if t.dir == ports.DirectionSend {
		want = srt.SUBSCRIBE
	}
	conn, mode, err := ln.Accept(func(req srt.ConnRequest) srt.ConnType {
		return want
	})
	close(accepted)
	if err != nil {
		ln.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify("open", err)
	}
	if mode == srt.REJECT || conn == nil {
		ln.Close()
		return domain.NewTransportError(domain.KindProtocolViolation, "open", fmt.Errorf("connection rejected"))
	}

	t.mu.Lock()
	t.ln = ln
	t.conn = conn
	t.state = stateOpen
	t.mu.Unlock()
	return nil
}

// Recv reads one SRT message with a bounded wait.
func (t *SRTTransport) Recv(ctx context.Context, buf []byte) (int, error) {
	conn, err := t.openConn("recv")
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	n, rerr := conn.Read(buf)
	if rerr != nil {
		return 0, classify("recv", rerr)
	}
	return n, nil
}

// Send writes one SRT message; a partial write is fatal.
func (t *SRTTransport) Send(ctx context.Context, buf []byte) (int, error) {
	conn, err := t.openConn("send")
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, werr := conn.Write(buf)
	if werr != nil {
		return 0, classify("send", werr)
	}
	if n < len(buf) {
		return n, domain.NewTransportError(domain.KindShortWrite, "send", fmt.Errorf("wrote %d of %d bytes", n, len(buf)))
	}
	return n, nil
}

// Close releases the connection and listener. Idempotent.
func (t *SRTTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed {
		return nil
	}
	t.state = stateClosed

	if t.conn != nil {
		t.conn.Close()
	}
	if t.ln != nil {
		t.ln.Close()
	}
	return nil
}

// Describe returns a diagnostic summary with secrets redacted.
func (t *SRTTransport) Describe() string {
	return fmt.Sprintf("[srt] %s %s %s", t.dir, t.spec.Role, t.spec.Redacted())
}

// TransportStats exposes the protocol-level counters the library decodes:
// accumulated receive loss and the instantaneous round-trip time.
func (t *SRTTransport) TransportStats() (ports.TransportStats, bool) {
	t.mu.Lock()
	conn := t.conn
	open := t.state == stateOpen
	t.mu.Unlock()

	if !open || conn == nil {
		return ports.TransportStats{}, false
	}

	var stats srt.Statistics
	conn.Stats(&stats)
	return ports.TransportStats{
		PacketsLost: stats.Accumulated.PktRecvLoss,
		RTTMillis:   stats.Instantaneous.MsRTT,
	}, true
}

func (t *SRTTransport) openConn(op string) (srt.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateOpen || t.conn == nil {
		return nil, domain.NewTransportError(domain.KindInvalidState, op, nil)
	}
	return t.conn, nil
}
