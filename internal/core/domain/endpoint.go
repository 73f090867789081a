package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/SilvusTV/Stream-relay/pkg/uri"
)

// Scheme identifies a registered transport.
type Scheme string

const (
	SchemeSRT  Scheme = "srt"
	SchemeRIST Scheme = "rist"
	SchemeUDP  Scheme = "udp"
)

func (s Scheme) Valid() bool {
	switch s {
	case SchemeSRT, SchemeRIST, SchemeUDP:
		return true
	}
	return false
}

// Role says whether an endpoint binds locally and waits (Listener) or
// connects out to a remote address (Caller).
type Role int

const (
	RoleListener Role = iota
	RoleCaller
)

func (r Role) String() string {
	if r == RoleListener {
		return "listener"
	}
	return "caller"
}

// EndpointSpec is the immutable, validated form of a connection descriptor.
// It is created once at configuration time and cloned per relay task.
//
// Protocol-specific query parameters (latency, passphrase, streamid, ...) are
// preserved verbatim in Parameters and interpreted by the transport layer
// alone; the core only consumes "mode".
type EndpointSpec struct {
	Scheme     Scheme
	Host       string
	Port       int
	Role       Role
	Parameters map[string]string

	raw string
}

// ParseEndpoint parses and validates a connection URI.
//
// Role inference: a host-empty form (scheme://@:PORT) or an explicit
// mode=listener parameter yields Listener; otherwise Caller. An explicit
// mode=caller combined with an empty host is rejected as ambiguous.
func ParseEndpoint(raw string) (EndpointSpec, error) {
	fail := func(err error) (EndpointSpec, error) {
		return EndpointSpec{}, &ParseError{URI: uri.Redact(raw), Err: err}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUnsupportedScheme, err))
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	if !scheme.Valid() {
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme))
	}

	portStr := u.Port()
	if portStr == "" {
		return fail(ErrMissingPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fail(fmt.Errorf("%w: invalid port %q", ErrMissingPort, portStr))
	}

	params := make(map[string]string)
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}

	host := u.Hostname()
	hostEmpty := host == ""
	mode := strings.ToLower(params["mode"])

	var role Role
	switch {
	case mode == "caller" && hostEmpty:
		return fail(ErrAmbiguousRole)
	case mode == "listener" || hostEmpty:
		role = RoleListener
	case mode != "" && mode != "caller":
		return fail(fmt.Errorf("%w: unknown mode %q", ErrAmbiguousRole, mode))
	default:
		role = RoleCaller
	}

	if role == RoleCaller && hostEmpty {
		return fail(ErrMissingHost)
	}

	return EndpointSpec{
		Scheme:     scheme,
		Host:       host,
		Port:       port,
		Role:       role,
		Parameters: params,
		raw:        raw,
	}, nil
}

// Clone returns an independent copy; relay tasks never share parameter maps.
func (e EndpointSpec) Clone() EndpointSpec {
	c := e
	c.Parameters = make(map[string]string, len(e.Parameters))
	for k, v := range e.Parameters {
		c.Parameters[k] = v
	}
	return c
}

// Address returns the host:port pair the transport should bind or dial.
// Listeners with no host yield ":PORT" (bind all interfaces).
func (e EndpointSpec) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Redacted renders the original URI with secret parameters masked. This is
// the only form that may appear in logs.
func (e EndpointSpec) Redacted() string {
	if e.raw == "" {
		return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
	}
	return uri.Redact(e.raw)
}

func (e EndpointSpec) String() string {
	return e.Redacted()
}
