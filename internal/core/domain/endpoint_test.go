package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SilvusTV/Stream-relay/internal/core/domain"
)

func TestParseEndpoint_RoleInference(t *testing.T) {
	cases := []struct {
		uri  string
		role domain.Role
	}{
		{"srt://@:9000", domain.RoleListener},
		{"srt://@:9000?mode=listener", domain.RoleListener},
		{"srt://:9000", domain.RoleListener},
		{"srt://host:9000?mode=listener", domain.RoleListener},
		{"srt://host:9000", domain.RoleCaller},
		{"srt://host:9000?mode=caller", domain.RoleCaller},
		{"rist://@:10000?mode=listener", domain.RoleListener},
		{"rist://10.0.0.2:10000?mode=caller", domain.RoleCaller},
		{"udp://127.0.0.1:5000", domain.RoleCaller},
	}

	for _, tc := range cases {
		t.Run(tc.uri, func(t *testing.T) {
			spec, err := domain.ParseEndpoint(tc.uri)
			require.NoError(t, err)
			assert.Equal(t, tc.role, spec.Role)
		})
	}
}

func TestParseEndpoint_Errors(t *testing.T) {
	cases := []struct {
		uri     string
		wantErr error
	}{
		{"http://host:9000", domain.ErrUnsupportedScheme},
		{"ftp://host:9000", domain.ErrUnsupportedScheme},
		{"srt://host", domain.ErrMissingPort},
		{"srt://host:0", domain.ErrMissingPort},
		{"srt://@:9000?mode=caller", domain.ErrAmbiguousRole},
		{"srt://host:9000?mode=bogus", domain.ErrAmbiguousRole},
	}

	for _, tc := range cases {
		t.Run(tc.uri, func(t *testing.T) {
			_, err := domain.ParseEndpoint(tc.uri)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr, "expected a specific parse error variant")

			var perr *domain.ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseEndpoint_FieldsAndParameters(t *testing.T) {
	spec, err := domain.ParseEndpoint("srt://10.0.0.1:9000?mode=caller&latency=120&passphrase=sesame&streamid=cam1")
	require.NoError(t, err)

	assert.Equal(t, domain.SchemeSRT, spec.Scheme)
	assert.Equal(t, "10.0.0.1", spec.Host)
	assert.Equal(t, 9000, spec.Port)
	assert.Equal(t, "10.0.0.1:9000", spec.Address())

	// Unknown parameters are preserved for the transport layer.
	assert.Equal(t, "120", spec.Parameters["latency"])
	assert.Equal(t, "sesame", spec.Parameters["passphrase"])
	assert.Equal(t, "cam1", spec.Parameters["streamid"])
}

func TestParseEndpoint_ListenerAddress(t *testing.T) {
	spec, err := domain.ParseEndpoint("rist://@:10000?mode=listener")
	require.NoError(t, err)
	assert.Equal(t, ":10000", spec.Address())
}

func TestEndpointSpec_Clone(t *testing.T) {
	spec, err := domain.ParseEndpoint("srt://@:9000?latency=120")
	require.NoError(t, err)

	clone := spec.Clone()
	clone.Parameters["latency"] = "240"
	assert.Equal(t, "120", spec.Parameters["latency"], "clone must not share the parameter map")
}

func TestEndpointSpec_RedactedMasksSecrets(t *testing.T) {
	spec, err := domain.ParseEndpoint("srt://10.0.0.1:9000?mode=caller&passphrase=sesame")
	require.NoError(t, err)

	red := spec.Redacted()
	assert.NotContains(t, red, "sesame")
	assert.Contains(t, red, "passphrase=***")
	assert.Equal(t, red, spec.String())
}

func TestParseError_RedactsURI(t *testing.T) {
	_, err := domain.ParseEndpoint("srt://host?passphrase=sesame")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sesame")
}

func TestTransportError_Classification(t *testing.T) {
	timeout := domain.NewTransportError(domain.KindTimeout, "recv", nil)
	reset := domain.NewTransportError(domain.KindConnectionReset, "recv", errors.New("peer gone"))

	assert.True(t, domain.IsTransient(timeout))
	assert.True(t, domain.IsTimeout(timeout))
	assert.False(t, domain.IsTransient(reset))

	kind, ok := domain.KindOf(reset)
	require.True(t, ok)
	assert.Equal(t, domain.KindConnectionReset, kind)

	_, ok = domain.KindOf(errors.New("plain"))
	assert.False(t, ok)

	assert.False(t, domain.IsTransient(errors.New("plain")))
}
