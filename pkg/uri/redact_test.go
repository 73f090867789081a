package uri

import (
	"strings"
	"testing"
)

func TestRedact_SrtPass(t *testing.T) {
	red := Redact("srt://127.0.0.1:9000?mode=caller&pass=hello")
	if strings.Contains(red, "pass=hello") {
		t.Errorf("secret leaked: %s", red)
	}
	if !strings.Contains(red, "pass=***") {
		t.Errorf("expected masked pass, got: %s", red)
	}
	if !strings.Contains(red, "mode=caller") {
		t.Errorf("non-secret parameter lost: %s", red)
	}
}

func TestRedact_RistPskEnv(t *testing.T) {
	red := Redact("rist://@:10000?mode=listener&psk=env:FOO")
	if strings.Contains(red, "psk=env") {
		t.Errorf("secret leaked: %s", red)
	}
	if !strings.Contains(red, "psk=***") {
		t.Errorf("expected masked psk, got: %s", red)
	}
}

func TestRedact_TokenURLEncoded(t *testing.T) {
	red := Redact("srt://host:9000?token=abc%20123&mode=caller")
	if strings.Contains(red, "abc") {
		t.Errorf("secret leaked: %s", red)
	}
	if !strings.Contains(red, "token=***") {
		t.Errorf("expected masked token, got: %s", red)
	}
}

func TestRedact_Fragment(t *testing.T) {
	red := Redact("srt://host/path#secret=shh&x=1")
	if strings.Contains(red, "secret=shh") {
		t.Errorf("secret leaked: %s", red)
	}
	if !strings.Contains(red, "secret=***") {
		t.Errorf("expected masked fragment secret, got: %s", red)
	}
}

func TestRedact_NoSecretsUnchanged(t *testing.T) {
	raw := "srt://@:9000?mode=listener&latency=120"
	if red := Redact(raw); red != raw {
		t.Errorf("expected %s unchanged, got: %s", raw, red)
	}
}

func TestRedact_Passphrase(t *testing.T) {
	red := Redact("srt://10.0.0.1:9000?passphrase=opensesame&streamid=cam1")
	if strings.Contains(red, "opensesame") {
		t.Errorf("secret leaked: %s", red)
	}
	if !strings.Contains(red, "streamid=cam1") {
		t.Errorf("non-secret parameter lost: %s", red)
	}
}

func TestRedact_MaskIsNotPercentEncoded(t *testing.T) {
	red := Redact("srt://10.0.0.1:9000?mode=caller&passphrase=sesame")
	if strings.Contains(red, "%2A") || strings.Contains(red, "%2a") {
		t.Errorf("mask must render literally, got: %s", red)
	}
	if !strings.Contains(red, "passphrase=***") {
		t.Errorf("expected literal passphrase=***, got: %s", red)
	}
	if !strings.Contains(red, "mode=caller") {
		t.Errorf("non-secret parameter lost: %s", red)
	}
}

func TestIsSecretKey(t *testing.T) {
	for _, key := range []string{"psk", "PSK", "Token", "passphrase", "password"} {
		if !IsSecretKey(key) {
			t.Errorf("expected %q to be a secret key", key)
		}
	}
	for _, key := range []string{"mode", "latency", "streamid"} {
		if IsSecretKey(key) {
			t.Errorf("expected %q not to be a secret key", key)
		}
	}
}
