// Package uri contains helpers for rendering endpoint URIs in logs and
// diagnostics without leaking credentials.
package uri

import (
	"net/url"
	"regexp"
	"strings"
)

var secretKeys = map[string]bool{
	"psk":        true,
	"token":      true,
	"pass":       true,
	"password":   true,
	"secret":     true,
	"key":        true,
	"passphrase": true,
}

var kvPattern = regexp.MustCompile(`(?i)(psk|token|passphrase|pass|password|secret|key)=([^&#]*)`)

// Redact masks secret values in a URI. Known secret keys are matched
// case-insensitively in both the query and the fragment. Inputs that do not
// parse as URLs (for example srt://@:9000 forms) fall back to a regexp pass
// over the raw string.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return redactKVLike(raw)
	}

	// The mask is spliced into the raw query string so the rendered URI keeps
	// a literal key=*** instead of a percent-encoded one.
	q, changed := redactQuery(u.RawQuery)
	if changed {
		u.RawQuery = q
	}
	if u.Fragment != "" {
		red := redactKVLike(u.Fragment)
		if red != u.Fragment {
			u.Fragment = red
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}

func redactQuery(rawQuery string) (string, bool) {
	if rawQuery == "" {
		return rawQuery, false
	}

	parts := strings.Split(rawQuery, "&")
	changed := false
	for i, part := range parts {
		k, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		if IsSecretKey(name) {
			parts[i] = k + "=***"
			changed = true
		}
	}
	return strings.Join(parts, "&"), changed
}

// IsSecretKey reports whether a query parameter name carries a credential.
func IsSecretKey(key string) bool {
	return secretKeys[strings.ToLower(key)]
}

func redactKVLike(s string) string {
	return kvPattern.ReplaceAllString(s, "$1=***")
}
