package logging

import (
	"encoding/hex"
	"log/slog"
	"strings"

	"lukechampine.com/blake3"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Log keys emitted verbatim. Anything else passed through MaskField is masked.
var plainKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"contest_id": {},
	"op":         {},
	"route":      {},
	"outcome":    {},
	"status":     {},
}

func isPlain(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns key=value for plain keys and key=[REDACTED] otherwise.
// Blank values are kept as-is.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isPlain(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// Fingerprint returns a short BLAKE3 digest of value so two log lines about the
// same credential can be correlated without printing it.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}

// TokenAttrs masks a bearer token and attaches its fingerprint.
func TokenAttrs(token string) []any {
	return []any{MaskField("token", token), slog.String("token_fp", Fingerprint(token))}
}
