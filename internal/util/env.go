// Package util holds small helpers shared across Zenflow components: boolean
// environment parsing for switches like AGENDA_INSECURE_TLS, and French text
// normalization for keyword matching.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, returning fallback when
// the variable is unset, empty or not a recognized spelling. Recognized
// spellings are true/1/yes/on and false/0/no/off, case-insensitive.
func ParseBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: unrecognized value", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
}
