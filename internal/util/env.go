// Package util holds small helpers shared across packages: environment lookups and text folding.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// StringEnv returns the trimmed value of key, or def when it is unset or blank.
func StringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ParseBoolEnv reads key as a boolean. Unset or unrecognized values yield def.
// Recognized spellings are true/false, 1/0, yes/no and on/off, in any case.
func ParseBoolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("util.ParseBoolEnv: unrecognized boolean, keeping default", "key", key, "value", raw, "default", def)
	return def
}
