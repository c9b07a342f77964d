// Package logx configures the process-wide slog logger and provides the
// parameter-redaction helper used wherever credential-bearing maps are
// logged.
package logx

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// secretKeys are masked at any nesting depth when logging parameter maps.
var secretKeys = map[string]struct{}{
	"token":     {},
	"api_token": {},
	"password":  {},
}

// Setup installs a text handler on stderr at the named level. Level names
// follow the CLI contract (DEBUG, INFO, WARNING, ERROR, case-insensitive).
func Setup(level string) error {
	var lvl slog.Level
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "", "INFO":
		lvl = slog.LevelInfo
	case "WARNING", "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	return nil
}

// Redact returns a deep copy of params with secret-named keys masked to
// "***". Call it explicitly before logging any parameter map that can carry
// credentials.
func Redact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if _, secret := secretKeys[strings.ToLower(k)]; secret {
			out[k] = "***"
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			out[k] = Redact(nested)
		case map[string]string:
			m := make(map[string]any, len(nested))
			for nk, nv := range nested {
				m[nk] = nv
			}
			out[k] = Redact(m)
		default:
			out[k] = v
		}
	}
	return out
}
