package logger

import (
	"context"
	"log/slog"
	"regexp"
	"time"
)

// maxLoggedBody bounds request and response bodies in debug logs.
const maxLoggedBody = 2048

// credentialPattern matches Google API keys, OAuth access tokens and
// bearer tokens.
var credentialPattern = regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}|ya29\.[0-9A-Za-z._-]{20,}|Bearer\s+[0-9A-Za-z._-]+`)

// RedactSensitiveData masks credentials in s. Keys and tokens keep their
// first four characters.
func RedactSensitiveData(s string) string {
	return credentialPattern.ReplaceAllStringFunc(s, func(m string) string {
		if m[0] == 'B' {
			return "Bearer [REDACTED]"
		}
		return m[:4] + "...[REDACTED]"
	})
}

func loggedBody(body []byte) string {
	if len(body) > maxLoggedBody {
		return RedactSensitiveData(string(body[:maxLoggedBody])) + "...(truncated)"
	}
	return RedactSensitiveData(string(body))
}

// APIRequest logs an outgoing model API call at debug level.
func APIRequest(ctx context.Context, provider, method, url string, body []byte) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	output(ctx, slog.LevelDebug, "API request",
		"provider", provider,
		"method", method,
		"url", RedactSensitiveData(url),
		"bytes", len(body),
		"body", loggedBody(body),
	)
}

// APIResponse logs a model API reply at debug level, or at warn level for
// non-2xx statuses.
func APIResponse(ctx context.Context, provider string, status int, elapsed time.Duration, body []byte) {
	level := slog.LevelDebug
	if status < 200 || status > 299 {
		level = slog.LevelWarn
	}
	if !DefaultLogger.Enabled(ctx, level) {
		return
	}
	output(ctx, level, "API response",
		"provider", provider,
		"status", status,
		"duration", elapsed,
		"body", loggedBody(body),
	)
}
