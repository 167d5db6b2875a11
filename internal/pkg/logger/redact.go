package logger

import (
	"regexp"
	"strings"
)

var bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)

// RedactToken masks a credential for safe logging, keeping the first four
// characters so operators can tell tokens apart.
// "BQDk3Xz9abc" → "BQDk***"
func RedactToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "token") || strings.Contains(key, "secret") || strings.Contains(key, "authorization") {
		return RedactToken(strings.TrimSpace(strings.TrimPrefix(val, "Bearer ")))
	}
	// Redact bearer headers embedded in generic fields such as error strings
	return bearerRegex.ReplaceAllString(val, "Bearer ***")
}
