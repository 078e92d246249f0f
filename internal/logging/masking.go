// Package logging provides utilities for secure logging with data masking.
package logging

import (
	"net/http"
	"strings"
)

// MaskHeader redacts sensitive header values based on header name.
//
// Rules:
// - Secret-bearing headers: "[REDACTED]" (no partial reveal)
// - Credential headers (Authorization, Cookie, AccessKey): "****" + last 4 chars
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") {
		return "[REDACTED]"
	}

	switch lowerName {
	case "authorization", "cookie", "set-cookie", "accesskey", "x-api-key":
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskHeaders returns a flat map of header names to masked values,
// suitable for structured log attributes.
func MaskHeaders(h http.Header) map[string]string {
	masked := make(map[string]string, len(h))
	for name, values := range h {
		masked[name] = MaskHeader(name, strings.Join(values, ", "))
	}
	return masked
}
