package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

// requestIDContextKey is the context key for storing request IDs
type requestIDContextKey struct{}

// RequestIDHeader is the HTTP header for request IDs
const RequestIDHeader = "X-Request-ID"

// requestIDPattern validates request IDs to prevent header injection
// attacks. Allows alphanumeric, hyphens and underscores (1-128 chars),
// which accepts common formats from upstream proxies.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// GenerateRequestID generates a cryptographically secure random request
// ID: 16 bytes of entropy encoded as a 22-character base64url string.
//
// The function panics if the system's random number generator fails,
// which indicates a critical system-level security failure.
func GenerateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// ValidRequestID reports whether an upstream-provided request ID is safe
// to propagate: no CRLF injection, bounded length.
func ValidRequestID(requestID string) bool {
	return requestIDPattern.MatchString(requestID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return requestID
	}
	return ""
}
