package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatekit/gatekit/cache"
)

// DefaultCSRFTokenBytes is the entropy of generated CSRF tokens.
const DefaultCSRFTokenBytes = 32

// CSRFProtector issues and validates per-session anti-forgery tokens.
// A token is stored keyed by the session identifier it was issued for
// (or the request ID for unauthenticated flows) and is valid only under
// that key.
type CSRFProtector struct {
	tokens     *cache.Cache[string, string]
	tokenBytes int
	logger     *slog.Logger
}

// NewCSRFProtector creates a CSRF protector. tokenBytes controls token
// entropy (default 32); cacheSize and ttl bound the token store.
func NewCSRFProtector(tokenBytes, cacheSize int, ttl time.Duration, logger *slog.Logger) *CSRFProtector {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenBytes <= 0 {
		tokenBytes = DefaultCSRFTokenBytes
	}
	return &CSRFProtector{
		tokens:     cache.New[string, string](cacheSize, ttl),
		tokenBytes: tokenBytes,
		logger:     logger,
	}
}

// GenerateToken mints a fresh random token for the given session key and
// stores it, replacing any previous token for that key.
func (p *CSRFProtector) GenerateToken(sessionKey string) (string, error) {
	b := make([]byte, p.tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(b)
	p.tokens.Set(sessionKey, token)
	return token, nil
}

// ValidateToken checks the presented token against the one stored for
// sessionKey using a constant-time comparison.
//
// If no token is stored for the key, a fresh one is issued so the client
// can succeed on its next attempt, and this request is rejected.
func (p *CSRFProtector) ValidateToken(sessionKey, presented string) bool {
	if presented == "" {
		return false
	}

	expected, ok := p.tokens.Get(sessionKey)
	if !ok {
		if _, err := p.GenerateToken(sessionKey); err != nil {
			p.logger.Error("Failed to issue replacement CSRF token", "error", err)
		}
		return false
	}

	// subtle.ConstantTimeCompare length-checks first, then XOR-accumulates
	// over all bytes, so timing does not leak the first differing byte.
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// InvalidateToken drops the stored token for a session key, e.g. on logout.
func (p *CSRFProtector) InvalidateToken(sessionKey string) {
	p.tokens.Invalidate(sessionKey)
}

// GetStats returns token-store statistics for monitoring.
func (p *CSRFProtector) GetStats() cache.Stats {
	return p.tokens.GetStats()
}
