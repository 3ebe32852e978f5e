package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gatekit/gatekit/cache"
	"github.com/gatekit/gatekit/security"
	"github.com/gatekit/gatekit/storage"
)

// Stable error codes returned in Result.ErrorCode. Clients branch on
// these, never on message text.
const (
	CodeMissingToken   = "MISSING_TOKEN"
	CodeInvalidToken   = "INVALID_TOKEN"
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeSessionExpired = "SESSION_EXPIRED"
)

// Result is the outcome of an authentication attempt.
type Result struct {
	Success   bool
	User      *storage.User
	ErrorCode string
}

// Config holds authentication settings.
type Config struct {
	// Secret signs and verifies tokens. Required.
	Secret string

	// Algorithm names the signing algorithm. Only HS256 is supported.
	Algorithm string

	// Leeway tolerates clock skew between token issuer and verifier.
	// Zero uses the default grace period.
	Leeway time.Duration

	// CacheSize bounds the decode and user caches.
	CacheSize int

	// CacheTTL expires decode and user cache entries.
	CacheTTL time.Duration
}

// Service authenticates requests. A decode cache short-circuits
// verification for tokens already verified within the cache TTL; the
// cache is keyed by token hash so raw tokens are never stored. A user
// cache fronts the user store.
type Service struct {
	secret []byte
	leeway time.Duration

	decodeCache *cache.Cache[string, *Claims]
	userCache   *cache.Cache[string, *storage.User]

	revokedMu sync.RWMutex
	revoked   map[string]struct{} // token hash -> revoked

	users    storage.UserStore
	sessions storage.SessionStore
	logger   *slog.Logger
}

// NewService creates an authentication service. The user store is
// required; the session store is optional and, when nil, session
// liveness is not checked.
func NewService(cfg Config, users storage.UserStore, sessions storage.SessionStore, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Algorithm != "" && cfg.Algorithm != "HS256" {
		return nil, fmt.Errorf("unsupported jwt algorithm: %s", cfg.Algorithm)
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = security.DefaultClockSkewGracePeriod
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
		logger.Warn("Invalid auth cache TTL, using default", "ttl", ttl)
	}

	return &Service{
		secret:      []byte(cfg.Secret),
		leeway:      leeway,
		decodeCache: cache.New[string, *Claims](cfg.CacheSize, ttl),
		userCache:   cache.New[string, *storage.User](cfg.CacheSize, ttl),
		revoked:     make(map[string]struct{}),
		users:       users,
		sessions:    sessions,
		logger:      logger,
	}, nil
}

// AuthenticateRequest verifies the request's bearer token and resolves
// its user. All failures are reported through Result.ErrorCode.
func (s *Service) AuthenticateRequest(ctx context.Context, r *http.Request) Result {
	token := ExtractBearerToken(r)
	if token == "" {
		return Result{ErrorCode: CodeMissingToken}
	}

	tokenHash := hashToken(token)

	if s.isRevoked(tokenHash) {
		return Result{ErrorCode: CodeInvalidToken}
	}

	claims, err := s.resolveClaims(tokenHash, token)
	if err != nil {
		s.logger.Debug("Token verification failed", "error", err)
		return Result{ErrorCode: CodeInvalidToken}
	}

	if claims.Subject == "" {
		return Result{ErrorCode: CodeInvalidToken}
	}

	user, err := s.resolveUser(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.Error("User store lookup failed", "error", err)
		}
		return Result{ErrorCode: CodeUserNotFound}
	}

	if !s.sessionLive(ctx, sessionKey(claims, user)) {
		return Result{ErrorCode: CodeSessionExpired}
	}

	return Result{Success: true, User: user}
}

// RevokeToken adds a raw token to the revocation denylist and drops any
// cached decode so the revocation takes effect immediately.
func (s *Service) RevokeToken(token string) {
	tokenHash := hashToken(token)

	s.revokedMu.Lock()
	s.revoked[tokenHash] = struct{}{}
	s.revokedMu.Unlock()

	s.decodeCache.Invalidate(tokenHash)
}

// InvalidateUser drops a user's cache entry, forcing the next request
// to reload from the store. Call after role or permission changes.
func (s *Service) InvalidateUser(userID string) {
	s.userCache.Invalidate(userID)
}

// CacheStats returns decode and user cache statistics for monitoring.
func (s *Service) CacheStats() (decode, user cache.Stats) {
	return s.decodeCache.GetStats(), s.userCache.GetStats()
}

// resolveClaims returns verified claims for the token, consulting the
// decode cache first. Cached claims still have their expiry re-checked:
// the cache TTL is independent of the token's own lifetime and must
// never extend it.
func (s *Service) resolveClaims(tokenHash, token string) (*Claims, error) {
	if claims, ok := s.decodeCache.Get(tokenHash); ok {
		if claims.ExpiresAt != nil && security.IsExpiredWithGracePeriod(claims.ExpiresAt.Time, s.leeway) {
			s.decodeCache.Invalidate(tokenHash)
			return nil, fmt.Errorf("cached token expired")
		}
		return claims, nil
	}

	claims, err := verifyToken(s.secret, token, s.leeway)
	if err != nil {
		return nil, err
	}

	// Only verified tokens enter the cache. A hit therefore never
	// bypasses signature validation, only repeats of it.
	s.decodeCache.Set(tokenHash, claims)
	return claims, nil
}

func (s *Service) resolveUser(ctx context.Context, userID string) (*storage.User, error) {
	if user, ok := s.userCache.Get(userID); ok {
		return user, nil
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.userCache.Set(userID, user)
	return user, nil
}

// sessionLive checks session liveness, failing open when the store is
// unreachable. An absent session fails closed.
func (s *Service) sessionLive(ctx context.Context, key string) bool {
	if s.sessions == nil || key == "" {
		return true
	}

	exists, err := s.sessions.SessionExists(ctx, key)
	if err != nil {
		s.logger.Warn("Session store unreachable, failing open", "error", err)
		return true
	}
	return exists
}

func (s *Service) isRevoked(tokenHash string) bool {
	s.revokedMu.RLock()
	defer s.revokedMu.RUnlock()
	_, revoked := s.revoked[tokenHash]
	return revoked
}

// sessionKey prefers the session id carried in the token, falling back
// to the one on the user record.
func sessionKey(claims *Claims, user *storage.User) string {
	if claims.SessionID != "" {
		return claims.SessionID
	}
	return user.SessionID
}

// ExtractBearerToken pulls the token from the Authorization header.
// Returns "" for an absent header or a non-Bearer scheme.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return strings.TrimSpace(authHeader[len(prefix):])
	}
	return ""
}

// hashToken derives the cache and denylist key for a raw token. Hashing
// keeps raw credentials out of long-lived maps and log-adjacent paths.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
