package gatekit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gatekit/gatekit/cache"
	"github.com/gatekit/gatekit/security"
)

// Config holds pipeline configuration.
type Config struct {
	JWT        JWTConfig
	IP         IPConfig
	RateLimit  RateLimitConfig
	CSRF       CSRFConfig
	CORS       CORSConfig
	Validation ValidationConfig
	Session    SessionConfig

	// TrustProxy enables client IP extraction from X-Forwarded-For and
	// X-Real-IP headers. Only enable behind trusted reverse proxies.
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of
	// the service, counted from the right of X-Forwarded-For.
	TrustedProxyCount int

	// AuditEnabled turns on structured security audit logging.
	AuditEnabled bool
}

// JWTConfig holds bearer-token verification settings.
type JWTConfig struct {
	// Secret signs and verifies tokens. Required.
	Secret string

	// Algorithm names the signing algorithm. Only HS256 is supported.
	Algorithm string

	// Expiry is the lifetime applied to tokens minted via IssueToken.
	Expiry time.Duration

	// CacheSize bounds the token-decode and user caches.
	CacheSize int

	// CacheTTL expires decode and user cache entries.
	CacheTTL time.Duration
}

// IPConfig holds IP filtering settings. The allow and deny lists are
// managed at runtime through the pipeline's IPFilter accessor.
type IPConfig struct {
	// DeniedCacheSize bounds the cache of recently confirmed-denied
	// lookups.
	DeniedCacheSize int

	// DeniedCacheTTL expires denied-lookup cache entries.
	DeniedCacheTTL time.Duration
}

// RateLimitConfig holds throttling settings.
type RateLimitConfig struct {
	// Window is the sliding-window duration.
	Window time.Duration

	// MaxRequests is the per-key ceiling within the window.
	MaxRequests int

	// DistributedStoreURL is a Redis URL (redis://host:port/db) for
	// multi-instance coordination. Empty uses the in-process store.
	DistributedStoreURL string
}

// CSRFConfig holds anti-forgery settings.
type CSRFConfig struct {
	// Enabled turns on CSRF validation for state-changing methods.
	Enabled bool

	// HeaderName carries the token on requests and responses.
	HeaderName string

	// TokenByteLength is the entropy of generated tokens.
	TokenByteLength int

	// TokenTTL expires stored tokens.
	TokenTTL time.Duration

	// CacheSize bounds the token store.
	CacheSize int
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Origins        []string
	Methods        []string
	AllowedHeaders []string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	// MaxBodySize caps how many body bytes sanitization will read.
	MaxBodySize int64

	// EnableSanitization turns on recursive HTML-escaping of body,
	// query, and path-parameter values.
	EnableSanitization bool
}

// SessionConfig holds session cookie settings surfaced to callers that
// issue sessions alongside the pipeline.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	HTTPOnly   bool
	SameSite   http.SameSite
}

// applySecureDefaults applies secure-by-default configuration values
// and logs warnings for explicitly insecure settings.
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)
	logSecurityWarnings(config, logger)
	return config
}

func applyTimeDefaults(config *Config) {
	if config.JWT.Algorithm == "" {
		config.JWT.Algorithm = "HS256"
	}
	if config.JWT.Expiry == 0 {
		config.JWT.Expiry = time.Hour
	}
	if config.JWT.CacheSize == 0 {
		config.JWT.CacheSize = cache.DefaultSize
	}
	if config.JWT.CacheTTL == 0 {
		config.JWT.CacheTTL = 5 * time.Minute
	}

	if config.IP.DeniedCacheSize == 0 {
		config.IP.DeniedCacheSize = cache.DefaultSize
	}
	if config.IP.DeniedCacheTTL == 0 {
		config.IP.DeniedCacheTTL = 5 * time.Minute
	}

	if config.RateLimit.Window == 0 {
		config.RateLimit.Window = time.Minute
	}
	if config.RateLimit.MaxRequests == 0 {
		config.RateLimit.MaxRequests = 100
	}

	if config.CSRF.HeaderName == "" {
		config.CSRF.HeaderName = "X-CSRF-Token"
	}
	if config.CSRF.TokenByteLength == 0 {
		config.CSRF.TokenByteLength = security.DefaultCSRFTokenBytes
	}
	if config.CSRF.TokenTTL == 0 {
		config.CSRF.TokenTTL = time.Hour
	}
	if config.CSRF.CacheSize == 0 {
		config.CSRF.CacheSize = 10000
	}

	if config.Validation.MaxBodySize == 0 {
		config.Validation.MaxBodySize = 1 << 20 // 1 MiB
	}

	if config.Session.CookieName == "" {
		config.Session.CookieName = "session_id"
	}
	if config.Session.MaxAge == 0 {
		config.Session.MaxAge = 24 * time.Hour
	}
	if config.Session.SameSite == 0 {
		config.Session.SameSite = http.SameSiteLaxMode
	}

	if config.TrustProxy && config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
}

func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if !config.CSRF.Enabled {
		logger.Warn("SECURITY NOTICE: CSRF protection is DISABLED",
			"risk", "Cross-site request forgery on state-changing endpoints",
			"recommendation", "Set CSRF.Enabled=true unless another layer enforces it")
	}
	if !config.Validation.EnableSanitization {
		logger.Warn("SECURITY NOTICE: Input sanitization is DISABLED",
			"risk", "Stored XSS if downstream rendering trusts request data",
			"recommendation", "Set Validation.EnableSanitization=true unless output encoding is guaranteed")
	}
	if config.TrustProxy {
		logger.Warn("SECURITY NOTICE: Trusting proxy headers",
			"risk", "IP spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	if !config.Session.Secure {
		logger.Warn("SECURITY NOTICE: Session cookie Secure flag is off",
			"risk", "Session cookies sent over plaintext HTTP",
			"recommendation", "Set Session.Secure=true in production")
	}
}
