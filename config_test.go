package gatekit

import (
	"net/http"
	"testing"
	"time"

	"github.com/gatekit/gatekit/cache"
	"github.com/gatekit/gatekit/security"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{JWT: JWTConfig{Secret: "s"}}
	applySecureDefaults(&cfg, discardLogger())

	if cfg.JWT.Algorithm != "HS256" {
		t.Errorf("JWT.Algorithm = %q, want HS256", cfg.JWT.Algorithm)
	}
	if cfg.JWT.Expiry != time.Hour {
		t.Errorf("JWT.Expiry = %v, want 1h", cfg.JWT.Expiry)
	}
	if cfg.JWT.CacheSize != cache.DefaultSize {
		t.Errorf("JWT.CacheSize = %d, want %d", cfg.JWT.CacheSize, cache.DefaultSize)
	}
	if cfg.JWT.CacheTTL != 5*time.Minute {
		t.Errorf("JWT.CacheTTL = %v, want 5m", cfg.JWT.CacheTTL)
	}

	if cfg.IP.DeniedCacheSize != cache.DefaultSize {
		t.Errorf("IP.DeniedCacheSize = %d, want %d", cfg.IP.DeniedCacheSize, cache.DefaultSize)
	}
	if cfg.IP.DeniedCacheTTL != 5*time.Minute {
		t.Errorf("IP.DeniedCacheTTL = %v, want 5m", cfg.IP.DeniedCacheTTL)
	}

	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit.Window = %v, want 1m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 100 {
		t.Errorf("RateLimit.MaxRequests = %d, want 100", cfg.RateLimit.MaxRequests)
	}

	if cfg.CSRF.HeaderName != "X-CSRF-Token" {
		t.Errorf("CSRF.HeaderName = %q, want X-CSRF-Token", cfg.CSRF.HeaderName)
	}
	if cfg.CSRF.TokenByteLength != security.DefaultCSRFTokenBytes {
		t.Errorf("CSRF.TokenByteLength = %d, want %d", cfg.CSRF.TokenByteLength, security.DefaultCSRFTokenBytes)
	}
	if cfg.CSRF.TokenTTL != time.Hour {
		t.Errorf("CSRF.TokenTTL = %v, want 1h", cfg.CSRF.TokenTTL)
	}
	if cfg.CSRF.CacheSize != 10000 {
		t.Errorf("CSRF.CacheSize = %d, want 10000", cfg.CSRF.CacheSize)
	}

	if cfg.Validation.MaxBodySize != 1<<20 {
		t.Errorf("Validation.MaxBodySize = %d, want 1 MiB", cfg.Validation.MaxBodySize)
	}

	if cfg.Session.CookieName != "session_id" {
		t.Errorf("Session.CookieName = %q, want session_id", cfg.Session.CookieName)
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("Session.MaxAge = %v, want 24h", cfg.Session.MaxAge)
	}
	if cfg.Session.SameSite != http.SameSiteLaxMode {
		t.Errorf("Session.SameSite = %v, want Lax", cfg.Session.SameSite)
	}
}

func TestConfig_ExplicitValuesKept(t *testing.T) {
	cfg := Config{
		JWT:       JWTConfig{Secret: "s", CacheSize: 42, CacheTTL: time.Second},
		RateLimit: RateLimitConfig{Window: 2 * time.Second, MaxRequests: 7},
		CSRF:      CSRFConfig{HeaderName: "X-Custom-CSRF"},
	}
	applySecureDefaults(&cfg, discardLogger())

	if cfg.JWT.CacheSize != 42 {
		t.Errorf("JWT.CacheSize = %d, want 42", cfg.JWT.CacheSize)
	}
	if cfg.RateLimit.Window != 2*time.Second {
		t.Errorf("RateLimit.Window = %v, want 2s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 7 {
		t.Errorf("RateLimit.MaxRequests = %d, want 7", cfg.RateLimit.MaxRequests)
	}
	if cfg.CSRF.HeaderName != "X-Custom-CSRF" {
		t.Errorf("CSRF.HeaderName = %q, want X-Custom-CSRF", cfg.CSRF.HeaderName)
	}
}

func TestConfig_TrustedProxyCountDefault(t *testing.T) {
	cfg := Config{JWT: JWTConfig{Secret: "s"}, TrustProxy: true}
	applySecureDefaults(&cfg, discardLogger())

	if cfg.TrustedProxyCount != 1 {
		t.Errorf("TrustedProxyCount = %d, want 1 when TrustProxy is set", cfg.TrustedProxyCount)
	}

	cfg = Config{JWT: JWTConfig{Secret: "s"}}
	applySecureDefaults(&cfg, discardLogger())

	if cfg.TrustedProxyCount != 0 {
		t.Errorf("TrustedProxyCount = %d, want 0 without TrustProxy", cfg.TrustedProxyCount)
	}
}
