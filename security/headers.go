package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo is the rate-limit snapshot rendered into X-RateLimit-*
// response headers when present.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// SetSecurityHeaders sets the fixed security headers on every pipeline
// response. These protect against MIME sniffing, clickjacking, legacy
// XSS vectors, and referrer leakage.
func SetSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// SetRequestHeaders sets the per-request correlation headers: the request
// ID and the elapsed time since the pipeline context was created.
func SetRequestHeaders(w http.ResponseWriter, requestID string, start time.Time) {
	h := w.Header()
	h.Set(RequestIDHeader, requestID)
	h.Set("X-Response-Time", strconv.FormatInt(time.Since(start).Milliseconds(), 10)+"ms")
}

// SetRateLimitHeaders renders a rate-limit snapshot into the standard
// X-RateLimit-* headers.
func SetRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
}

// SetCORSHeaders sets CORS headers from the configured origins, methods
// and allowed headers. The request Origin is echoed only when it matches
// the configured list ("*" matches any origin).
func SetCORSHeaders(w http.ResponseWriter, r *http.Request, origins, methods, allowedHeaders []string) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(origins) == 0 {
		return
	}

	allowed := false
	for _, o := range origins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Vary", "Origin")
	if len(methods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	}
	if len(allowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
	}
}
