package gatekit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatekit/gatekit/auth"
	"github.com/gatekit/gatekit/instrumentation"
	"github.com/gatekit/gatekit/metrics"
	"github.com/gatekit/gatekit/ratelimit"
	"github.com/gatekit/gatekit/security"
	"github.com/gatekit/gatekit/storage"
)

// ParamExtractor pulls path parameters from a request so the pipeline
// can sanitize them. Routers expose these differently; the adapter is
// one function.
type ParamExtractor func(*http.Request) map[string]string

// Pipeline composes the security stages into one middleware. Construct
// with New, guard handlers with Middleware and the gate helpers, and
// release owned background tasks with Close.
type Pipeline struct {
	cfg    *Config
	logger *slog.Logger

	ipFilter    *security.IPFilter
	rateLimiter *ratelimit.Service
	rateStore   ratelimit.Store
	authService *auth.Service
	csrf        *security.CSRFProtector
	collector   *metrics.Collector
	auditor     *security.Auditor
	inst        *instrumentation.Instrumentation

	paramExtractor ParamExtractor

	closers []func() error
}

// New builds a pipeline from the configuration. The user store is
// required; the session store is optional (nil skips session liveness
// checks). A nil logger falls back to slog.Default().
func New(cfg Config, users storage.UserStore, sessions storage.SessionStore, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	applySecureDefaults(&cfg, logger)

	p := &Pipeline{
		cfg:       &cfg,
		logger:    logger,
		ipFilter:  security.NewIPFilter(cfg.IP.DeniedCacheSize, cfg.IP.DeniedCacheTTL, logger),
		csrf:      security.NewCSRFProtector(cfg.CSRF.TokenByteLength, cfg.CSRF.CacheSize, cfg.CSRF.TokenTTL, logger),
		collector: metrics.NewCollector(),
		auditor:   security.NewAuditor(logger, cfg.AuditEnabled),
	}

	store, closer, err := newRateLimitStore(cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		p.closers = append(p.closers, closer)
	}
	p.rateStore = store
	p.rateLimiter = ratelimit.NewService(store, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests, logger)

	p.authService, err = auth.NewService(auth.Config{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		CacheSize: cfg.JWT.CacheSize,
		CacheTTL:  cfg.JWT.CacheTTL,
	}, users, sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	p.collector.SetAuxiliarySource(p.auxiliaryCounters)

	return p, nil
}

func newRateLimitStore(cfg RateLimitConfig, logger *slog.Logger) (ratelimit.Store, func() error, error) {
	if cfg.DistributedStoreURL == "" {
		store := ratelimit.NewMemoryStore(logger)
		return store, func() error { store.Stop(); return nil }, nil
	}

	store, err := ratelimit.NewRedisStore(cfg.DistributedStoreURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, store.Close, nil
}

// SetInstrumentation attaches OpenTelemetry instrumentation and
// registers the component-size gauges against the live components.
// Call before serving traffic.
func (p *Pipeline) SetInstrumentation(inst *instrumentation.Instrumentation) {
	p.inst = inst
	if inst == nil {
		return
	}

	allowlist, denylist, csrfTokens, rateKeys := p.sizeCallbacks()
	if err := inst.RegisterSizeCallbacks(allowlist, denylist, csrfTokens, rateKeys); err != nil {
		p.logger.Error("Failed to register size gauges", "error", err)
	}
}

// sizeCallbacks builds the observable-gauge callbacks for the
// pipeline's bounded stores. The rate-limit callback is nil for stores
// that cannot enumerate their keys, such as the Redis store, where
// key counts live server-side.
func (p *Pipeline) sizeCallbacks() (allowlist, denylist, csrfTokens, rateKeys instrumentation.SizeCallback) {
	allowlist = func() int64 {
		allowed, _ := p.ipFilter.ListSizes()
		return int64(allowed)
	}
	denylist = func() int64 {
		_, denied := p.ipFilter.ListSizes()
		return int64(denied)
	}
	csrfTokens = func() int64 {
		return int64(p.csrf.GetStats().Entries)
	}
	if counter, ok := p.rateStore.(interface{ Keys() int }); ok {
		rateKeys = func() int64 { return int64(counter.Keys()) }
	}
	return allowlist, denylist, csrfTokens, rateKeys
}

// SetParamExtractor configures path-parameter extraction for the
// sanitization stage. Call before serving traffic.
func (p *Pipeline) SetParamExtractor(fn ParamExtractor) {
	p.paramExtractor = fn
}

// IPFilter exposes the allow/deny lists for operational management.
func (p *Pipeline) IPFilter() *security.IPFilter {
	return p.ipFilter
}

// RateLimiter exposes the limiter for per-path overrides.
func (p *Pipeline) RateLimiter() *ratelimit.Service {
	return p.rateLimiter
}

// Auth exposes the authentication service for token revocation and
// user cache invalidation.
func (p *Pipeline) Auth() *auth.Service {
	return p.authService
}

// CSRF exposes the token protector, e.g. to invalidate on logout.
func (p *Pipeline) CSRF() *security.CSRFProtector {
	return p.csrf
}

// Metrics exposes the per-endpoint collector.
func (p *Pipeline) Metrics() *metrics.Collector {
	return p.collector
}

// Close stops the background tasks the pipeline owns. The pipeline
// must not be used afterwards.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, closer := range p.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Middleware wraps next with the full security pipeline: IP check,
// rate limit, authentication (when an Authorization header is present),
// CSRF validation for state-changing methods, sanitization, and header
// emission. Each stage either halts with a structured rejection or
// enriches the context for later stages.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := p.newSecurityContext(r)
		ctx := security.WithRequestID(r.Context(), sc.RequestID)
		ctx = withSecurityContext(ctx, sc)
		r = r.WithContext(ctx)

		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("Panic recovered in security pipeline",
					"panic", rec,
					"request_id", sc.RequestID,
					"path", r.URL.Path)
				p.auditor.LogEvent(security.Event{
					Type:      security.EventPipelinePanic,
					IPAddress: sc.ClientIP,
					Path:      r.URL.Path,
				})
				p.finish(r, sc, http.StatusInternalServerError, true)
				writeError(w, p.logger,
					NewPipelineError(ErrorCodeInternalError, "internal server error", http.StatusInternalServerError))
			}
		}()

		security.SetSecurityHeaders(w)
		security.SetCORSHeaders(w, r, p.cfg.CORS.Origins, p.cfg.CORS.Methods, p.cfg.CORS.AllowedHeaders)

		if !p.checkIP(w, r, sc) {
			return
		}
		if !p.checkRateLimit(w, r, sc) {
			return
		}
		if !p.authenticate(w, r, sc) {
			return
		}
		if !p.checkCSRF(w, r, sc) {
			return
		}

		r = p.sanitize(r)

		security.SetRequestHeaders(w, sc.RequestID, sc.StartTime)
		if sc.Authenticated && p.cfg.CSRF.Enabled {
			if token, err := p.csrf.GenerateToken(p.csrfKey(sc)); err == nil {
				w.Header().Set(p.cfg.CSRF.HeaderName, token)
			} else {
				p.logger.Error("Failed to issue CSRF token", "error", err, "request_id", sc.RequestID)
			}
		}

		next.ServeHTTP(w, r)
		p.finish(r, sc, http.StatusOK, false)
	})
}

// newSecurityContext builds the per-request context. An upstream
// X-Request-ID is honored only when it is safe to propagate.
func (p *Pipeline) newSecurityContext(r *http.Request) *SecurityContext {
	requestID := r.Header.Get(security.RequestIDHeader)
	if !security.ValidRequestID(requestID) {
		requestID = security.GenerateRequestID()
	}

	return &SecurityContext{
		RequestID: requestID,
		StartTime: time.Now(),
		ClientIP:  security.GetClientIP(r, p.cfg.TrustProxy, p.cfg.TrustedProxyCount),
		UserAgent: r.UserAgent(),
	}
}

func (p *Pipeline) checkIP(w http.ResponseWriter, r *http.Request, sc *SecurityContext) bool {
	if p.ipFilter.Check(sc.ClientIP) {
		return true
	}

	p.auditor.LogIPBlocked(sc.ClientIP, r.URL.Path)
	p.recordBlocked(r, "ip_blocked")
	p.finish(r, sc, http.StatusForbidden, true)
	writeError(w, p.logger,
		NewPipelineError(ErrorCodeIPBlocked, "access denied", http.StatusForbidden))
	return false
}

func (p *Pipeline) checkRateLimit(w http.ResponseWriter, r *http.Request, sc *SecurityContext) bool {
	res := p.rateLimiter.Check(r.Context(), sc.ClientIP, r.URL.Path)

	sc.RateLimit = &security.RateLimitInfo{
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetTime: res.ResetTime,
	}
	security.SetRateLimitHeaders(w, *sc.RateLimit)

	if res.Allowed {
		return true
	}

	p.auditor.LogRateLimitExceeded(sc.ClientIP, r.URL.Path, res.Limit)
	p.recordBlocked(r, "rate_limited")
	if p.inst != nil {
		p.inst.Metrics().RecordRateLimitExceeded(r.Context(), "sliding_window")
	}
	p.finish(r, sc, http.StatusTooManyRequests, true)

	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
	writeRateLimitError(w, p.logger,
		NewPipelineError(ErrorCodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests),
		res.Limit, res.Remaining)
	return false
}

// authenticate runs only when an Authorization header is present. Its
// absence is not a failure; anonymous access is legal unless a gate
// rejects it later.
func (p *Pipeline) authenticate(w http.ResponseWriter, r *http.Request, sc *SecurityContext) bool {
	if r.Header.Get("Authorization") == "" {
		return true
	}

	res := p.authService.AuthenticateRequest(r.Context(), r)
	if !res.Success {
		p.auditor.LogAuthFailure("", sc.ClientIP, res.ErrorCode)
		p.recordBlocked(r, "auth_failure")
		if p.inst != nil {
			p.inst.Metrics().RecordAuthFailure(r.Context(), res.ErrorCode)
		}
		p.finish(r, sc, http.StatusUnauthorized, true)
		writeError(w, p.logger,
			NewPipelineError(res.ErrorCode, "authentication failed", http.StatusUnauthorized))
		return false
	}

	sc.Authenticated = true
	sc.User = res.User
	return true
}

func (p *Pipeline) checkCSRF(w http.ResponseWriter, r *http.Request, sc *SecurityContext) bool {
	if !p.cfg.CSRF.Enabled || !isStateChanging(r.Method) {
		return true
	}

	token := r.Header.Get(p.cfg.CSRF.HeaderName)
	if p.csrf.ValidateToken(p.csrfKey(sc), token) {
		return true
	}

	userID := ""
	if sc.User != nil {
		userID = sc.User.ID
	}
	p.auditor.LogCSRFRejected(userID, sc.ClientIP, r.URL.Path)
	p.recordBlocked(r, "csrf_rejected")
	if p.inst != nil {
		p.inst.Metrics().RecordCSRFRejected(r.Context())
	}
	p.finish(r, sc, http.StatusForbidden, true)
	writeError(w, p.logger,
		NewPipelineError(ErrorCodeCSRFInvalid, "CSRF token missing or invalid", http.StatusForbidden))
	return false
}

// csrfKey is the session id when authenticated, the request id
// otherwise. A token is valid only under the key it was issued for.
func (p *Pipeline) csrfKey(sc *SecurityContext) string {
	if sc.User != nil && sc.User.SessionID != "" {
		return sc.User.SessionID
	}
	return sc.RequestID
}

// sanitize escapes body, query, and path-parameter strings into fresh
// containers attached to the request context. The original containers
// are never mutated; the JSON body is replaced wholesale so downstream
// readers see only the sanitized copy.
func (p *Pipeline) sanitize(r *http.Request) *http.Request {
	if !p.cfg.Validation.EnableSanitization {
		return r
	}

	ctx := r.Context()

	if query := r.URL.Query(); len(query) > 0 {
		ctx = withSanitizedQuery(ctx, security.SanitizeValues(query))
	}

	if p.paramExtractor != nil {
		if params := p.paramExtractor(r); len(params) > 0 {
			ctx = withSanitizedParams(ctx, security.SanitizeStringMap(params))
		}
	}

	if body, ok := p.sanitizeBody(r); ok {
		ctx = withSanitizedBody(ctx, body)
	}

	return r.WithContext(ctx)
}

// sanitizeBody reads a JSON body up to the configured size cap,
// sanitizes it, and swaps the request body for the sanitized encoding.
// Non-JSON, unparsable, and over-cap bodies pass through untouched.
func (p *Pipeline) sanitizeBody(r *http.Request) (any, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, false
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !isJSONContentType(ct) {
		return nil, false
	}

	// Read one byte past the cap so truncation is detectable. A body
	// larger than the cap is forwarded whole, never a truncated prefix.
	raw, err := io.ReadAll(io.LimitReader(r.Body, p.cfg.Validation.MaxBodySize+1))
	if err != nil {
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(nil))
		p.logger.Debug("Failed to read request body for sanitization", "error", err)
		return nil, false
	}
	if int64(len(raw)) > p.cfg.Validation.MaxBodySize {
		p.logger.Debug("Request body exceeds sanitization cap, forwarding unsanitized",
			"cap_bytes", p.cfg.Validation.MaxBodySize)
		r.Body = rejoinBody(raw, r.Body)
		return nil, false
	}
	r.Body.Close()

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not valid JSON; restore the original bytes untouched.
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return nil, false
	}

	sanitized := security.SanitizeValue(decoded)

	encoded, err := json.Marshal(sanitized)
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewReader(encoded))
	r.ContentLength = int64(len(encoded))

	return sanitized, true
}

// finish records metrics for a completed or rejected request.
func (p *Pipeline) finish(r *http.Request, sc *SecurityContext, status int, isError bool) {
	elapsedMs := float64(time.Since(sc.StartTime).Microseconds()) / 1000.0
	p.collector.UpdateMetrics(r.URL.Path, elapsedMs, isError)
	if p.inst != nil {
		p.inst.Metrics().RecordRequest(r.Context(), r.Method, r.URL.Path, status, elapsedMs)
	}
}

func (p *Pipeline) recordBlocked(r *http.Request, reason string) {
	if p.inst != nil {
		p.inst.Metrics().RecordBlocked(r.Context(), reason)
	}
}

// auxiliaryCounters samples component sizes for metrics snapshots.
func (p *Pipeline) auxiliaryCounters() metrics.AuxiliaryCounters {
	allowed, denied := p.ipFilter.ListSizes()
	decodeStats, userStats := p.authService.CacheStats()

	return metrics.AuxiliaryCounters{
		AllowlistSize:  allowed,
		DenylistSize:   denied,
		TokenCacheSize: decodeStats.Entries,
		UserCacheSize:  userStats.Entries,
		CSRFTokenCount: p.csrf.GetStats().Entries,
	}
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// rejoinBody prefixes already-read bytes back onto an unread body so
// downstream readers see the original stream.
func rejoinBody(prefix []byte, rest io.ReadCloser) io.ReadCloser {
	return readCloser{io.MultiReader(bytes.NewReader(prefix), rest), rest}
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isJSONContentType(ct string) bool {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			ct = ct[:i]
			break
		}
	}
	return strings.TrimSpace(ct) == "application/json"
}
