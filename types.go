package gatekit

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/security"
	"github.com/gatekit/gatekit/storage"
)

// SecurityContext is the per-request state built by the pipeline. One
// is created per request and passed by reference through the stages;
// each field is written by exactly one stage and never revised by a
// later one.
type SecurityContext struct {
	RequestID string
	StartTime time.Time
	ClientIP  string
	UserAgent string

	// Authenticated and User are set by the authentication stage. Both
	// stay zero for anonymous requests, which are legal unless a
	// permission or role gate rejects them later.
	Authenticated bool
	User          *storage.User

	// RateLimit is the snapshot taken by the rate-limit stage.
	RateLimit *security.RateLimitInfo
}

type securityContextKey struct{}
type sanitizedBodyKey struct{}
type sanitizedQueryKey struct{}
type sanitizedParamsKey struct{}

func withSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFrom returns the request's security context.
func SecurityContextFrom(ctx context.Context) (*SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*storage.User, bool) {
	sc, ok := SecurityContextFrom(ctx)
	if !ok || sc.User == nil {
		return nil, false
	}
	return sc.User, true
}

func withSanitizedBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, sanitizedBodyKey{}, body)
}

// SanitizedBody returns the sanitized copy of the request's JSON body.
// Present only when sanitization is enabled and the body parsed as JSON.
func SanitizedBody(ctx context.Context) (any, bool) {
	body := ctx.Value(sanitizedBodyKey{})
	return body, body != nil
}

func withSanitizedQuery(ctx context.Context, query map[string][]string) context.Context {
	return context.WithValue(ctx, sanitizedQueryKey{}, query)
}

// SanitizedQuery returns the sanitized copy of the query parameters.
func SanitizedQuery(ctx context.Context) (map[string][]string, bool) {
	q, ok := ctx.Value(sanitizedQueryKey{}).(map[string][]string)
	return q, ok
}

func withSanitizedParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, sanitizedParamsKey{}, params)
}

// SanitizedParams returns the sanitized copy of the path parameters.
// Present only when a ParamExtractor is configured on the pipeline.
func SanitizedParams(ctx context.Context) (map[string]string, bool) {
	p, ok := ctx.Value(sanitizedParamsKey{}).(map[string]string)
	return p, ok
}
