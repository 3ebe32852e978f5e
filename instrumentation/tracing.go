package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys.
//
// SECURITY WARNING: Never log actual sensitive values (bearer tokens,
// CSRF tokens, session keys) in traces or metrics. Only log metadata
// such as token presence, error codes, and validation results. Traces
// are persisted, replicated, and accessible to wider audiences than
// the systems they observe.
const (
	// Pipeline attributes
	AttrRequestID  = "pipeline.request_id"
	AttrStage      = "pipeline.stage"
	AttrErrorCode  = "pipeline.error_code"
	AttrHTTPMethod = "http.method"
	AttrHTTPPath   = "http.path"
	AttrHTTPStatus = "http.status_code"

	// Auth attributes - metadata only, never credential values
	AttrUserID       = "auth.user_id"
	AttrTokenPresent = "auth.token_present" //nolint:gosec // presence flag, not a credential
	AttrSessionLive  = "auth.session_live"

	// Security attributes
	AttrClientIP       = "security.client_ip"
	AttrRateLimitKey   = "security.rate_limit.key"
	AttrAuditEventType = "security.audit.event_type"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddRequestAttributes adds common request attributes to a span (nil-safe)
func AddRequestAttributes(span trace.Span, requestID, method, path string) {
	if requestID != "" {
		SetSpanAttributes(span, attribute.String(AttrRequestID, requestID))
	}
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPPath, path),
	)
}

// AddAuthAttributes adds authentication metadata to a span (nil-safe)
func AddAuthAttributes(span trace.Span, userID string, tokenPresent bool) {
	if userID != "" {
		SetSpanAttributes(span, attribute.String(AttrUserID, userID))
	}
	SetSpanAttributes(span, attribute.Bool(AttrTokenPresent, tokenPresent))
}

// AddSecurityAttributes adds security attributes to a span (nil-safe)
//
// PRIVACY NOTE: client IPs may be PII. Check ShouldLogClientIPs()
// before calling.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
