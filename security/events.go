package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent
// typos when logging security-relevant events.
const (
	// EventIPBlocked is logged when a request is rejected by the IP filter
	EventIPBlocked = "ip_blocked"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventAuthFailure is logged when bearer-token authentication fails
	EventAuthFailure = "auth_failure"

	// EventCSRFRejected is logged when CSRF token validation fails
	EventCSRFRejected = "csrf_rejected"

	// EventPermissionDenied is logged when a permission or role gate rejects a request
	EventPermissionDenied = "permission_denied"

	// EventPipelinePanic is logged when the orchestrator recovers an unexpected panic
	EventPipelinePanic = "pipeline_panic"
)
