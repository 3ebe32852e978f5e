// Package security provides the building blocks of the request security
// pipeline: IP allow/deny filtering, CSRF token issuance and validation,
// input sanitization, security response headers, request IDs, and audit
// logging.
package security
