package gatekit

import (
	"net/http"
)

// RequirePermission returns middleware that rejects requests whose user
// lacks the named permission: 401 when unauthenticated, 403 otherwise.
// Apply behind Middleware so the authentication stage has run.
func (p *Pipeline) RequirePermission(permission string) func(http.Handler) http.Handler {
	return p.requireGrant(permission, ErrorCodeInsufficientPermission,
		func(sc *SecurityContext) bool {
			return sc.User.HasPermission(permission)
		})
}

// RequireRole returns middleware that rejects requests whose user lacks
// the named role: 401 when unauthenticated, 403 otherwise.
func (p *Pipeline) RequireRole(role string) func(http.Handler) http.Handler {
	return p.requireGrant(role, ErrorCodeInsufficientRole,
		func(sc *SecurityContext) bool {
			return sc.User.HasRole(role)
		})
}

func (p *Pipeline) requireGrant(grant, code string, holds func(*SecurityContext) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := SecurityContextFrom(r.Context())
			if !ok || !sc.Authenticated || sc.User == nil {
				writeError(w, p.logger,
					NewPipelineError(ErrorCodeMissingToken, "authentication required", http.StatusUnauthorized))
				return
			}

			if !holds(sc) {
				p.auditor.LogPermissionDenied(sc.User.ID, sc.ClientIP, grant)
				writeError(w, p.logger,
					NewPipelineError(code, "insufficient privileges", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
