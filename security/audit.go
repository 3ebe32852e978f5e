package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	IPAddress string
	Path      string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"ip_address", event.IPAddress,
		"path", event.Path,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogIPBlocked logs a request rejected by the IP filter
func (a *Auditor) LogIPBlocked(ipAddress, path string) {
	a.LogEvent(Event{
		Type:      EventIPBlocked,
		IPAddress: ipAddress,
		Path:      path,
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, path string, limit int) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Path:      path,
		Details: map[string]any{
			"limit": limit,
		},
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(userID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventAuthFailure,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogCSRFRejected logs a CSRF validation failure
func (a *Auditor) LogCSRFRejected(userID, ipAddress, path string) {
	a.LogEvent(Event{
		Type:      EventCSRFRejected,
		UserID:    userID,
		IPAddress: ipAddress,
		Path:      path,
	})
}

// LogPermissionDenied logs an authorization gate rejection
func (a *Auditor) LogPermissionDenied(userID, ipAddress, grant string) {
	a.LogEvent(Event{
		Type:      EventPermissionDenied,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"grant": grant,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
