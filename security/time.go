package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default grace period for token
	// expiration checks. This prevents false expiration errors due to
	// time synchronization drift between the token issuer and this
	// process. 5 seconds handles typical NTP drift; tokens may be
	// accepted up to that long past their true expiry.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks whether a deadline has passed, with the default clock
// skew grace period.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks whether a deadline has passed, with a
// custom clock skew grace period. A zero deadline never expires.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
