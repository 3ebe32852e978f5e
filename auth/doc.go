// Package auth implements bearer-token authentication for the security
// pipeline: token extraction, HS256 signature verification, decode and
// user caching, revocation checks, and session liveness.
//
// Expected failures are returned as a typed Result carrying a stable
// error code, never as errors or panics. Signature, format, and expiry
// validation always fail closed; only the session-liveness check fails
// open when its store is unreachable.
package auth
