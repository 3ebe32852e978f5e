package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload the pipeline understands.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// IssueToken returns a signed HS256 token for the user. Used by tests
// and by callers that mint first-party tokens.
func IssueToken(secret, userID, email, sessionID string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        fmt.Sprintf("%d", now.UnixNano()),
		},
		Email:     email,
		SessionID: sessionID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

// verifyToken parses and verifies a token string: signature, structure,
// and expiry (with leeway for clock skew between issuer and verifier).
// Any failure means the token is rejected; there is no partial trust.
func verifyToken(secret []byte, tokenString string, leeway time.Duration) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
