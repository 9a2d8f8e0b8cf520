package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrTokenMalformed indicates the token could not be decoded or carries no expiry claim.
var ErrTokenMalformed = errors.New("auth: malformed token")

var unverifiedParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// TokenExpiry decodes the exp claim without verifying the signature. The café API is the only party
// that validates tokens; the storefront only needs to know when to refresh.
func TokenExpiry(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, ErrTokenMalformed
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.Join(ErrTokenMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenMalformed
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's expiry lies at or before now. Tokens that cannot be decoded
// count as expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}
