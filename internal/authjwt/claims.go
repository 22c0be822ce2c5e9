// Package authjwt validates the HS512 bearer token a client presents at
// SignApprove, binding the control-channel handshake to an authenticated
// user record.
package authjwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the original's SessionClaims: issued-at/expiry in Unix
// seconds plus the user identifier and username.
type Claims struct {
	Identifier uint32 `json:"identifier"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}

// Validator verifies a bearer token under a shared HS512 secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator from the process-wide shared secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Verify parses and validates token, enforcing HS512 and the standard
// expiry check, returning the embedded claims on success.
func (v *Validator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
			return nil, fmt.Errorf("authjwt: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("authjwt: verify: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("authjwt: token invalid")
	}
	return claims, nil
}

// Issue mints a token for the given identity, exposed for tests and for
// any out-of-band provisioning tooling that needs to hand clients a
// bearer token.
func (v *Validator) Issue(identifier uint32, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Identifier: identifier,
		Username:   username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(v.secret)
}
