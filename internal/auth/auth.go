// Package auth resolves whether a caller is an admin.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid admin token")

// Claims is the payload of an admin token issued by the back-office portal.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks admin tokens. A Verifier with an empty secret trusts every
// caller's declared role.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether tokens are actually verified.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// IsAdmin resolves the admin flag of a caller that declared wantAdmin with the given token.
func (v *Verifier) IsAdmin(wantAdmin bool, token string) bool {
	if !wantAdmin {
		return false
	}
	if !v.Enabled() {
		return true
	}
	_, err := v.Verify(token)
	return err == nil
}

// Verify parses an HS256 token and requires the admin role.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs an admin token. Used by the CLI and tests.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
