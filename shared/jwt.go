package shared

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ipo-dalal"

// AdminClaims are carried by tokens that unlock the admin routes
type AdminClaims struct {
	Role string `json:"role"`

	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 admin tokens
type TokenIssuer struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Sign issues a token for subject with the given role
func (t TokenIssuer) Sign(subject, role string) (token string, expiresAt time.Time, err error) {
	if len(t.Secret) == 0 {
		return "", time.Time{}, errors.New("token secret is not configured")
	}

	now := time.Now().UTC()
	expiresAt = now.Add(t.TokenTTL)
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses token and returns its claims when the signature, issuer and
// lifetime all check out
func (t TokenIssuer) Verify(token string) (AdminClaims, error) {
	if len(t.Secret) == 0 {
		return AdminClaims{}, errors.New("token secret is not configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &AdminClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.Secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return AdminClaims{}, err
	}

	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return AdminClaims{}, errors.New("invalid token")
	}
	return *claims, nil
}
