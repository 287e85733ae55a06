// Package auth validates the bearer tokens presented by authority
// console operators. Tokens are issued by the authority's identity
// provider; this service only verifies signature and claims.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Role is the operator's authorization level.
type Role string

const (
	// RoleOperator may work alerts: acknowledge, investigate, resolve.
	RoleOperator Role = "operator"

	// RoleAdmin may additionally manage zones and route corridors.
	RoleAdmin Role = "admin"
)

// Claims are the verified claims of a console operator token.
type Claims struct {
	jwt.RegisteredClaims

	// OperatorID identifies the console operator.
	OperatorID string `json:"oid"`

	// Role is the operator's authorization level.
	Role Role `json:"role"`
}

// Config holds settings for the token validator.
type Config struct {
	// SigningKey is the shared HS256 secret of the identity provider.
	SigningKey string

	// Issuer is the expected issuer claim.
	Issuer string

	// Audience is the expected audience claim.
	Audience string
}

// Validator verifies console operator tokens.
type Validator struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewValidator creates a token validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// Validate checks the token's signature, issuer, audience and expiry,
// and returns the operator claims.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.OperatorID == "" {
		return nil, fmt.Errorf("%w: missing operator id", ErrInvalidToken)
	}

	return claims, nil
}

// Sign mints a token with the validator's key and expected claims.
// Used by tests and the local development token tool; production tokens
// come from the identity provider.
func (v *Validator) Sign(operatorID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   operatorID,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
		OperatorID: operatorID,
		Role:       role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
