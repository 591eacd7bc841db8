package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// adminClaim is the private JWT claim carrying the admin flag.
const adminClaim = "adm"

type JWTAuth struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

type Claims struct {
	jwt.RegisteredClaims

	Admin bool `json:"adm"`
}

func NewJWTAuth(secret []byte, opts ...Option) *JWTAuth {
	a := &JWTAuth{
		secret:   secret,
		tokenTTL: 24 * time.Hour,
		issuer:   "smmstore",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type Option func(a *JWTAuth)

func WithIssuer(issuer string) Option {
	return func(a *JWTAuth) {
		a.issuer = issuer
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(a *JWTAuth) {
		a.tokenTTL = ttl
	}
}

// CreateJWTString signs a token whose subject is the user id and which
// carries the admin flag as a private claim.
func (a *JWTAuth) CreateJWTString(userID int64, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
		},
		Admin: isAdmin,
	})

	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return tokenString, nil
}

// ParseUserID converts the token subject back to a user id.
func ParseUserID(subject string) (int64, error) {
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("strconv.ParseInt: %w", err)
	}

	return userID, nil
}

// IsAdminClaim reads the admin flag out of verified claims.
func IsAdminClaim(claims map[string]any) bool {
	isAdmin, ok := claims[adminClaim].(bool)

	return ok && isAdmin
}
