package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a bearer token is refused.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues the bearer tokens used to manage a stored configuration.
type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

// Claims scope a token to one stored configuration. UUID and the registered
// subject always carry the same value; a token where they differ is refused.
type Claims struct {
	UUID string `json:"uuid"`
	jwt.RegisteredClaims
}

// Sign returns a token for the configuration uuid and its expiry.
func (ts TokenService) Sign(uuid string) (string, time.Time, error) {
	if uuid == "" {
		return "", time.Time{}, fmt.Errorf("sign token: empty uuid")
	}

	issued := time.Now().UTC().Truncate(time.Second)
	expires := issued.Add(ts.Duration)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UUID: uuid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   uuid,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}).SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse accepts only unexpired HS256 tokens from this service's issuer.
func (ts TokenService) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return ts.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UUID == "" || claims.UUID != claims.Subject {
		return nil, fmt.Errorf("%w: uuid does not match subject", ErrInvalidToken)
	}
	return claims, nil
}
