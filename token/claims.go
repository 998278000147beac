package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is an exported constant or variable used by the access client.
var ErrNoExpiry = errors.New("access token carries no expiry claim")

// AccessExpiry peeks at the exp claim of an access token without verifying
// the signature. The client never holds the server's signing key; the
// value only schedules a proactive refresh, and a forged expiry costs the
// forger nothing but an extra 401.
func AccessExpiry(access string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(access, claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}
