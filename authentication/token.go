package authentication

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim of an access token. The signature is not
// checked; the API does that on every call. ok is false when the token is not
// a JWT or has no exp claim.
func tokenExpiry(accessToken string) (time.Time, bool, error) {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get expiration time: %w", err)
	}

	if exp == nil {
		return time.Time{}, false, nil
	}

	return exp.Time, true, nil
}
