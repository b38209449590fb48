package remote

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoProfile is returned when a token carries no profileId claim.
var ErrNoProfile = errors.New("remote: token has no active profile")

// ProfileFromToken returns the profileId claim of a bearer token. The
// signature is not checked: the authority verifies tokens, the client only
// needs to know which profile it is acting for.
func ProfileFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	profile, ok := claims["profileId"].(string)
	if !ok || profile == "" {
		return "", ErrNoProfile
	}
	return profile, nil
}
