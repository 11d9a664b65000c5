package credential

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserID is returned when a token carries neither a user_id nor a
// sub claim.
var ErrNoUserID = errors.New("token has no user id claim")

// Claims are the session token claims the client reads.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Identity is the authenticated viewer derived from a session token.
type Identity struct {
	UserID string
	Token  string
}

// IdentityFromToken reads the viewer's user id from a session token. The
// signature is not checked here; the backend verifies every request.
func IdentityFromToken(token string) (Identity, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parsing session token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Identity{}, ErrNoUserID
	}
	return Identity{UserID: userID, Token: token}, nil
}

// LoadIdentity reads the session token from the keyring.
func LoadIdentity() (Identity, error) {
	token, err := Get(SessionTokenKey)
	if err != nil {
		return Identity{}, err
	}
	return IdentityFromToken(token)
}
