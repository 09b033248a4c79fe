package platformtest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. Tests override it to mint expired tokens.
var NowTimeFunc = time.Now

// User is the identity put into issued tokens.
type User struct {
	ID    string
	Email string
	Name  string
}

// Issuer mints tokens the way the platform does.
type Issuer struct {
	URL    string
	Key    *KeyPair
	Expiry time.Duration
}

func (i Issuer) expiry() time.Duration {
	if i.Expiry <= 0 {
		return time.Hour
	}
	return i.Expiry
}

// IDToken returns an OpenID Connect id_token for user addressed to clientID.
func (i Issuer) IDToken(user User, clientID string) (string, error) {
	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"iss": i.URL,
		"sub": user.ID,
		"aud": clientID,
		"iat": now.Unix(),
		"exp": now.Add(i.expiry()).Unix(),
		"jti": uuid.New().String(),
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}
	if user.Name != "" {
		claims["name"] = user.Name
	}
	return i.sign(claims)
}

// AccessToken returns a platform access token whose subject is userID.
// The app never verifies it; it only reads the subject as a revocation key.
func (i Issuer) AccessToken(userID, appID, scope string) (string, error) {
	now := NowTimeFunc()
	return i.sign(jwt.MapClaims{
		"iss":       i.URL,
		"sub":       userID,
		"client_id": appID,
		"scope":     scope,
		"iat":       now.Unix(),
		"exp":       now.Add(i.expiry()).Unix(),
		"jti":       uuid.New().String(),
	})
}

func (i Issuer) sign(claims jwt.MapClaims) (string, error) {
	if i.Key == nil {
		return "", fmt.Errorf("[platformtest sign] issuer has no key")
	}
	tok := jwt.NewWithClaims(i.Key.SigningMethod(), claims)
	tok.Header["kid"] = i.Key.KeyID
	signed, err := tok.SignedString(i.Key.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("[platformtest sign] %w", err)
	}
	return signed, nil
}
