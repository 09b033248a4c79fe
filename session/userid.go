package session

import "github.com/golang-jwt/jwt/v5"

// ResolveUserID returns the user the session belongs to. The sub claim of a
// JWT access token wins over the stored user id, which is only used for
// opaque tokens. The result is a revocation lookup key, never an
// authorization decision.
func ResolveUserID(c Context) string {
	if sub := tokenSubject(c.AccessToken); sub != "" {
		return sub
	}
	return c.UserID
}

func tokenSubject(accessToken string) string {
	if accessToken == "" {
		return ""
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
