package platform

import (
	"context"
	"fmt"
)

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// verifyIDToken checks signature, issuer (the platform URL), audience (client id) and expiry.
func (c *Client) verifyIDToken(ctx context.Context, raw string) (*User, error) {
	tok, err := c.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	var claims idTokenClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}
	return &User{ID: tok.Subject, Email: claims.Email, Name: claims.Name}, nil
}
