package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const stateBytes = 32

// NewState returns a random single-use OAuth state token.
func NewState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[session NewState] %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
