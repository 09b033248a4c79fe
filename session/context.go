// Package session owns the persisted session state of an embedded app: the
// Context type and the cookie codec that reads and writes it.
package session

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

type AuthStatus string

const (
	StatusDisconnected AuthStatus = "disconnected"
	StatusConnected    AuthStatus = "connected"
)

var (
	ErrEmbedIncomplete = errors.New("embed mode requires installation id and platform url")
	ErrNoAccessToken   = errors.New("connected session requires an access token")
)

// Context is the parsed session. Tokens are secrets and only ever travel in HttpOnly cookies.
type Context struct {
	AccessToken    string
	RefreshToken   string
	UserID         string
	InstallationID string
	PlatformURL    string
	EmbedMode      bool
	AuthStatus     AuthStatus
	ExpiresAt      time.Time
}

// Connected reports whether the session holds a usable access token. Platform
// confirmation is still required before trusting it.
func (c Context) Connected() bool {
	return c.AuthStatus == StatusConnected && c.AccessToken != ""
}

func (c Context) Validate() error {
	if c.EmbedMode && (c.InstallationID == "" || c.PlatformURL == "") {
		return ErrEmbedIncomplete
	}
	if c.AuthStatus == StatusConnected && c.AccessToken == "" {
		return ErrNoAccessToken
	}
	return nil
}

// EmbedURL is where the platform renders this app for the installation,
// e.g. {platform}/dashboard/apps/{installation}/view/reports. The path is
// appended as given, so "/" keeps its trailing slash and "" adds nothing.
func (c Context) EmbedURL(path string) string {
	u := strings.TrimSuffix(c.PlatformURL, "/") + "/dashboard/apps/" + url.PathEscape(c.InstallationID) + "/view"
	if path == "" {
		return u
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return u + path
}

// Disconnected returns a copy with the credentials removed.
func (c Context) Disconnected() Context {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.AuthStatus = StatusDisconnected
	c.ExpiresAt = time.Time{}
	return c
}

type ctxKey struct{}

func WithContext(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the session placed on the request by the session guard.
func FromContext(ctx context.Context) (Context, bool) {
	sc, ok := ctx.Value(ctxKey{}).(Context)
	return sc, ok
}
