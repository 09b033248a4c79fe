package config

import (
	"net/http"
	"strings"
	"time"
)

type SecurityConfig interface {
	GetCookieSecret() string
	GetCookieSecure() bool
	GetCookieSameSite() http.SameSite
	GetStateTTL() time.Duration
	GetAccessCookieTTL() time.Duration
	GetRefreshCookieTTL() time.Duration
	GetContextCookieTTL() time.Duration
	GetStrictCallbackVerify() bool
	GetWebhookSecret() string
	GetSessionPollInterval() time.Duration
}

const sameSiteNone = http.SameSiteNoneMode

type Security struct {
	CookieSecret   string        `env:"COOKIE_SECRET"`
	CookieSameSite string        `env:"COOKIE_SAMESITE"        envDefault:"lax"`
	StateTTL       time.Duration `env:"OAUTH_STATE_TTL"        envDefault:"10m"`
	AccessTTL      time.Duration `env:"ACCESS_COOKIE_TTL"      envDefault:"24h"`
	RefreshTTL     time.Duration `env:"REFRESH_COOKIE_TTL"     envDefault:"720h"`
	ContextTTL     time.Duration `env:"CONTEXT_COOKIE_TTL"     envDefault:"720h"`
	StrictVerify   bool          `env:"CALLBACK_STRICT_VERIFY" envDefault:"false"`
	WebhookSecret  string        `env:"WEBHOOK_SECRET"`
	PollInterval   time.Duration `env:"SESSION_POLL_INTERVAL"  envDefault:"5s"`
}

// GetCookieSecret returns the key material used to seal secret cookies. Empty disables sealing.
func (s Security) GetCookieSecret() string {
	return s.CookieSecret
}

// GetCookieSameSite must be "none" when the platform embeds the app from another site.
func (s Security) GetCookieSameSite() http.SameSite {
	switch strings.ToLower(s.CookieSameSite) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

func (s Security) GetStateTTL() time.Duration {
	return s.StateTTL
}

func (s Security) GetAccessCookieTTL() time.Duration {
	return s.AccessTTL
}

func (s Security) GetRefreshCookieTTL() time.Duration {
	return s.RefreshTTL
}

func (s Security) GetContextCookieTTL() time.Duration {
	return s.ContextTTL
}

// GetStrictCallbackVerify makes a failed post-exchange verification abort the callback.
func (s Security) GetStrictCallbackVerify() bool {
	return s.StrictVerify
}

func (s Security) GetWebhookSecret() string {
	return s.WebhookSecret
}

func (s Security) GetSessionPollInterval() time.Duration {
	return s.PollInterval
}
