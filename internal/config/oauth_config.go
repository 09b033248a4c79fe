package config

import "time"

type PlatformConfig interface {
	GetPlatformURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetPlatformTimeout() time.Duration
	GetAllowedPlatformURLs() []string
}

// OAuth holds the host platform's OAuth client registration. Variables are read with the PLATFORM_ prefix.
type OAuth struct {
	URL          string        `env:"URL"             envDefault:"http://localhost:3000"`
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	RedirectURL  string        `env:"REDIRECT_URL"`
	Scopes       []string      `env:"SCOPES"          envDefault:"read:users read:organizations read:apps read:transactions" envSeparator:" "`
	Timeout      time.Duration `env:"TIMEOUT"         envDefault:"10s"`
	AllowedURLs  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func (o OAuth) GetPlatformURL() string {
	return trimURL(o.URL)
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}

func (o OAuth) GetPlatformTimeout() time.Duration {
	if o.Timeout <= 0 {
		return 10 * time.Second
	}
	return o.Timeout
}
