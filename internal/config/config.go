package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	PlatformConfig
	SecurityConfig
	CorsConfig
	StoreConfig
	RealtimeConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAppID() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// defaultCallbackPath must match the server's callback route.
const defaultCallbackPath = "/api/auth/callback"

type mainConfig struct {
	EnvVars
	OAuth    `envPrefix:"PLATFORM_"`
	Security
	Store
	Realtime `envPrefix:"REALTIME_"`
}

var _ Config = mainConfig{}

// Load reads an optional .env file and then parses the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("[config Load] load .env file: %w", err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses configuration from vars only, ignoring the process environment.
// Missing keys take their defaults.
func FromMap(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config Load] parse environment: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	if _, err := url.ParseRequestURI(c.OAuth.URL); err != nil {
		return fmt.Errorf("[config validate] invalid PLATFORM_URL %q: %w", c.OAuth.URL, err)
	}
	if _, err := url.ParseRequestURI(c.EnvVars.BaseURL); err != nil {
		return fmt.Errorf("[config validate] invalid BASE_URL %q: %w", c.EnvVars.BaseURL, err)
	}
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverSQLite, StoreDriverPostgres:
	default:
		return fmt.Errorf("[config validate] unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreDriverPostgres && c.Store.DatabaseURL == "" {
		return errors.New("[config validate] DATABASE_URL is required for the postgres store")
	}
	return nil
}

// GetClientID falls back to the app id, which is how the platform registers installable apps.
func (c mainConfig) GetClientID() string {
	if c.OAuth.ClientID != "" {
		return c.OAuth.ClientID
	}
	return c.EnvVars.AppID
}

func (c mainConfig) GetRedirectURL() string {
	if c.OAuth.RedirectURL != "" {
		return c.OAuth.RedirectURL
	}
	return strings.TrimSuffix(c.EnvVars.BaseURL, "/") + defaultCallbackPath
}

// GetAllowedPlatformURLs returns the configured platform URL followed by any extra allowed platform URLs.
func (c mainConfig) GetAllowedPlatformURLs() []string {
	urls := []string{trimURL(c.OAuth.URL)}
	for _, u := range c.OAuth.AllowedURLs {
		u = trimURL(u)
		if u == "" || u == urls[0] {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func (c mainConfig) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, u := range c.GetAllowedPlatformURLs() {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			continue
		}
		origins[parsed.Scheme+"://"+parsed.Host] = nullValue{}
	}
	return origins
}

func (c mainConfig) GetCookieSecure() bool {
	return c.EnvVars.Env == "PROD" ||
		strings.HasPrefix(c.EnvVars.BaseURL, "https://") ||
		c.Security.GetCookieSameSite() == sameSiteNone
}

func trimURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
