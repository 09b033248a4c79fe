package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	AppName  string `env:"APP_NAME"  envDefault:"Embedded Analytics"`
	AppID    string `env:"APP_ID"    envDefault:"com.embedded.analytics"`
	Env      string `env:"ENV"       envDefault:"DEV"`
	BaseURL  string `env:"BASE_URL"  envDefault:"http://localhost:3001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetAppID is the identifier the platform uses for this app in verify calls, webhooks and realtime events.
func (e EnvVars) GetAppID() string {
	return e.AppID
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

// GetBaseURL returns the public base URL of this app (e.g., "https://analytics.example.com")
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
