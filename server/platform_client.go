package server

import (
	"context"

	"github.com/jrsteele09/go-embedded-app/platform"
)

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=../internal/mocks/platform_client_mock.go github.com/jrsteele09/go-embedded-app/server PlatformClient

// PlatformClient is the part of platform.Client the handlers call.
type PlatformClient interface {
	AuthorizationURL(state string, extra platform.ExtraParams) string
	ExchangeCode(ctx context.Context, code string) (*platform.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*platform.Result, error)
	Verify(ctx context.Context, platformURL, accessToken string) (*platform.Verification, error)
	PlatformURL() string
}

var _ PlatformClient = (*platform.Client)(nil)
