// Package platform is the HTTP client for the host platform's OAuth and
// installation APIs. Every call has a timeout and every failure is reported
// as one of the protocol errors in internal/errors.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-embedded-app/internal/config"
	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
)

// Config is the subset of application configuration the client needs.
type Config interface {
	config.PlatformConfig
	GetAppID() string
}

// Client talks to a single configured platform. Verify may target another
// allow-listed platform URL taken from the session.
type Client struct {
	appID       string
	platformURL string
	oauth       *oauth2.Config
	httpClient  *http.Client
	keySet      oidc.KeySet
	verifier    *oidc.IDTokenVerifier
	refreshes   singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its timeout is kept as given.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithKeySet overrides the remote JWKS used to verify id_tokens.
func WithKeySet(ks oidc.KeySet) Option {
	return func(cl *Client) {
		cl.keySet = ks
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	platformURL := strings.TrimSuffix(cfg.GetPlatformURL(), "/")
	scopes := cfg.GetScopes()
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	timeout := cfg.GetPlatformTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		appID:       cfg.GetAppID(),
		platformURL: platformURL,
		httpClient:  &http.Client{Timeout: timeout},
		oauth: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			RedirectURL:  cfg.GetRedirectURL(),
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   platformURL + authorizePath,
				TokenURL:  platformURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keySet == nil {
		c.keySet = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), c.httpClient), platformURL+jwksPath)
	}
	c.verifier = oidc.NewVerifier(platformURL, c.keySet, &oidc.Config{ClientID: c.oauth.ClientID})
	return c
}

func (c *Client) PlatformURL() string {
	return c.platformURL
}

func (c *Client) AppID() string {
	return c.appID
}

// AuthorizationURL builds the platform authorize URL. The extra params travel
// inside redirect_uri so the callback receives them back.
func (c *Client) AuthorizationURL(state string, extra ExtraParams) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("redirect_uri", c.redirectURI(extra)))
}

func (c *Client) redirectURI(extra ExtraParams) string {
	u, err := url.Parse(c.oauth.RedirectURL)
	if err != nil {
		return c.oauth.RedirectURL
	}
	q := u.Query()
	if extra.InstallationID != "" {
		q.Set("installation_id", extra.InstallationID)
	}
	if extra.PlatformURL != "" {
		q.Set("platform_url", extra.PlatformURL)
	}
	if extra.EmbedMode {
		q.Set("embed_mode", "true")
	}
	if extra.UserID != "" {
		q.Set("user_id", extra.UserID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCode performs the authorization_code grant.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Result, error) {
	if code == "" {
		return nil, fmt.Errorf("[platform ExchangeCode] %w", apperrors.ErrMissingCode)
	}
	ctx = c.clientContext(ctx)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, tokenError("ExchangeCode", err)
	}
	return c.result(ctx, tok, AuthorizationCodeGrant)
}

// Refresh performs the refresh_token grant. Concurrent calls for the same
// refresh token share one platform request.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("[platform Refresh] empty refresh token: %w", apperrors.ErrTokenExchange)
	}
	v, err, _ := c.refreshes.Do(refreshToken, func() (any, error) {
		rctx := c.clientContext(context.WithoutCancel(ctx))
		tok, err := c.oauth.TokenSource(rctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return nil, tokenError("Refresh", err)
		}
		return c.result(rctx, tok, RefreshTokenGrant)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Verify asks platformURL whether the app is still installed for accessToken.
// It fails closed: any error comes with Installed=false.
func (c *Client) Verify(ctx context.Context, platformURL, accessToken string) (*Verification, error) {
	notInstalled := &Verification{}
	if platformURL == "" {
		platformURL = c.platformURL
	}
	if accessToken == "" {
		return notInstalled, fmt.Errorf("[platform Verify] missing access token: %w", apperrors.ErrVerification)
	}

	body, err := json.Marshal(verifyRequest{AppID: c.appID, AccessToken: accessToken})
	if err != nil {
		return notInstalled, fmt.Errorf("[platform Verify] encode request: %w: %w", apperrors.ErrVerification, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(platformURL, "/")+verifyPath, bytes.NewReader(body))
	if err != nil {
		return notInstalled, fmt.Errorf("[platform Verify] build request: %w: %w", apperrors.ErrVerification, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var v Verification
	if err := c.doJSON(req, &v); err != nil {
		return notInstalled, fmt.Errorf("[platform Verify] %w", err)
	}
	return &v, nil
}

// UserInfo fetches the profile of the user who owns accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.platformURL+userInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("[platform UserInfo] build request: %w: %w", apperrors.ErrVerification, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var u User
	if err := c.doJSON(req, &u); err != nil {
		return nil, fmt.Errorf("[platform UserInfo] %w", err)
	}
	return &u, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrPlatformUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return fmt.Errorf("status %d: %w", resp.StatusCode, apperrors.ErrVerification)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		if isUnreachable(err) {
			return fmt.Errorf("%w: %w", apperrors.ErrPlatformUnreachable, err)
		}
		return fmt.Errorf("decode response: %w: %w", apperrors.ErrVerification, err)
	}
	return nil
}

// result resolves the user from, in order: the token response's user member,
// the userinfo endpoint, the verified id_token.
func (c *Client) result(ctx context.Context, tok *oauth2.Token, grant GrantType) (*Result, error) {
	res := &Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
		GrantType:    grant,
	}

	var idUser *User
	if raw, _ := tok.Extra("id_token").(string); raw != "" {
		u, err := c.verifyIDToken(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("[platform %s] id_token: %w: %w", grant, apperrors.ErrTokenExchange, err)
		}
		idUser = u
	}

	if u := userFromExtra(tok.Extra("user")); u != nil {
		res.User = u
		return res, nil
	}
	u, err := c.UserInfo(ctx, tok.AccessToken)
	if err == nil && u.ID != "" {
		res.User = u
		return res, nil
	}
	if err != nil {
		log.Debug().Err(err).Str("grant", string(grant)).Msg("user info lookup failed")
	}
	res.User = idUser
	return res, nil
}

func (c *Client) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func userFromExtra(v any) *User {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		return nil
	}
	return &u
}

func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("[platform %s] status %d: %w", op, status, apperrors.ErrTokenExchange)
	}
	if isUnreachable(err) {
		return fmt.Errorf("[platform %s] %w: %w: %w", op, apperrors.ErrTokenExchange, apperrors.ErrPlatformUnreachable, err)
	}
	return fmt.Errorf("[platform %s] %w: %w", op, apperrors.ErrTokenExchange, err)
}

func isUnreachable(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr)
}
