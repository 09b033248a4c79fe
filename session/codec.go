package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-embedded-app/internal/config"
)

// Session cookies.
const (
	CookieAccessToken    = "access_token"
	CookieRefreshToken   = "refresh_token"
	CookieAuthStatus     = "auth_status"
	CookieInstallationID = "installation_id"
	CookiePlatformURL    = "platform_url"
	CookieEmbedMode      = "embed_mode"
	CookieUserID         = "user_id"
)

// Install flow cookies, all short lived.
const (
	CookieState                 = "oauth_state"
	CookiePendingInstallationID = "pending_installation_id"
	CookiePendingPlatformURL    = "pending_platform_url"
	CookiePendingEmbedMode      = "pending_embed_mode"
	CookiePendingUserID         = "pending_user_id"
	CookiePendingReturnTo       = "pending_return_to"
)

// Bootstrap query parameters the platform appends when it opens the app.
const (
	ParamSessionToken   = "session_token"
	ParamInstallationID = "installation_id"
	ParamPlatformURL    = "platform_url"
	ParamEmbedMode      = "embed_mode"
	ParamUserID         = "user_id"
)

var (
	sessionCookies = []string{
		CookieAccessToken, CookieRefreshToken, CookieAuthStatus,
		CookieInstallationID, CookiePlatformURL, CookieEmbedMode, CookieUserID,
	}
	pendingCookies = []string{
		CookieState, CookiePendingInstallationID, CookiePendingPlatformURL,
		CookiePendingEmbedMode, CookiePendingUserID, CookiePendingReturnTo,
	}
	bootstrapParams = []string{ParamSessionToken, ParamInstallationID, ParamPlatformURL, ParamEmbedMode, ParamUserID}
)

// Config is the subset of application configuration the codec needs.
type Config interface {
	config.SecurityConfig
	GetAllowedPlatformURLs() []string
}

// Codec is the only reader and writer of session cookies.
type Codec struct {
	secure     bool
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
	contextTTL time.Duration
	stateTTL   time.Duration
	sealer     *sealer
	allowed    map[string]struct{}
	now        func() time.Time
}

// Pending holds the installation parameters stashed between the connect
// redirect and the OAuth callback.
type Pending struct {
	InstallationID string
	PlatformURL    string
	EmbedMode      bool
	UserID         string
	ReturnTo       string
}

func NewCodec(cfg Config) (*Codec, error) {
	c := &Codec{
		secure:     cfg.GetCookieSecure(),
		sameSite:   cfg.GetCookieSameSite(),
		accessTTL:  cfg.GetAccessCookieTTL(),
		refreshTTL: cfg.GetRefreshCookieTTL(),
		contextTTL: cfg.GetContextCookieTTL(),
		stateTTL:   cfg.GetStateTTL(),
		allowed:    make(map[string]struct{}),
		now:        time.Now,
	}
	for _, raw := range cfg.GetAllowedPlatformURLs() {
		if u, ok := NormalizePlatformURL(raw); ok {
			c.allowed[u] = struct{}{}
		}
	}
	if secret := cfg.GetCookieSecret(); secret != "" {
		s, err := newSealer(secret)
		if err != nil {
			return nil, err
		}
		c.sealer = s
	}
	return c, nil
}

// Read parses the session cookies. Missing, unsealable or disallowed values read as empty.
func (c *Codec) Read(r *http.Request) Context {
	sc := Context{
		AccessToken:    c.secretValue(r, CookieAccessToken),
		RefreshToken:   c.secretValue(r, CookieRefreshToken),
		UserID:         cookieValue(r, CookieUserID),
		InstallationID: cookieValue(r, CookieInstallationID),
		EmbedMode:      cookieValue(r, CookieEmbedMode) == "true",
		AuthStatus:     StatusDisconnected,
	}
	sc.PlatformURL, _ = c.AllowedPlatformURL(cookieValue(r, CookiePlatformURL))
	if cookieValue(r, CookieAuthStatus) == string(StatusConnected) {
		sc.AuthStatus = StatusConnected
	}
	return sc
}

// Write persists sc. Nothing is written when sc is invalid.
func (c *Codec) Write(w http.ResponseWriter, r *http.Request, sc Context) error {
	if sc.PlatformURL != "" {
		sc.PlatformURL, _ = c.AllowedPlatformURL(sc.PlatformURL)
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("[session Write] %w", err)
	}

	accessAge := c.accessTTL
	if !sc.ExpiresAt.IsZero() {
		if until := sc.ExpiresAt.Sub(c.now()); until < accessAge {
			accessAge = until
		}
	}
	if accessAge < time.Second {
		sc.AccessToken = ""
		sc.AuthStatus = StatusDisconnected
	}

	access, err := c.sealValue(CookieAccessToken, sc.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := c.sealValue(CookieRefreshToken, sc.RefreshToken)
	if err != nil {
		return err
	}

	c.setOrExpire(w, r, CookieAccessToken, access, accessAge, true)
	c.setOrExpire(w, r, CookieRefreshToken, refresh, c.refreshTTL, true)
	if sc.Connected() {
		c.set(w, r, CookieAuthStatus, string(StatusConnected), accessAge, false)
	} else {
		c.expire(w, r, CookieAuthStatus, false)
	}
	c.setOrExpire(w, r, CookieInstallationID, sc.InstallationID, c.contextTTL, false)
	c.setOrExpire(w, r, CookiePlatformURL, sc.PlatformURL, c.contextTTL, false)
	c.set(w, r, CookieEmbedMode, fmt.Sprint(sc.EmbedMode), c.contextTTL, false)
	c.setOrExpire(w, r, CookieUserID, sc.UserID, c.contextTTL, true)
	return nil
}

// Clear expires every session cookie in one response.
func (c *Codec) Clear(w http.ResponseWriter, r *http.Request) {
	for _, name := range sessionCookies {
		c.expire(w, r, name, httpOnlySessionCookie(name))
	}
}

func httpOnlySessionCookie(name string) bool {
	return name == CookieAccessToken || name == CookieRefreshToken || name == CookieUserID
}

func (c *Codec) WriteState(w http.ResponseWriter, r *http.Request, state string) error {
	sealed, err := c.sealValue(CookieState, state)
	if err != nil {
		return err
	}
	c.set(w, r, CookieState, sealed, c.stateTTL, true)
	return nil
}

func (c *Codec) ReadState(r *http.Request) string {
	return c.secretValue(r, CookieState)
}

func (c *Codec) WritePending(w http.ResponseWriter, r *http.Request, p Pending) {
	p.PlatformURL, _ = c.AllowedPlatformURL(p.PlatformURL)
	p.ReturnTo = SafeReturnTo(p.ReturnTo)
	c.setOrExpire(w, r, CookiePendingInstallationID, p.InstallationID, c.stateTTL, true)
	c.setOrExpire(w, r, CookiePendingPlatformURL, p.PlatformURL, c.stateTTL, true)
	if p.EmbedMode {
		c.set(w, r, CookiePendingEmbedMode, "true", c.stateTTL, true)
	} else {
		c.expire(w, r, CookiePendingEmbedMode, true)
	}
	c.setOrExpire(w, r, CookiePendingUserID, p.UserID, c.stateTTL, true)
	c.setOrExpire(w, r, CookiePendingReturnTo, p.ReturnTo, c.stateTTL, true)
}

func (c *Codec) ReadPending(r *http.Request) Pending {
	p := Pending{
		InstallationID: cookieValue(r, CookiePendingInstallationID),
		EmbedMode:      cookieValue(r, CookiePendingEmbedMode) == "true",
		UserID:         cookieValue(r, CookiePendingUserID),
		ReturnTo:       SafeReturnTo(cookieValue(r, CookiePendingReturnTo)),
	}
	p.PlatformURL, _ = c.AllowedPlatformURL(cookieValue(r, CookiePendingPlatformURL))
	return p
}

// ClearPending expires the state cookie and every pending cookie.
func (c *Codec) ClearPending(w http.ResponseWriter, r *http.Request) {
	for _, name := range pendingCookies {
		c.expire(w, r, name, true)
	}
}

// HasBootstrapParams reports whether the platform handed over a session in the query.
func HasBootstrapParams(q url.Values) bool {
	return q.Get(ParamSessionToken) != ""
}

// BootstrapFromQuery builds a connected context from the platform's bootstrap
// parameters. All of session_token, installation_id and an allowed
// platform_url are required.
func (c *Codec) BootstrapFromQuery(q url.Values) (Context, bool) {
	token := q.Get(ParamSessionToken)
	installationID := q.Get(ParamInstallationID)
	platformURL, allowed := c.AllowedPlatformURL(q.Get(ParamPlatformURL))
	if token == "" || installationID == "" || !allowed {
		return Context{}, false
	}
	return Context{
		AccessToken:    token,
		UserID:         q.Get(ParamUserID),
		InstallationID: installationID,
		PlatformURL:    platformURL,
		EmbedMode:      q.Get(ParamEmbedMode) == "true",
		AuthStatus:     StatusConnected,
	}, true
}

// StripBootstrapParams returns the request path and query without bootstrap parameters.
func StripBootstrapParams(u *url.URL) string {
	q := u.Query()
	for _, p := range bootstrapParams {
		q.Del(p)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if encoded := q.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

// NormalizePlatformURL requires an http(s) URL with a host and drops any trailing slash, query or fragment.
func NormalizePlatformURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return strings.TrimSuffix(scheme+"://"+strings.ToLower(u.Host)+u.EscapedPath(), "/"), true
}

// AllowedPlatformURL normalises raw and checks it against the configured platforms.
func (c *Codec) AllowedPlatformURL(raw string) (string, bool) {
	u, ok := NormalizePlatformURL(raw)
	if !ok {
		return "", false
	}
	if _, ok := c.allowed[u]; !ok {
		return "", false
	}
	return u, true
}

// SafeReturnTo accepts only same-origin absolute paths. Anything else returns "".
func SafeReturnTo(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return raw
}

func (c *Codec) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge time.Duration, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   c.secure || r.TLS != nil,
		SameSite: c.sameSite,
		MaxAge:   int(maxAge / time.Second),
	})
}

func (c *Codec) setOrExpire(w http.ResponseWriter, r *http.Request, name, value string, maxAge time.Duration, httpOnly bool) {
	if value == "" {
		c.expire(w, r, name, httpOnly)
		return
	}
	c.set(w, r, name, value, maxAge, httpOnly)
}

func (c *Codec) expire(w http.ResponseWriter, r *http.Request, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   c.secure || r.TLS != nil,
		SameSite: c.sameSite,
		MaxAge:   -1,
	})
}

func (c *Codec) sealValue(name, value string) (string, error) {
	if c.sealer == nil || value == "" {
		return value, nil
	}
	return c.sealer.seal(name, value)
}

func (c *Codec) secretValue(r *http.Request, name string) string {
	v := cookieValue(r, name)
	if c.sealer == nil || v == "" {
		return v
	}
	plain, ok := c.sealer.open(name, v)
	if !ok {
		return ""
	}
	return plain
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
