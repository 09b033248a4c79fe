package session_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-embedded-app/internal/config"
	"github.com/jrsteele09/go-embedded-app/session"
)

const testPlatform = "http://platform.test"

func newCodec(t *testing.T, vars map[string]string) *session.Codec {
	t.Helper()
	all := map[string]string{"PLATFORM_URL": testPlatform}
	for k, v := range vars {
		all[k] = v
	}
	cfg, err := config.FromMap(all)
	require.NoError(t, err)
	c, err := session.NewCodec(cfg)
	require.NoError(t, err)
	return c
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// carry builds a follow-up request bearing the live cookies set on rec.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return r
}

func connectedContext() session.Context {
	return session.Context{
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		UserID:         "u1",
		InstallationID: "inst-1",
		PlatformURL:    testPlatform,
		EmbedMode:      true,
		AuthStatus:     session.StatusConnected,
	}
}

func TestCodec_WriteRead(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), connectedContext()))

	cookies := cookiesByName(rec)
	require.Contains(t, cookies, session.CookieAccessToken)
	assert.True(t, cookies[session.CookieAccessToken].HttpOnly)
	assert.True(t, cookies[session.CookieRefreshToken].HttpOnly)
	assert.False(t, cookies[session.CookieAuthStatus].HttpOnly, "auth_status is script readable")
	assert.False(t, cookies[session.CookieInstallationID].HttpOnly)
	assert.True(t, cookies[session.CookieUserID].HttpOnly, "the revocation key is not script writable")
	assert.Equal(t, "connected", cookies[session.CookieAuthStatus].Value)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookies[session.CookieAccessToken].MaxAge)
	assert.Equal(t, int((720 * time.Hour).Seconds()), cookies[session.CookieRefreshToken].MaxAge)

	got := c.Read(carry(rec))
	assert.Equal(t, connectedContext(), got)
	assert.True(t, got.Connected())
}

func TestCodec_ReadEmpty(t *testing.T) {
	c := newCodec(t, nil)
	got := c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, session.StatusDisconnected, got.AuthStatus)
	assert.False(t, got.Connected())
}

func TestCodec_WriteRejectsIncompleteEmbed(t *testing.T) {
	c := newCodec(t, nil)

	tests := []struct {
		name string
		sc   session.Context
	}{
		{name: "missing installation", sc: session.Context{AccessToken: "a", AuthStatus: session.StatusConnected, EmbedMode: true, PlatformURL: testPlatform}},
		{name: "missing platform", sc: session.Context{AccessToken: "a", AuthStatus: session.StatusConnected, EmbedMode: true, InstallationID: "i"}},
		{name: "platform not allowed", sc: session.Context{AccessToken: "a", AuthStatus: session.StatusConnected, EmbedMode: true, InstallationID: "i", PlatformURL: "http://evil.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			err := c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.sc)
			require.ErrorIs(t, err, session.ErrEmbedIncomplete)
			assert.Empty(t, rec.Result().Cookies(), "nothing may be written for an invalid context")
		})
	}
}

func TestCodec_WriteDropsDisallowedPlatform(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	sc := session.Context{AccessToken: "a", AuthStatus: session.StatusConnected, PlatformURL: "http://evil.test"}
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), sc))

	assert.Empty(t, c.Read(carry(rec)).PlatformURL)
}

func TestCodec_AccessCookieCappedByExpiry(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	sc := connectedContext()
	sc.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), sc))

	maxAge := cookiesByName(rec)[session.CookieAccessToken].MaxAge
	assert.InDelta(t, 3600, maxAge, 5)
}

func TestCodec_ExpiredTokenIsNotPersisted(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	sc := connectedContext()
	sc.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), sc))

	got := c.Read(carry(rec))
	assert.False(t, got.Connected())
	assert.Equal(t, "refresh-1", got.RefreshToken)
}

func TestCodec_Clear(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	c.Clear(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := cookiesByName(rec)
	for _, name := range []string{
		session.CookieAccessToken, session.CookieRefreshToken, session.CookieAuthStatus,
		session.CookieInstallationID, session.CookiePlatformURL, session.CookieEmbedMode, session.CookieUserID,
	} {
		require.Contains(t, cookies, name)
		assert.Less(t, cookies[name].MaxAge, 0, name)
	}
}

func TestCodec_SecureFlags(t *testing.T) {
	c := newCodec(t, map[string]string{"COOKIE_SAMESITE": "none"})
	rec := httptest.NewRecorder()
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), connectedContext()))

	for _, ck := range rec.Result().Cookies() {
		assert.True(t, ck.Secure, ck.Name)
		assert.Equal(t, http.SameSiteNoneMode, ck.SameSite, ck.Name)
	}
}

func TestCodec_Sealing(t *testing.T) {
	c := newCodec(t, map[string]string{"COOKIE_SECRET": "0123456789abcdef0123456789abcdef"})
	rec := httptest.NewRecorder()
	require.NoError(t, c.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), connectedContext()))

	cookies := cookiesByName(rec)
	assert.NotEqual(t, "access-1", cookies[session.CookieAccessToken].Value)
	assert.Equal(t, "inst-1", cookies[session.CookieInstallationID].Value, "non-secret cookies stay readable")
	assert.Equal(t, "access-1", c.Read(carry(rec)).AccessToken)

	t.Run("tampered value reads as absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session.CookieAccessToken, Value: cookies[session.CookieAccessToken].Value + "AA"})
		assert.Empty(t, c.Read(r).AccessToken)
	})

	t.Run("value moved to another cookie reads as absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: session.CookieRefreshToken, Value: cookies[session.CookieAccessToken].Value})
		assert.Empty(t, c.Read(r).RefreshToken)
	})

	t.Run("other secret cannot open", func(t *testing.T) {
		other := newCodec(t, map[string]string{"COOKIE_SECRET": "another-secret"})
		assert.Empty(t, other.Read(carry(rec)).AccessToken)
	})
}

func TestCodec_StateAndPending(t *testing.T) {
	c := newCodec(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	state, err := session.NewState()
	require.NoError(t, err)
	require.NoError(t, c.WriteState(rec, req, state))
	c.WritePending(rec, req, session.Pending{
		InstallationID: "inst-1",
		PlatformURL:    testPlatform + "/",
		EmbedMode:      true,
		UserID:         "u1",
		ReturnTo:       "/reports?range=7d",
	})

	cookies := cookiesByName(rec)
	assert.True(t, cookies[session.CookieState].HttpOnly)
	assert.Equal(t, 600, cookies[session.CookieState].MaxAge)
	assert.True(t, cookies[session.CookiePendingInstallationID].HttpOnly)

	next := carry(rec)
	assert.Equal(t, state, c.ReadState(next))
	assert.Equal(t, session.Pending{
		InstallationID: "inst-1",
		PlatformURL:    testPlatform,
		EmbedMode:      true,
		UserID:         "u1",
		ReturnTo:       "/reports?range=7d",
	}, c.ReadPending(next))

	clearRec := httptest.NewRecorder()
	c.ClearPending(clearRec, next)
	cleared := cookiesByName(clearRec)
	for _, name := range []string{
		session.CookieState, session.CookiePendingInstallationID, session.CookiePendingPlatformURL,
		session.CookiePendingEmbedMode, session.CookiePendingUserID, session.CookiePendingReturnTo,
	} {
		require.Contains(t, cleared, name)
		assert.Less(t, cleared[name].MaxAge, 0, name)
	}
}

func TestCodec_PendingDropsUnsafeReturnTo(t *testing.T) {
	c := newCodec(t, nil)
	rec := httptest.NewRecorder()
	c.WritePending(rec, httptest.NewRequest(http.MethodGet, "/", nil), session.Pending{ReturnTo: "//evil.test/x"})
	assert.Empty(t, c.ReadPending(carry(rec)).ReturnTo)
}

func TestCodec_BootstrapFromQuery(t *testing.T) {
	c := newCodec(t, nil)

	tests := []struct {
		name   string
		query  string
		wantOK bool
		want   session.Context
	}{
		{
			name:   "embedded",
			query:  "embed_mode=true&session_token=T&installation_id=I&platform_url=" + url.QueryEscape(testPlatform),
			wantOK: true,
			want: session.Context{
				AccessToken: "T", InstallationID: "I", PlatformURL: testPlatform,
				EmbedMode: true, AuthStatus: session.StatusConnected,
			},
		},
		{
			name:   "standalone with user",
			query:  "session_token=T&installation_id=I&user_id=u1&platform_url=" + url.QueryEscape(testPlatform+"/"),
			wantOK: true,
			want: session.Context{
				AccessToken: "T", InstallationID: "I", PlatformURL: testPlatform,
				UserID: "u1", AuthStatus: session.StatusConnected,
			},
		},
		{name: "no token", query: "installation_id=I&platform_url=" + url.QueryEscape(testPlatform)},
		{name: "no installation", query: "session_token=T&platform_url=" + url.QueryEscape(testPlatform)},
		{name: "platform not allowed", query: "session_token=T&installation_id=I&platform_url=" + url.QueryEscape("http://evil.test")},
		{name: "platform not a url", query: "session_token=T&installation_id=I&platform_url=javascript:alert(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, ok := c.BootstrapFromQuery(q)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
				assert.NoError(t, got.Validate())
			}
		})
	}
}

func TestStripBootstrapParams(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/?embed_mode=true&session_token=T&installation_id=I&platform_url=P", want: "/"},
		{in: "/reports?session_token=T&range=7d&user_id=u1", want: "/reports?range=7d"},
		{in: "/plain", want: "/plain"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, session.StripBootstrapParams(u), tt.in)
	}
}

func TestSafeReturnTo(t *testing.T) {
	assert.Equal(t, "/reports", session.SafeReturnTo("/reports"))
	assert.Equal(t, "/a?b=c", session.SafeReturnTo("/a?b=c"))
	assert.Empty(t, session.SafeReturnTo(""))
	assert.Empty(t, session.SafeReturnTo("reports"))
	assert.Empty(t, session.SafeReturnTo("//evil.test"))
	assert.Empty(t, session.SafeReturnTo("/\\evil.test"))
	assert.Empty(t, session.SafeReturnTo("https://evil.test/"))
}

func TestNormalizePlatformURL(t *testing.T) {
	got, ok := session.NormalizePlatformURL(" HTTP://Platform.Test/ ")
	require.True(t, ok)
	assert.Equal(t, "http://platform.test", got)

	_, ok = session.NormalizePlatformURL("platform.test")
	assert.False(t, ok)
	_, ok = session.NormalizePlatformURL("ftp://platform.test")
	assert.False(t, ok)
}

func TestNewState(t *testing.T) {
	a, err := session.NewState()
	require.NoError(t, err)
	b, err := session.NewState()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
