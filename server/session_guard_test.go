package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
	"github.com/jrsteele09/go-embedded-app/platform"
	"github.com/jrsteele09/go-embedded-app/session"
)

// A first visit without cookies goes to the install page.
func TestGuard_NoSessionRedirectsToInstall(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/install", rec.Header().Get("Location"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/reports?range=7d", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/install?returnTo=%2Freports%3Frange%3D7d", rec.Header().Get("Location"))
}

func TestGuard_ExemptPaths(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/install", "/auth/error", "/healthz", "/static/app.css", "/favicon.ico"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

// The platform opens the app with a bootstrap session.
func TestGuard_Bootstrap(t *testing.T) {
	const query = "?session_token=tok-1&installation_id=inst-1&platform_url=https://platform.test&embed_mode=true&user_id=u1&tab=2"

	t.Run("inside the iframe renders in place", func(t *testing.T) {
		h := newHarness(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
		req.Header.Set("Sec-Fetch-Dest", "iframe")

		rec := h.do(req)

		require.Equal(t, http.StatusOK, rec.Code)
		got := cookieMap(rec)
		assert.Equal(t, "tok-1", got[session.CookieAccessToken].Value)
		assert.Equal(t, "true", got[session.CookieEmbedMode].Value)
		assert.Equal(t, "inst-1", got[session.CookieInstallationID].Value)
		assert.Equal(t, "u1", got[session.CookieUserID].Value)
	})

	t.Run("top level redirects to the clean path", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/"+query, nil))

		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/?tab=2", rec.Header().Get("Location"))
		assert.Equal(t, "tok-1", cookieMap(rec)[session.CookieAccessToken].Value)
	})

	t.Run("disallowed platform is ignored", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(httptest.NewRequest(http.MethodGet, "/?session_token=tok-1&installation_id=inst-1&platform_url=https://evil.test", nil))

		require.Equal(t, http.StatusFound, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/install"))
		assertNoSession(t, rec)
	})
}

func TestGuard_EmbedRouting(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		dest     string
		status   int
		location string
	}{
		{"top level without fetch metadata", "/reports", "", http.StatusFound, "https://platform.test/dashboard/apps/inst-1/view/reports"},
		{"top level document", "/reports?range=7d", "document", http.StatusFound, "https://platform.test/dashboard/apps/inst-1/view/reports?range=7d"},
		{"home", "/", "document", http.StatusFound, "https://platform.test/dashboard/apps/inst-1/view/"},
		{"inside the iframe", "/", "iframe", http.StatusOK, ""},
		{"script fetch", "/", "empty", http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			req := withCookies(httptest.NewRequest(http.MethodGet, tc.path, nil), h.sessionCookies(embeddedSession("u1"))...)
			if tc.dest != "" {
				req.Header.Set("Sec-Fetch-Dest", tc.dest)
			}
			req.Header.Set("Referer", testPlatformURL+"/dashboard/apps/inst-1/view")

			rec := h.do(req)

			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}

func TestGuard_StandalonePassesThrough(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), h.sessionCookies(standaloneSession("u1"))...))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "u1")
}

func TestGuard_RefreshesExpiredAccessToken(t *testing.T) {
	h := newHarness(t, nil)
	sc := standaloneSession("u1")
	sc.AccessToken = ""
	sc.AuthStatus = session.StatusDisconnected
	h.platform.EXPECT().Refresh(gomock.Any(), "refresh-u1").Return(&platform.Result{
		AccessToken: "access-new",
		ExpiresAt:   time.Now().Add(time.Hour),
		GrantType:   platform.RefreshTokenGrant,
	}, nil).Times(1)

	rec := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), h.sessionCookies(sc)...))

	require.Equal(t, http.StatusOK, rec.Code)
	got := cookieMap(rec)
	assert.Equal(t, "access-new", got[session.CookieAccessToken].Value)
	assert.Equal(t, "refresh-u1", got[session.CookieRefreshToken].Value, "refresh token is kept when not rotated")
	assert.Equal(t, "connected", got[session.CookieAuthStatus].Value)
}

func TestGuard_FailedRefreshSendsToInstall(t *testing.T) {
	h := newHarness(t, nil)
	sc := standaloneSession("u1")
	sc.AccessToken = ""
	sc.AuthStatus = session.StatusDisconnected
	h.platform.EXPECT().Refresh(gomock.Any(), "refresh-u1").Return(nil, apperrors.ErrTokenExchange)

	rec := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), h.sessionCookies(sc)...))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/install", rec.Header().Get("Location"))
	assertCleared(t, rec, session.CookieRefreshToken)
}

func TestGuard_RevokedSessionIsReset(t *testing.T) {
	h := newHarness(t, nil)
	cookies := h.sessionCookies(standaloneSession("u1"))
	revoke(t, h.store, "u1")

	rec := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), cookies...))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/install", rec.Header().Get("Location"))
	assertCleared(t, rec, session.CookieAccessToken, session.CookieAuthStatus)

	revoked, err := h.store.IsRevoked(t.Context(), "u1")
	require.NoError(t, err)
	assert.False(t, revoked, "the flag is consumed by the first observer")
}
