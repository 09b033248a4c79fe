package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-embedded-app/realtime"
	"github.com/jrsteele09/go-embedded-app/session"
)

const maxErrorMessageLen = 200

// redirectWithError sends the browser to the error page with a message that is safe to display.
func redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, errorPagePath(message), http.StatusSeeOther)
}

func errorPagePath(message string) string {
	return RouteAuthError + "?message=" + url.QueryEscape(truncate(message, maxErrorMessageLen))
}

func redirectToInstall(w http.ResponseWriter, r *http.Request) {
	target := RouteInstall
	if returnTo := session.SafeReturnTo(r.URL.RequestURI()); returnTo != "" && returnTo != RouteHome {
		target += "?returnTo=" + url.QueryEscape(returnTo)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// isIframeRequest reports whether the browser is loading the page inside a frame.
func isIframeRequest(r *http.Request) bool {
	return r.Header.Get("Sec-Fetch-Dest") == "iframe"
}

// isTopLevelNavigation is true for document loads and for browsers that send no fetch metadata.
func isTopLevelNavigation(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Dest") {
	case "", "document", "navigate":
		return true
	}
	return false
}

// referredByPlatform reports whether the request came from a page on sc's platform.
func referredByPlatform(r *http.Request, sc session.Context) bool {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host == "" {
		return false
	}
	p, err := url.Parse(sc.PlatformURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(ref.Scheme, p.Scheme) && strings.EqualFold(ref.Host, p.Host)
}

func appendQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logRequestError(r, err, "failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func logRequestError(r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

// startRealtime opens the push channel for a standalone session. Embedded sessions never get one.
func (s *Server) startRealtime(r *http.Request, sc session.Context) *realtime.Channel {
	if s.realtime == nil || sc.EmbedMode || !sc.Connected() {
		return nil
	}
	platformURL := sc.PlatformURL
	if platformURL == "" {
		platformURL = s.platform.PlatformURL()
	}
	ch, err := s.realtime.Start(platformURL, realtime.Credentials{
		UserID:         session.ResolveUserID(sc),
		InstallationID: sc.InstallationID,
		AccessToken:    sc.AccessToken,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("realtime channel not started")
		return nil
	}
	return ch
}

func (s *Server) stopRealtime(userID string) {
	if s.realtime == nil || userID == "" {
		return
	}
	s.realtime.Stop(userID)
}
