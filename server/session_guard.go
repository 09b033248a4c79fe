package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
	"github.com/jrsteele09/go-embedded-app/revocation"
	"github.com/jrsteele09/go-embedded-app/session"
)

// Guard decisions, also used as metric labels.
const (
	guardExempt         = "exempt"
	guardBootstrapFrame = "bootstrap_iframe"
	guardBootstrapClean = "bootstrap_redirect"
	guardRefreshed      = "refreshed"
	guardInstall        = "install"
	guardRevoked        = "revoked"
	guardEmbedFrame     = "embed_iframe"
	guardEmbedRedirect  = "embed_redirect"
	guardPass           = "pass"
)

func isGuardExempt(path string) bool {
	for _, prefix := range guardExemptPrefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

// SessionGuard decides, for every page request, whether to render, redirect to the
// platform's embed view or send the user to the install page. The session is placed
// on the request context for the next handler.
func (s *Server) SessionGuard() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())
			if isGuardExempt(r.URL.Path) {
				s.metrics.GuardDecision(guardExempt)
				next(w, r)
				return
			}

			// 1. The platform handed over a session in the URL.
			if session.HasBootstrapParams(r.URL.Query()) {
				if sc, ok := s.codec.BootstrapFromQuery(r.URL.Query()); ok {
					if err := s.codec.Write(w, r, sc); err != nil {
						logger.Warn().Err(err).Msg("bootstrap session rejected")
					} else if isIframeRequest(r) {
						s.metrics.GuardDecision(guardBootstrapFrame)
						next(w, r.WithContext(session.WithContext(r.Context(), sc)))
						return
					} else {
						s.metrics.GuardDecision(guardBootstrapClean)
						http.Redirect(w, r, session.StripBootstrapParams(r.URL), http.StatusFound)
						return
					}
				} else {
					logger.Warn().Msg("ignoring incomplete bootstrap parameters")
				}
			}

			sc := s.codec.Read(r)

			// 2. No usable access token: refresh if possible, otherwise install.
			if !sc.Connected() {
				if sc.RefreshToken == "" {
					s.metrics.GuardDecision(guardInstall)
					redirectToInstall(w, r)
					return
				}
				refreshed, err := s.refreshSession(w, r, sc)
				if err != nil {
					logger.Info().Err(err).Msg("session refresh failed")
					s.metrics.GuardDecision(guardInstall)
					redirectToInstall(w, r)
					return
				}
				s.metrics.GuardDecision(guardRefreshed)
				sc = refreshed
			}

			if s.observeRevocation(r.Context(), sc) {
				s.codec.Clear(w, r)
				s.metrics.GuardDecision(guardRevoked)
				redirectToInstall(w, r)
				return
			}

			if sc.EmbedMode && sc.InstallationID != "" && sc.PlatformURL != "" {
				// 3. Rendered inside the platform's frame.
				if isIframeRequest(r) {
					if !referredByPlatform(r, sc) {
						logger.Debug().Str("referer", r.Referer()).Msg("framed request without platform referrer")
					}
					s.metrics.GuardDecision(guardEmbedFrame)
					next(w, r.WithContext(session.WithContext(r.Context(), sc)))
					return
				}
				// 4. Opened directly: send the user back into the platform.
				if isTopLevelNavigation(r) {
					s.metrics.GuardDecision(guardEmbedRedirect)
					http.Redirect(w, r, sc.EmbedURL(embedPath(r)), http.StatusFound)
					return
				}
			}

			// 5.
			s.metrics.GuardDecision(guardPass)
			next(w, r.WithContext(session.WithContext(r.Context(), sc)))
		}
	}
}

func embedPath(r *http.Request) string {
	path := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return path
}

// observeRevocation consumes the user's revocation flag. Store errors are logged and
// treated as not revoked; the status endpoint still verifies with the platform.
func (s *Server) observeRevocation(ctx context.Context, sc session.Context) bool {
	userID := session.ResolveUserID(sc)
	revoked, err := revocation.Observe(ctx, s.store, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user", userID).Msg("revocation store unavailable")
		return false
	}
	if revoked {
		zerolog.Ctx(ctx).Info().Str("user", userID).Msg("session revoked")
		s.stopRealtime(userID)
	}
	return revoked
}

// refreshSession swaps the refresh token for a new access token and rewrites the
// session. On failure the session is cleared.
func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request, sc session.Context) (session.Context, error) {
	result, err := s.platform.Refresh(r.Context(), sc.RefreshToken)
	if err != nil {
		s.codec.Clear(w, r)
		return sc.Disconnected(), err
	}
	sc.AccessToken = result.AccessToken
	if result.RefreshToken != "" {
		sc.RefreshToken = result.RefreshToken
	}
	sc.ExpiresAt = result.ExpiresAt
	sc.AuthStatus = session.StatusConnected
	if uid := result.UserID(); uid != "" {
		sc.UserID = uid
	}
	if !sc.ExpiresAt.IsZero() && time.Until(sc.ExpiresAt) < time.Second {
		s.codec.Clear(w, r)
		return sc.Disconnected(), apperrors.Wrapf(apperrors.ErrNotConnected, "[Server refreshSession] refreshed token already expired")
	}
	if err := s.codec.Write(w, r, sc); err != nil {
		s.codec.Clear(w, r)
		return sc.Disconnected(), apperrors.Wrapf(apperrors.ErrInternal, "[Server refreshSession] %v", err)
	}
	return sc, nil
}
