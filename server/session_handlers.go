package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
	"github.com/jrsteele09/go-embedded-app/platform"
	"github.com/jrsteele09/go-embedded-app/session"
)

// Reasons reported by the status endpoint when the session ends.
const (
	reasonRevoked             = "Session revoked"
	reasonSessionInvalid      = "Platform session invalid"
	reasonNotInstalled        = "App not installed"
	reasonPlatformUnreachable = "Platform unreachable"
)

// StatusResponse is the body of GET /api/session/status.
type StatusResponse struct {
	Connected bool           `json:"connected"`
	Revoked   bool           `json:"revoked,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	User      *platform.User `json:"user,omitempty"`
}

type refreshResponse struct {
	Connected bool      `json:"connected"`
	UserID    string    `json:"userId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// SessionStatusHandler confirms the session with the revocation store and the platform.
// Any doubt ends the session: cookies are cleared and revoked is reported.
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)
		sc := s.codec.Read(r)

		if sc.AccessToken == "" {
			s.codec.Clear(w, r)
			s.metrics.StatusCheck("no_session")
			writeJSON(w, r, http.StatusOK, StatusResponse{Revoked: true})
			return
		}

		userID := session.ResolveUserID(sc)
		if s.observeRevocation(ctx, sc) {
			s.endSession(w, r, userID, "revoked")
			writeJSON(w, r, http.StatusOK, StatusResponse{Revoked: true, Reason: reasonRevoked})
			return
		}

		v, err := s.platform.Verify(ctx, sc.PlatformURL, sc.AccessToken)
		if reason := verificationFailure(v, err); reason != "" {
			logger.Info().Err(err).Str("user", userID).Str("reason", reason).Msg("session no longer valid")
			s.endSession(w, r, userID, "invalid")
			writeJSON(w, r, http.StatusOK, StatusResponse{Revoked: true, Reason: reason})
			return
		}

		s.startRealtime(r, sc)
		s.metrics.StatusCheck("connected")
		writeJSON(w, r, http.StatusOK, StatusResponse{
			Connected: true,
			UserID:    firstNonEmpty(v.UserID, userID),
			User:      v.User,
		})
	}
}

func verificationFailure(v *platform.Verification, err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrPlatformUnreachable):
		return reasonPlatformUnreachable
	case err != nil:
		return reasonSessionInvalid
	case v == nil || !v.Installed:
		return reasonNotInstalled
	}
	return ""
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request, userID, result string) {
	s.codec.Clear(w, r)
	s.stopRealtime(userID)
	s.metrics.StatusCheck(result)
}

// DisconnectHandler logs the user out of this app and tells the platform over the realtime channel.
func (s *Server) DisconnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := s.codec.Read(r)
		userID := session.ResolveUserID(sc)
		if s.realtime != nil && userID != "" {
			if ch, ok := s.realtime.Get(userID); ok {
				if err := ch.EmitLogout(); err != nil {
					zerolog.Ctx(r.Context()).Debug().Err(err).Msg("logout notification not sent")
				}
			}
		}
		s.stopRealtime(userID)
		s.codec.Clear(w, r)
		zerolog.Ctx(r.Context()).Info().Str("user", userID).Msg("session disconnected")
		writeJSON(w, r, http.StatusOK, StatusResponse{})
	}
}

// RefreshHandler renews the access token from the refresh token cookie.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := s.codec.Read(r)
		if sc.RefreshToken == "" {
			writeJSON(w, r, http.StatusUnauthorized, refreshResponse{Error: apperrors.Sanitize(apperrors.ErrNotConnected)})
			return
		}
		refreshed, err := s.refreshSession(w, r, sc)
		if err != nil {
			zerolog.Ctx(r.Context()).Info().Err(err).Msg("refresh failed")
			writeJSON(w, r, http.StatusUnauthorized, refreshResponse{Error: apperrors.Sanitize(err)})
			return
		}
		writeJSON(w, r, http.StatusOK, refreshResponse{
			Connected: true,
			UserID:    session.ResolveUserID(refreshed),
			ExpiresAt: refreshed.ExpiresAt,
		})
	}
}
