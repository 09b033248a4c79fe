package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
	"github.com/jrsteele09/go-embedded-app/platform"
	"github.com/jrsteele09/go-embedded-app/session"
)

// CallbackState is a step of the OAuth callback.
type CallbackState int

const (
	CallbackReceived CallbackState = iota
	CallbackErrorInQuery
	CallbackStateMismatch
	CallbackCodeMissing
	CallbackExchanging
	CallbackVerifying
	CallbackPersisting
	CallbackDoneRedirect
	CallbackDoneError
)

var callbackStateNames = [...]string{
	CallbackReceived:      "received",
	CallbackErrorInQuery:  "error-in-query",
	CallbackStateMismatch: "state-mismatch",
	CallbackCodeMissing:   "code-missing",
	CallbackExchanging:    "exchanging",
	CallbackVerifying:     "verifying",
	CallbackPersisting:    "persisting",
	CallbackDoneRedirect:  "done-redirect",
	CallbackDoneError:     "done-error",
}

func (c CallbackState) String() string {
	if c < 0 || int(c) >= len(callbackStateNames) {
		return fmt.Sprintf("CallbackState(%d)", int(c))
	}
	return callbackStateNames[c]
}

// Terminal reports whether the callback has produced its response.
func (c CallbackState) Terminal() bool {
	return c == CallbackErrorInQuery || c == CallbackDoneRedirect || c == CallbackDoneError
}

// callbackParams are the installation parameters of the callback, taken from the query
// and falling back to what the connect handler stashed.
type callbackParams struct {
	code           string
	state          string
	providerError  string
	installationID string
	platformURL    string
	embedMode      bool
	userID         string
	returnTo       string
}

func (s *Server) readCallbackParams(r *http.Request) callbackParams {
	q := r.URL.Query()
	pending := s.codec.ReadPending(r)
	p := callbackParams{
		code:           q.Get("code"),
		state:          q.Get("state"),
		providerError:  q.Get("error"),
		installationID: firstNonEmpty(q.Get(session.ParamInstallationID), pending.InstallationID),
		embedMode:      pending.EmbedMode,
		userID:         firstNonEmpty(q.Get(session.ParamUserID), pending.UserID),
		returnTo:       pending.ReturnTo,
	}
	if v := q.Get(session.ParamEmbedMode); v != "" {
		p.embedMode = v == "true"
	}
	p.platformURL = pending.PlatformURL
	if u, ok := s.codec.AllowedPlatformURL(q.Get(session.ParamPlatformURL)); ok {
		p.platformURL = u
	}
	return p
}

// callbackFlow carries one callback through its states and logs every transition.
type callbackFlow struct {
	state   CallbackState
	log     zerolog.Logger
	started time.Time
	metrics *Metrics
}

func (f *callbackFlow) to(next CallbackState) {
	f.log.Debug().Stringer("from", f.state).Stringer("to", next).Msg("auth callback transition")
	f.state = next
	if next.Terminal() {
		f.metrics.Callback(next)
		f.log.Info().Stringer("state", next).Dur("elapsed", time.Since(f.started)).Msg("auth callback finished")
	}
}

// AuthCallbackHandler completes the install: it checks the state token, exchanges the
// code exactly once, optionally verifies the installation and persists the session.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow := &callbackFlow{
			state:   CallbackReceived,
			log:     zerolog.Ctx(r.Context()).With().Str("component", "auth_callback").Logger(),
			started: time.Now(),
			metrics: s.metrics,
		}
		flow.log.Debug().Stringer("state", flow.state).Msg("auth callback received")

		target := s.runCallback(w, r, flow)

		// The state token is single use whatever the outcome.
		s.codec.ClearPending(w, r)
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// runCallback returns where the browser goes next. Session cookies are only written
// on the path to done-redirect.
func (s *Server) runCallback(w http.ResponseWriter, r *http.Request, flow *callbackFlow) string {
	ctx := r.Context()
	p := s.readCallbackParams(r)

	if p.providerError != "" {
		flow.to(CallbackErrorInQuery)
		flow.log.Warn().Str("error", p.providerError).Msg("platform denied authorization")
		return errorPagePath(p.providerError)
	}

	stored := s.codec.ReadState(r)
	if p.state == "" || stored == "" || subtle.ConstantTimeCompare([]byte(p.state), []byte(stored)) != 1 {
		flow.to(CallbackStateMismatch)
		return s.callbackFailed(flow, apperrors.ErrInvalidState)
	}

	if p.code == "" {
		flow.to(CallbackCodeMissing)
		return s.callbackFailed(flow, apperrors.ErrMissingCode)
	}

	flow.to(CallbackExchanging)
	result, err := s.platform.ExchangeCode(ctx, p.code)
	if err != nil {
		return s.callbackFailed(flow, err)
	}

	flow.to(CallbackVerifying)
	verifiedUserID, err := s.verifyInstallation(r, p, result)
	if err != nil {
		flow.log.Warn().Err(err).Str("platform", p.platformURL).Msg("post-exchange verification failed")
		s.metrics.VerifyFailed()
		if s.config.GetStrictCallbackVerify() {
			return s.callbackFailed(flow, err)
		}
	}

	flow.to(CallbackPersisting)
	sc := session.Context{
		AccessToken:    result.AccessToken,
		RefreshToken:   result.RefreshToken,
		UserID:         firstNonEmpty(result.UserID(), verifiedUserID, p.userID),
		InstallationID: p.installationID,
		PlatformURL:    p.platformURL,
		EmbedMode:      p.embedMode,
		AuthStatus:     session.StatusConnected,
		ExpiresAt:      result.ExpiresAt,
	}
	if sc.EmbedMode && (sc.InstallationID == "" || sc.PlatformURL == "") {
		flow.log.Warn().Msg("embed mode requested without installation id and platform url, continuing standalone")
		sc.EmbedMode = false
	}
	if err := s.codec.Write(w, r, sc); err != nil {
		return s.callbackFailed(flow, apperrors.Wrapf(apperrors.ErrInternal, "[Server AuthCallback] %v", err))
	}

	flow.to(CallbackDoneRedirect)
	if ch := s.startRealtime(r, sc); ch != nil {
		if err := ch.EmitAppInstalled(); err != nil {
			flow.log.Debug().Err(err).Msg("app installed notification not sent")
		}
	}
	if sc.EmbedMode {
		return sc.EmbedURL("")
	}
	return appendQuery(firstNonEmpty(p.returnTo, RouteHome), "connected", "true")
}

// verifyInstallation confirms the fresh token with the platform when a platform URL is known.
// It returns the user id the platform reported, if any.
func (s *Server) verifyInstallation(r *http.Request, p callbackParams, result *platform.Result) (string, error) {
	if p.platformURL == "" {
		return "", nil
	}
	v, err := s.platform.Verify(r.Context(), p.platformURL, result.AccessToken)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", apperrors.Wrapf(apperrors.ErrVerification, "[Server AuthCallback] empty verification from %s", p.platformURL)
	}
	if !v.Installed {
		return v.UserID, apperrors.Wrapf(apperrors.ErrVerification, "[Server AuthCallback] app not installed for %s", p.platformURL)
	}
	return v.UserID, nil
}

func (s *Server) callbackFailed(flow *callbackFlow, err error) string {
	flow.log.Error().Err(err).Stringer("at", flow.state).Msg("auth callback failed")
	flow.to(CallbackDoneError)
	return errorPagePath(apperrors.Sanitize(err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
