package server

import (
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embedded-app/internal/errors"
	"github.com/jrsteele09/go-embedded-app/platform"
	"github.com/jrsteele09/go-embedded-app/session"
)

// installForm is echoed into the install page so the connect request keeps the platform's context.
type installForm struct {
	InstallationID string
	PlatformURL    string
	EmbedMode      bool
	UserID         string
	ReturnTo       string
}

func (s *Server) installFormFromRequest(r *http.Request) installForm {
	q := r.URL.Query()
	form := installForm{
		InstallationID: q.Get(session.ParamInstallationID),
		EmbedMode:      q.Get(session.ParamEmbedMode) == "true",
		UserID:         q.Get(session.ParamUserID),
		ReturnTo:       session.SafeReturnTo(q.Get("returnTo")),
	}
	form.PlatformURL, _ = s.codec.AllowedPlatformURL(q.Get(session.ParamPlatformURL))
	return form
}

// InstallPageHandler renders the page that starts the install.
func (s *Server) InstallPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("install.html")

	return func(w http.ResponseWriter, r *http.Request) {
		form := s.installFormFromRequest(r)
		renderPage(w, r, tmpl, http.StatusOK, pageData{
			AppName:   s.config.GetAppName(),
			Title:     "Install",
			EmbedMode: form.EmbedMode,
			Install:   form,
		})
	}
}

// ConnectHandler issues a state token, stashes the installation parameters and
// sends the browser to the platform's authorization endpoint.
func (s *Server) ConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := session.NewState()
		if err != nil {
			logRequestError(r, err, "failed to generate oauth state")
			redirectWithError(w, r, apperrors.Sanitize(apperrors.ErrInternal))
			return
		}
		if err := s.codec.WriteState(w, r, state); err != nil {
			logRequestError(r, err, "failed to write oauth state")
			redirectWithError(w, r, apperrors.Sanitize(apperrors.ErrInternal))
			return
		}

		form := s.installFormFromRequest(r)
		s.codec.WritePending(w, r, session.Pending{
			InstallationID: form.InstallationID,
			PlatformURL:    form.PlatformURL,
			EmbedMode:      form.EmbedMode,
			UserID:         form.UserID,
			ReturnTo:       form.ReturnTo,
		})

		authURL := s.platform.AuthorizationURL(state, platform.ExtraParams{
			InstallationID: form.InstallationID,
			PlatformURL:    form.PlatformURL,
			EmbedMode:      form.EmbedMode,
			UserID:         form.UserID,
		})
		zerolog.Ctx(r.Context()).Info().
			Str("installation_id", form.InstallationID).
			Bool("embed_mode", form.EmbedMode).
			Msg("starting install")
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}
