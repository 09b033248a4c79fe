package server

import (
	"net/http"

	"github.com/jrsteele09/go-embedded-app/session"
)

type pageData struct {
	AppName       string
	Title         string
	EmbedMode     bool
	PollInterval  int64 // milliseconds; zero leaves out the status poll
	JustConnected bool
	UserID        string
	Message       string
	Install       installForm
}

func (s *Server) pollInterval(sc session.Context) int64 {
	if sc.EmbedMode {
		return 0
	}
	return s.config.GetSessionPollInterval().Milliseconds()
}

// HomeHandler renders the app's landing page for a guarded session. Any other
// path falls through to a not found page.
func (s *Server) HomeHandler() http.HandlerFunc {
	home := mustParseTemplate("home.html")
	notFound := mustParseTemplate("not_found.html")

	return func(w http.ResponseWriter, r *http.Request) {
		sc, _ := session.FromContext(r.Context())
		data := pageData{
			AppName:      s.config.GetAppName(),
			EmbedMode:    sc.EmbedMode,
			PollInterval: s.pollInterval(sc),
			UserID:       session.ResolveUserID(sc),
		}
		if r.URL.Path != RouteHome {
			data.Title = "Not found"
			renderPage(w, r, notFound, http.StatusNotFound, data)
			return
		}
		data.Title = "Home"
		data.JustConnected = r.URL.Query().Get("connected") == "true"
		renderPage(w, r, home, http.StatusOK, data)
	}
}

// AuthErrorHandler shows an install or session failure. The message is escaped by the template.
func (s *Server) AuthErrorHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("error.html")

	return func(w http.ResponseWriter, r *http.Request) {
		message := truncate(r.URL.Query().Get("message"), maxErrorMessageLen)
		if message == "" {
			message = "Authentication failed"
		}
		renderPage(w, r, tmpl, http.StatusOK, pageData{
			AppName: s.config.GetAppName(),
			Title:   "Error",
			Message: message,
		})
	}
}
