package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrsteele09/go-embedded-app/internal/config"
	"github.com/jrsteele09/go-embedded-app/realtime"
	"github.com/jrsteele09/go-embedded-app/revocation"
	"github.com/jrsteele09/go-embedded-app/session"
)

// Deps are the collaborators the server is wired with. Realtime and Metrics are optional.
type Deps struct {
	Platform PlatformClient
	Codec    *session.Codec
	Store    revocation.Store
	Realtime *realtime.Manager
	Metrics  *Metrics
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	platform PlatformClient
	codec    *session.Codec
	store    revocation.Store
	realtime *realtime.Manager
	metrics  *Metrics
	frameCSP string
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Platform == nil || deps.Codec == nil || deps.Store == nil {
		return nil, errors.New("[Server New] platform client, session codec and revocation store are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		platform: deps.Platform,
		codec:    deps.Codec,
		store:    deps.Store,
		realtime: deps.Realtime,
		metrics:  deps.Metrics,
		frameCSP: frameAncestors(config.GetAllowedOrigins().List()),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// getScheme determines the scheme (http/https), honouring a TLS-terminating proxy.
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
