package server

import "net/http"

func (s *Server) initRoutes() {
	// Install flow
	s.RegisterRouteHandler("GET "+RouteInstall, ChainMiddleware(s.InstallPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthError, ChainMiddleware(s.AuthErrorHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteConnect, ChainMiddleware(s.ConnectHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.AuthCallbackHandler(), s.HTMLMiddleWare()...))

	// Session API
	s.RegisterRouteHandler("GET "+RouteSessionStatus, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteDisconnect, ChainMiddleware(s.DisconnectHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(preflightHandler, s.APIMiddleware()...))

	// Platform notifications
	s.RegisterRouteHandler("POST "+RouteWebhookUninstall, ChainMiddleware(s.UninstallWebhookHandler(), s.APIMiddleware()...))

	// Operations
	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.HealthHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())

	// Static assets
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.CacheMiddleware))
	s.RegisterRouteHandler("GET "+RouteFavicon, ChainMiddleware(s.serveFileHandler(), s.CacheMiddleware))

	// Every other page is guarded
	s.RegisterRouteHandler("GET "+RouteHome, ChainMiddleware(s.HomeHandler(), s.HTMLMiddleWare(s.SessionGuard())...))
}

// preflightHandler answers OPTIONS without an Origin header; CorsMiddleware answers the rest.
func preflightHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
