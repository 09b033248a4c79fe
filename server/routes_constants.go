package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteHome      = "/"
	RouteInstall   = "/install"
	RouteAuthError = "/auth/error"

	// Install flow. RouteCallback must match the registered redirect URL.
	RouteConnect  = "/api/auth/connect"
	RouteCallback = "/api/auth/callback"

	// Session API
	RouteSessionStatus = "/api/session/status"
	RouteDisconnect    = "/api/auth/disconnect"
	RouteRefresh       = "/api/auth/refresh"

	// Platform notifications
	RouteWebhookUninstall = "/api/webhooks/uninstall"

	// Operations
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStatic  = "/static/{file}"
	RouteFavicon = "/favicon.ico"
)

// guardExemptPrefixes are never redirected by the session guard.
var guardExemptPrefixes = []string{
	RouteInstall,
	RouteAuthError,
	"/api/",
	"/static/",
	RouteFavicon,
	RouteHealthz,
	RouteMetrics,
}
