package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteAuthGetToken = "/auth/get-token"
	RouteAuthRefresh  = "/auth/refresh"
	RouteAuthLogout   = "/auth/logout"

	// API Routes
	RouteAPIProxy        = "/api/proxy"
	RouteAPICurrentTrack = "/api/current-track"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// RouteFrontendLogin is appended to the frontend URL when a login attempt fails.
	RouteFrontendLogin = "/login"

	// upstreamCurrentTrack is the resource API path behind RouteAPICurrentTrack.
	upstreamCurrentTrack = "/v1/me/player/currently-playing"
)
