package domain

// Navigation targets
const (
	RouteHome      = "/"
	RouteLogin     = "/login"
	RouteRegister  = "/register"
	RouteDashboard = "/dashboard"
	RouteDiet      = "/diet"
)

var publicRoutes = map[string]struct{}{
	RouteLogin:    {},
	RouteRegister: {},
}

// IsPublicRoute reports whether path is reachable without a session.
// Matching is exact: "/login/extra" is protected.
func IsPublicRoute(path string) bool {
	_, ok := publicRoutes[path]
	return ok
}

// PublicRoutes returns the fixed public route set.
func PublicRoutes() []string {
	return []string{RouteLogin, RouteRegister}
}

// RouteAction is what the route guard does with a request
type RouteAction int

const (
	RouteAllow RouteAction = iota
	RouteRedirect
)

// RouteDecision is the outcome of evaluating a navigation request.
type RouteDecision struct {
	Action   RouteAction
	Location string
}

// Allowed reports whether the request passes through unmodified.
func (d RouteDecision) Allowed() bool {
	return d.Action == RouteAllow
}

// Label is a short stable name used for logs and metrics.
func (d RouteDecision) Label() string {
	if d.Action == RouteAllow {
		return "allow"
	}
	switch d.Location {
	case RouteHome:
		return "redirect_home"
	case RouteLogin:
		return "redirect_login"
	default:
		return "redirect"
	}
}
