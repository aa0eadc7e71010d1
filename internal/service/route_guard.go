package service

import "sleep-better/internal/domain"

// EvaluateRoute decides what happens to a navigation request. It holds no
// state: the same inputs always give the same decision.
func EvaluateRoute(path string, authenticated bool) domain.RouteDecision {
	public := domain.IsPublicRoute(path)

	switch {
	case authenticated && public:
		return domain.RouteDecision{Action: domain.RouteRedirect, Location: domain.RouteHome}
	case !authenticated && !public:
		return domain.RouteDecision{Action: domain.RouteRedirect, Location: domain.RouteLogin}
	default:
		return domain.RouteDecision{Action: domain.RouteAllow}
	}
}
