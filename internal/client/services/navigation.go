package services

const (
	// RouteMain is the main application area.
	RouteMain = "/(tabs)"
	// RouteSignIn is the sign-in screen.
	RouteSignIn = "/(auth)/signin"
)

// Navigator receives fire-and-forget navigation directives.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

func routeFor(s Status) (string, bool) {
	switch s {
	case StatusAuthenticated:
		return RouteMain, true
	case StatusUnauthenticated:
		return RouteSignIn, true
	default:
		return "", false
	}
}
