package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/client/services"
)

var screenNames = map[string]string{
	services.RouteMain:   "main",
	services.RouteSignIn: "sign-in",
}

// Router is the CLI's navigator: it remembers the current screen and
// announces every redirect the controller performs.
type Router struct {
	mu      sync.Mutex
	current string
	out     io.Writer
}

func NewRouter(out io.Writer) *Router {
	return &Router{out: out}
}

func (r *Router) Navigate(route string) {
	r.mu.Lock()
	r.current = route
	r.mu.Unlock()

	if r.out != nil {
		fmt.Fprintf(r.out, "-> %s screen\n", screenName(route))
	}
}

// Current returns the last route navigated to, or "" before the first one.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func screenName(route string) string {
	if name, ok := screenNames[route]; ok {
		return name
	}
	return route
}
