package middleware

import (
	"net"

	"github.com/tanmay/hyperbole/internal/router"
)

// Chain registers handlers on s as catch-all middleware, in the order they
// are provided. Chain(s, A, B, C) makes every request flow A → B → C → routes,
// so call it before registering the routes the middleware guards.
func Chain(s *router.Server, handlers ...router.HandlerFunc) *router.Server {
	for _, h := range handlers {
		if h == nil {
			continue
		}
		s.Use(h)
	}
	return s
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
