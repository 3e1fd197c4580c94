package router

import "sync"

// CatchAll is the pattern matching every path.
const CatchAll = "*"

// Registration binds a path pattern to a handler.
type Registration struct {
	Pattern string
	Handler HandlerFunc
}

// Matches reports whether the registration applies to path: an exact match
// or the catch-all pattern. There is no prefix or parameter matching.
func (r Registration) Matches(path string) bool {
	return r.Pattern == CatchAll || r.Pattern == path
}

// Registry is the append-only, ordered list of registrations.
// Registration order is matching order.
type Registry struct {
	mu   sync.RWMutex
	regs []Registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a registration. It panics on an empty pattern or a nil
// handler since both are programming errors.
func (r *Registry) Register(pattern string, h HandlerFunc) {
	if pattern == "" {
		panic("router: empty pattern passed to Register")
	}
	if h == nil {
		panic("router: nil handler passed to Register")
	}
	r.mu.Lock()
	r.regs = append(r.regs, Registration{Pattern: pattern, Handler: h})
	r.mu.Unlock()
}

// Match returns the registrations matching path, in registration order.
func (r *Registry) Match(path string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	for _, reg := range r.regs {
		if reg.Matches(path) {
			out = append(out, reg)
		}
	}
	return out
}

// Has reports whether path has an exact registration. The catch-all pattern
// does not count.
func (r *Registry) Has(path string) bool {
	if path == CatchAll {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.regs {
		if reg.Pattern == path {
			return true
		}
	}
	return false
}

// Patterns returns every registered pattern in order, duplicates included.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.regs))
	for i, reg := range r.regs {
		out[i] = reg.Pattern
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}
