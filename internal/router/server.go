package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/config"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/transport"
)

// Server owns a Registry and its Dispatcher and exposes the registration API.
// Registration methods return the Server so calls can be chained.
//
// Middleware must be registered before the routes it guards: the registry
// is matched in registration order.
type Server struct {
	registry   *Registry
	dispatcher *Dispatcher
	log        *zap.Logger
	transport  string
	opts       transport.Options

	notFoundOnFallthrough bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger shared by the dispatcher and the transport.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithTransport selects config.TransportNetHTTP or config.TransportFastHTTP.
func WithTransport(name string) Option {
	return func(s *Server) { s.transport = name }
}

// WithStallTimeout finalizes responses nobody finalized within d with 503.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Server) { s.opts.StallTimeout = d }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.opts.MaxBodyBytes = n }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.opts.ShutdownTimeout = d }
}

// WithFallthroughNotFound answers 404 when every matching handler called next
// and none finalized. Without it only paths nothing matched get the 404, so a
// catch-all middleware that advances leaves unknown paths waiting for the
// stall timeout.
func WithFallthroughNotFound() Option {
	return func(s *Server) { s.notFoundOnFallthrough = true }
}

// New creates a Server with an empty registry.
func New(opts ...Option) *Server {
	s := &Server{
		registry:  NewRegistry(),
		log:       zap.NewNop(),
		transport: config.TransportNetHTTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.opts.Logger = s.log
	s.dispatcher = NewDispatcher(s.registry, s.log)
	s.dispatcher.notFoundOnFallthrough = s.notFoundOnFallthrough
	return s
}

// FromConfig creates a Server configured from cfg's server section. opts are
// applied after the config-derived options.
func FromConfig(cfg *config.Config, log *zap.Logger, opts ...Option) (*Server, error) {
	stall, err := cfg.StallTimeout()
	if err != nil {
		return nil, err
	}
	shutdown, err := cfg.ShutdownTimeout()
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithLogger(log),
		WithTransport(cfg.Server.Transport),
		WithStallTimeout(stall),
		WithShutdownTimeout(shutdown),
		WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	return New(append(base, opts...)...), nil
}

// All registers h for pattern, an exact path or CatchAll.
func (s *Server) All(pattern string, h HandlerFunc) *Server {
	s.registry.Register(pattern, h)
	return s
}

// Use registers h for every path. Same as All(CatchAll, h).
func (s *Server) Use(h HandlerFunc) *Server {
	return s.All(CatchAll, h)
}

// Routes returns the registered patterns in matching order.
func (s *Server) Routes() []string {
	return s.registry.Patterns()
}

// HasRoute reports whether path was registered exactly, not only through a
// catch-all. Middleware uses it to key per-route state on registered paths.
func (s *Server) HasRoute(path string) bool {
	return s.registry.Has(path)
}

// Dispatcher returns the server's dispatcher.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Dispatch runs the handler chain for req against res.
func (s *Server) Dispatch(req *request.Request, res *response.Response) {
	s.dispatcher.Dispatch(req, res)
}

// Handler returns the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return transport.NetHTTP(s.dispatcher, s.opts)
}

// Listen binds a TCP listener on port and serves until ctx is done.
func (s *Server) Listen(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln with the configured transport until ctx is
// done. It takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("transport", s.transport),
		zap.Int("registrations", s.registry.Len()),
	)
	switch s.transport {
	case config.TransportFastHTTP:
		return transport.ServeFastHTTP(ctx, ln, s.dispatcher, s.opts)
	case config.TransportNetHTTP, "":
		return transport.ServeNetHTTP(ctx, ln, s.dispatcher, s.opts)
	default:
		_ = ln.Close()
		return errors.Newf("unknown transport %q", s.transport)
	}
}
