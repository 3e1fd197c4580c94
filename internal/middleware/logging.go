package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/tanmay/hyperbole/internal/logger"
	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// Logging returns a handler that logs every request once its response is
// finalized, as one structured entry.
//
// It registers a completion listener and advances immediately, so it never
// delays the chain. Register it after RequestID to get the ID in the entry.
func Logging(log *zap.Logger) router.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(req *request.Request, res *response.Response, next router.Next) error {
		start := time.Now()
		if ce := log.Check(zap.DebugLevel, "request_headers"); ce != nil {
			ce.Write(
				zap.String("path", req.Path),
				zap.Any("headers", logger.SafeHeaders(req.Header)),
			)
		}
		res.OnCompletion(func(status int) {
			log.Info("request",
				zap.String("request_id", GetRequestID(res)),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("status", status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("client_ip", clientIP(req.RemoteAddr)),
				zap.Int("bytes_out", res.Size()),
			)
		})
		next()
		return nil
	}
}
