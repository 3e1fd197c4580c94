package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// Auth holds valid API keys and the JWT signing secret.
type Auth struct {
	apiKeys   map[string]bool
	jwtSecret []byte
	public    map[string]bool
}

// NewAuth creates an Auth handler with the given API keys and JWT secret.
// Requests to any of the public paths skip authentication.
func NewAuth(apiKeys []string, jwtSecret string, public ...string) *Auth {
	keys := make(map[string]bool)
	for _, k := range apiKeys {
		keys[k] = true
	}
	open := make(map[string]bool)
	for _, p := range public {
		open[p] = true
	}
	return &Auth{
		apiKeys:   keys,
		jwtSecret: []byte(jwtSecret),
		public:    open,
	}
}

// Middleware returns the auth handler.
// Checks X-API-Key header first, then falls back to Authorization: Bearer <JWT>.
// If neither is valid, it answers 401 and does not advance.
func (a *Auth) Middleware() router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		if a.public[req.Path] {
			next()
			return nil
		}

		// Check API key first
		if key := req.Header.Get("X-API-Key"); key != "" {
			if a.apiKeys[key] {
				next()
				return nil
			}
			return res.String(http.StatusUnauthorized, "Invalid API Key")
		}

		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			return res.String(http.StatusUnauthorized, "Unauthorized")
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return res.String(http.StatusUnauthorized, "Invalid Authorization Header")
		}
		if len(a.jwtSecret) == 0 {
			return res.String(http.StatusUnauthorized, "Invalid Token")
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return a.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return res.String(http.StatusUnauthorized, "Invalid Token")
		}

		next()
		return nil
	}
}
