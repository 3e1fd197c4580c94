package dashboard

import (
	"net/http"
	"strconv"

	"github.com/tanmay/hyperbole/internal/request"
	"github.com/tanmay/hyperbole/internal/response"
	"github.com/tanmay/hyperbole/internal/router"
)

// API exposes the request log store over HTTP.
type API struct {
	store  *LogStore
	routes func() []string
}

// NewAPI creates a dashboard API over store. routes lists the registered
// patterns, typically router.Server.Routes.
func NewAPI(store *LogStore, routes func() []string) *API {
	return &API{store: store, routes: routes}
}

// Register mounts the dashboard endpoints under prefix (e.g. "/_hyperbole"):
//
//	GET prefix/logs    recent logs; query: limit, status, method, path, id
//	GET prefix/stats   summary over held logs
//	GET prefix/routes  registered patterns in matching order
func (api *API) Register(s *router.Server, prefix string) {
	s.All(prefix+"/logs", getOnly(api.handleLogs))
	s.All(prefix+"/stats", getOnly(api.handleStats))
	s.All(prefix+"/routes", getOnly(api.handleRoutes))
}

// getOnly answers 405 for anything but GET (and OPTIONS for CORS preflight).
func getOnly(h router.HandlerFunc) router.HandlerFunc {
	return func(req *request.Request, res *response.Response, next router.Next) error {
		res.SetHeader("Access-Control-Allow-Origin", "*")
		res.SetHeader("Access-Control-Allow-Methods", "GET, OPTIONS")
		res.SetHeader("Access-Control-Allow-Headers", "Content-Type")

		switch req.Method {
		case http.MethodGet:
			return h(req, res, next)
		case http.MethodOptions:
			return res.Send(http.StatusOK, nil, nil)
		default:
			return res.String(http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleLogs lists recent request logs with optional filters, or one log
// when the id query parameter is present.
func (api *API) handleLogs(req *request.Request, res *response.Response, _ router.Next) error {
	q := req.URL.Query()

	if id := q.Get("id"); id != "" {
		log, found := api.store.GetByID(id)
		if !found {
			return res.JSON(http.StatusNotFound, map[string]string{"error": "log not found"})
		}
		return res.JSON(http.StatusOK, log)
	}

	limit := 50
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	f := Filter{Method: q.Get("method"), Path: q.Get("path")}
	if s := q.Get("status"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			f.Status = parsed
		}
	}

	return res.JSON(http.StatusOK, map[string]interface{}{
		"logs": api.store.Search(limit, f),
	})
}

func (api *API) handleStats(_ *request.Request, res *response.Response, _ router.Next) error {
	return res.JSON(http.StatusOK, api.store.Stats())
}

func (api *API) handleRoutes(_ *request.Request, res *response.Response, _ router.Next) error {
	var routes []string
	if api.routes != nil {
		routes = api.routes()
	}
	return res.JSON(http.StatusOK, map[string]interface{}{
		"routes": routes,
	})
}
