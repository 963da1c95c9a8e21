package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jamesprial/mcp-tool-gateway/internal/transport/transportcore"
	"github.com/jamesprial/mcp-tool-gateway/pkg/oauth"
)

// router implements transportcore.Router on top of a chi mux.
type router struct {
	mux         *chi.Mux
	middlewares []transportcore.Middleware
}

// NewRouter creates a new HTTP router backed by chi.
// Unknown paths get 404 and known paths with the wrong method get 405,
// both with JSON bodies.
func NewRouter() transportcore.Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "no route for this path")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", transportcore.ErrMethodNotAllowed.Error())
	})

	return &router{
		mux:         mux,
		middlewares: make([]transportcore.Middleware, 0),
	}
}

// Handle registers a handler for the given pattern.
// "POST /mcp" registers for a single method; "/mcp" registers for all.
// The handler is wrapped with all currently registered middleware.
func (r *router) Handle(pattern string, handler http.Handler) {
	wrapped := r.chain().Handler(handler)

	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		r.mux.Handle(pattern, wrapped)
		return
	}
	r.mux.Method(strings.ToUpper(method), strings.TrimSpace(path), wrapped)
}

// HandleFunc registers a handler function for the given pattern.
func (r *router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}

// Use applies middleware to all subsequent route registrations.
// The first middleware registered is the outermost layer.
func (r *router) Use(middlewares ...transportcore.Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// ServeHTTP implements http.Handler by delegating to the chi mux.
func (r *router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *router) chain() chi.Middlewares {
	mws := make([]func(http.Handler) http.Handler, len(r.middlewares))
	for i, mw := range r.middlewares {
		mws[i] = mw
	}
	return chi.Chain(mws...)
}

// writeJSONError writes a small {"error","message"} body.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set(oauth.HeaderContentType, oauth.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Message: message})
}
