// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/howard-nolan/blogsmith/internal/blog"
	"github.com/howard-nolan/blogsmith/internal/config"
	"github.com/howard-nolan/blogsmith/internal/metrics"
)

// Generator produces blog text for a validated request. *blog.Generator is
// the production implementation; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, req blog.Request) (*blog.Result, error)
}

// Server holds the HTTP router and everything the handlers need.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	generator Generator
	validate  *validator.Validate
	log       *slog.Logger
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(cfg *config.Config, gen Generator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		generator: gen,
		validate:  newValidator(),
		log:       log,
	}
	s.routes()
	return s
}

// newValidator reports fields by their JSON name so validation errors
// point at "topic", not "Topic".
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)

	// Access log lines go through slog so they share the process format.
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.log.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	// CORS sits in front of routing so preflight OPTIONS requests are
	// answered even though no route registers OPTIONS.
	r.Use(corsMiddleware(s.cfg.CORS.AllowedOrigins))
	r.Use(recordMetrics)

	// --- Routes ---
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/generate-blog", s.handleGenerateBlog)

	r.Get("/docs", handleDocs)
	r.Get("/openapi.json", handleOpenAPI)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// ServeHTTP makes Server satisfy http.Handler by delegating to chi.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// echoRequestID copies the id chi assigned to the request onto the response.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// recordMetrics observes every routed request. The route label is the chi
// pattern, which is only known after the router has matched.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
