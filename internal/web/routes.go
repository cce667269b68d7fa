// Package web exposes the catalog service over HTTP as a JSON API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/catalog"
	"github.com/abdul-hamid-achik/fototeca/internal/query"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	Service        *catalog.Service
	Engine         *query.Engine
	Logger         *zap.Logger
}

// Server is the HTTP server for the catalog API.
type Server struct {
	config  ServerConfig
	router  *chi.Mux
	handler *Handler
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		handler: NewHandler(cfg.Service, cfg.Engine, cfg.Logger),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.config.Logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware(s.config.AllowedOrigins))
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handler.Sync)
		r.Post("/reset", s.handler.Reset)
		r.Get("/status", s.handler.Status)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handler.ListItems)
			r.Post("/", s.handler.AddItem)
			r.Get("/{id}", s.handler.ItemInfo)
			r.Delete("/{id}", s.handler.DeleteItem)
			r.Get("/{id}/data", s.handler.ItemData)
			r.Get("/{id}/tags", s.handler.ItemTags)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handler.ListTags)
			r.Post("/", s.handler.AddTag)
			r.Get("/{id}", s.handler.TagInfo)
			r.Delete("/{id}", s.handler.DeleteTag)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", s.handler.Assign)
			r.Delete("/", s.handler.Unassign)
		})

		r.Route("/query", func(r chi.Router) {
			r.Get("/filter", s.handler.Filter)
			r.Get("/around", s.handler.Around)
			r.Get("/closest", s.handler.Closest)
			r.Get("/best", s.handler.Best)
		})
	})
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}

// corsMiddleware allows the configured browser origins; the catalog UI is a
// separate frontend served from another port.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed[origin] || allowed["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
