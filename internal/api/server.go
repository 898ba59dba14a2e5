// Package api serves the feed, search, recommendations and favorites over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mmcdole/marquee/internal/collection"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/feed"
	"github.com/mmcdole/marquee/internal/search"
)

// Dependencies are the services the API exposes. Recommender, Collections
// and Metrics may be nil; their routes then answer 404 or are not mounted.
type Dependencies struct {
	Home        *feed.Home
	Recommender *feed.Recommender
	Collections *collection.Service
	Search      *search.Merger
	Metrics     http.Handler
	Locale      domain.Locale
	Version     string
	Logger      *slog.Logger
}

type Server struct {
	server *http.Server
	deps   Dependencies
	logger *slog.Logger
}

func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		deps:   deps,
		logger: logger.With("module", "api"),
	}
}

// Handler builds the router
func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/rows", func(r chi.Router) {
			r.Get("/", s.listRows)
			r.Get("/{section}", s.getRow)
			r.Post("/{section}/more", s.loadMore)
			r.Post("/{section}/refresh", s.refreshRow)
		})
		r.Get("/search", s.search)
		r.Get("/recommendations", s.recommendations)
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", s.listFavorites)
			r.Put("/{type}/{id}", s.addFavorite)
			r.Delete("/{type}/{id}", s.removeFavorite)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	s.server.Handler = s.Handler()
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request with slog
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
