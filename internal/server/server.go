// Package server wires the HTTP API: routes, logging middleware, optional
// API key authentication, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"gpress/aggregator/internal/database"
	"gpress/aggregator/internal/enrich"
	"gpress/aggregator/internal/server/api"
	"gpress/aggregator/internal/server/storage"
	"gpress/aggregator/internal/store"
)

// apiKeyMiddleware checks the X-API-Key header against the configured key.
// An empty key disables the check.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqApiKey := r.Header.Get("X-API-Key")
			if reqApiKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}
			if reqApiKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewHandler assembles the full middleware chain and routes.
func NewHandler(db *database.DB, stores []*store.ArticleStore, questions *store.QuestionStore, enricher *enrich.Engine, logger zerolog.Logger, apiKey string) http.Handler {
	repo := storage.NewRepository(db)
	handler := api.NewHandler(repo, stores, questions, enricher)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler(db))
	mux.HandleFunc("GET /v1/articles", handler.GetArticles)
	mux.HandleFunc("GET /v1/news/all", handler.GetAllNews)
	mux.HandleFunc("GET /v1/news/current-affairs", handler.GetCurrentAffairs)
	mux.HandleFunc("GET /v1/news/search", handler.SearchNews)
	mux.HandleFunc("GET /v1/news/{source}", handler.GetNewsBySource)
	mux.HandleFunc("GET /v1/questions/{source}/{articleID}", handler.GetQuestions)

	h := hlog.NewHandler(logger)(mux)
	h = hlog.MethodHandler("method")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)

	if apiKey != "" {
		h = apiKeyMiddleware(apiKey)(h)
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}

	return h
}

// RunServer serves the API until the context is canceled, then shuts down
// gracefully.
func RunServer(ctx context.Context, db *database.DB, stores []*store.ArticleStore, questions *store.QuestionStore, enricher *enrich.Engine, listenAddr string, logger zerolog.Logger, apiKey string) error {
	logger = logger.With().Str("service", "news-api").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           NewHandler(db, stores, questions, enricher, logger, apiKey),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// On-demand question generation can ride out several model
		// retries before responding.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err

	case <-ctx.Done():
		logger.Info().Msg("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	return nil
}

// healthCheckHandler reports service liveness, including a database ping.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		if err := db.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check database ping failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}
