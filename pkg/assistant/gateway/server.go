// Package gateway exposes the assistant over HTTP: a streaming chat
// endpoint plus read APIs for history, modules and traces.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/router"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/store"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/trace"
)

// Server is the HTTP gateway.
type Server struct {
	cfg      *config.Config
	router   *router.Router
	registry *modules.Registry
	store    *store.Store
	traces   *trace.SQLiteStore
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New creates the gateway server.
func New(cfg *config.Config, rt *router.Router, registry *modules.Registry, st *store.Store, traces *trace.SQLiteStore, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		router:   rt,
		registry: registry,
		store:    st,
		traces:   traces,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/chat", s.auth(s.handleChat))
	mux.HandleFunc("GET /api/v1/chat/history", s.auth(s.handleHistory))
	mux.HandleFunc("GET /api/v1/modules", s.auth(s.handleModules))
	mux.HandleFunc("GET /api/v1/traces", s.auth(s.handleTraces))
	mux.HandleFunc("GET /api/v1/traces/{id}", s.auth(s.handleTrace))

	s.httpSrv = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: chat responses stream for as long as a module
		// run takes.
	}
	return s
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// tenantKey carries the authenticated tenant through the request context.
type tenantKey struct{}

// auth resolves the bearer token to a tenant and stores it in the context.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tenant, ok := s.cfg.TenantByToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenant)
		next(w, r.WithContext(ctx))
	}
}

// tenantFrom extracts the authenticated tenant set by auth.
func tenantFrom(r *http.Request) *config.TenantConfig {
	t, _ := r.Context().Value(tenantKey{}).(*config.TenantConfig)
	return t
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"modules": len(s.registry.IDs()),
	})
}
