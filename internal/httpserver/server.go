// Package httpserver exposes the dispatcher's assignment endpoint over
// HTTP and ties the server's lifetime to the process-wide cancellation
// scope.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mvplabs/process-dispatcher/internal/dispatch"
	"github.com/mvplabs/process-dispatcher/internal/logging"
	"github.com/mvplabs/process-dispatcher/internal/shutdown"
)

// drainTimeout bounds how long in-flight requests may run once the
// terminating signal arrives.
const drainTimeout = 10 * time.Second

// Assigner is the dispatcher operation the API serves. Satisfied by
// dispatch.Dispatcher; stubbed in tests.
type Assigner interface {
	AssignProcess(ctx context.Context, supervisorID uuid.UUID) (*dispatch.AssignedProcess, error)
}

// Server is the HTTP front of the dispatcher.
type Server struct {
	assigner Assigner
	scope    *shutdown.Scope
	addr     string
}

// New builds a Server listening on all interfaces at the given port.
func New(assigner Assigner, scope *shutdown.Scope, port uint16) *Server {
	return &Server{
		assigner: assigner,
		scope:    scope,
		addr:     fmt.Sprintf(":%d", port),
	}
}

// Run binds the listener and serves until the cancellation scope fires,
// then drains in-flight requests. A nil return covers both a clean
// shutdown and a bind canceled by an early terminating signal.
func (s *Server) Run(ctx context.Context) error {
	ln, err := shutdown.Guard(ctx, s.scope, "http: bind listener",
		func(c context.Context) (net.Listener, error) {
			var lc net.ListenConfig
			return lc.Listen(c, "tcp", s.addr)
		})
	if errors.Is(err, shutdown.ErrTerminating) {
		logging.Logger().Info("http: shutdown signal received before the listener was bound")
		return nil
	}
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}

	logging.Logger().Info("http: listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		select {
		case <-s.scope.Done():
		case <-ctx.Done():
		}
		logging.Logger().Info("http: draining connections", "timeout", drainTimeout)
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logging.Logger().Warn("http: drain incomplete", "error", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Post("/assign_process/{supervisor_id}", s.handleAssignProcess)
	return r
}

// requestLogger traces every request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Logger().Log(r.Context(), logging.LevelTrace, "http: request served",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}
