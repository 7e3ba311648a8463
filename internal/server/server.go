// Package server assembles the HTTP router and runs the service.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opalchat/opal/internal/config"
	"github.com/opalchat/opal/internal/handler"
	modelhandler "github.com/opalchat/opal/internal/handler/model"
	sessionhandler "github.com/opalchat/opal/internal/handler/session"
	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/realtime"
	"github.com/opalchat/opal/internal/svc"
)

// ServerOptions holds optional dependencies for the server
type ServerOptions struct {
	SvcCtx *svc.ServiceContext // Pre-initialized service context
	Quiet  bool                // Suppress startup messages for clean CLI output
}

// Run starts the server with the given configuration.
// It blocks until the context is cancelled or an error occurs.
func Run(ctx context.Context, c config.Config, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return run(ctx, c, o)
}

func run(ctx context.Context, c config.Config, opts ServerOptions) error {
	serverPort := c.Port

	// Check if port is available
	if err := checkPortAvailable(serverPort); err != nil {
		return fmt.Errorf("port %d is already in use", serverPort)
	}

	if !opts.Quiet {
		fmt.Printf("Starting server on http://localhost:%d\n", serverPort)
	}

	// Use pre-initialized service context if provided, otherwise create one
	var svcCtx *svc.ServiceContext
	if opts.SvcCtx != nil {
		svcCtx = opts.SvcCtx
	} else {
		var err error
		svcCtx, err = svc.NewServiceContext(c)
		if err != nil {
			return fmt.Errorf("failed to create service context: %w", err)
		}
		defer svcCtx.Close()
	}

	r := NewRouter(svcCtx, opts.Quiet)

	// Note: ReadTimeout/WriteTimeout are intentionally omitted — they set deadlines
	// on the underlying net.Conn which interfere with hijacked WebSocket connections.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", serverPort),
		Handler:     r,
		IdleTimeout: 120 * time.Second,
	}

	if !opts.Quiet {
		fmt.Printf("Server ready at http://localhost:%d\n", serverPort)
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	<-ctx.Done()

	if !opts.Quiet {
		fmt.Println("\nShutting down server gracefully...")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	httpServer.Shutdown(shutdownCtx)
	return nil
}

// NewRouter builds the chi router with all routes mounted.
func NewRouter(svcCtx *svc.ServiceContext, quiet bool) chi.Router {
	r := chi.NewRouter()

	if !quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware())

	r.Get("/", rootHandler())
	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", modelhandler.ListModelsHandler(svcCtx))
		// Wildcard because model ids contain slashes
		r.Post("/models/select/*", modelhandler.SelectModelHandler(svcCtx))

		r.Get("/sessions", sessionhandler.ListSessionsHandler(svcCtx))
		r.Get("/sessions/{session_id}", sessionhandler.GetSessionHandler(svcCtx))
	})

	r.Get("/ws/chat/{session}", realtime.ChatHandler(svcCtx))

	return r
}

func rootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, map[string]string{"message": "Chat backend is running"})
	}
}

// corsMiddleware handles CORS. Any origin is allowed: the frontend is served
// separately and the service carries no browser credentials.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkPortAvailable checks if a port is available for binding
func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
