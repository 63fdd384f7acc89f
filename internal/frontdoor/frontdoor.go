// Package frontdoor is the HTTP/WebSocket entry point (4.8): it accepts
// the upgrade at the root path, carries the optional ?name= query
// parameter into the connection bridge, and serves the plain-HTTP health
// check and the optional file-sync endpoints alongside it.
package frontdoor

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lspwsbridge/internal/bridge"
	"lspwsbridge/internal/uriremap"
	"lspwsbridge/internal/web/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// Options configures the handler built by New; it is the HTTP-facing
// counterpart of bridge.Context.
type Options struct {
	Bridge  *bridge.Context
	Sync    bool
	RootDir string // absolute filesystem path backing uriremap.Root, used by /files
}

// New builds the root HTTP handler: recovery, request ID, logging and
// CORS wrap a router that upgrades GET / to a bridge connection, answers
// plain GET / with a health check, and, when sync is enabled, serves
// /files for reading and writing project files by relative path.
func New(opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}),
	)

	r.HandleFunc("/", rootHandler(opts, logger))
	if opts.Sync {
		r.HandleFunc("/files", filesHandler(opts.RootDir, logger))
	}

	return r
}

func rootHandler(opts Options, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !websocket.IsWebSocketUpgrade(r) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// The request ID becomes the connection ID in every bridge log line.
		bctx := *opts.Bridge
		bctx.Logger = bctx.Logger.With(zap.String("connection_id", middleware.GetRequestID(r.Context())))

		name := r.URL.Query().Get("name")
		bridge.Run(conn, &bctx, name)
	}
}

// filesHandler implements the sync-mode /files endpoint: GET reads a
// project-relative path, PUT overwrites it, both rejecting any path that
// escapes rootDir the same way the URI remapper rejects a `source://`
// escape.
func filesHandler(rootDir string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Query().Get("path"), "/")
		if rel == "" {
			http.Error(w, "missing path query parameter", http.StatusBadRequest)
			return
		}

		abs, err := uriremap.ResolveRelative(rootDir, rel)
		if err != nil {
			http.Error(w, "path escapes project root", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			data, err := os.ReadFile(abs)
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write(data)

		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				logger.Error("failed to create directory for file write", zap.Error(err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if err := os.WriteFile(abs, body, 0o644); err != nil {
				logger.Error("failed to write file", zap.Error(err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, PUT")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
