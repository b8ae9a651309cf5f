// Package admin implements the optional observability HTTP server: health
// checks, a JSON metrics snapshot, and pprof debugging endpoints, all kept
// off the main TCP protocol listener so profiling traffic never competes
// with client connections.
package admin

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"go.uber.org/zap"

	"package-indexer/internal/server"
)

// MetricsProvider is the subset of *server.Server the admin server needs;
// defined here so admin doesn't need the full Server type for tests.
type MetricsProvider interface {
	GetMetrics() server.MetricsSnapshot
}

// New builds the admin HTTP server, without an address. Readiness always reports
// healthy once the handler is reachable, since the admin server is only
// started after the TCP listener is already bound.
func New(provider MetricsProvider, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{
			"readiness": true,
			"liveness":  true,
		})
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.GetMetrics()); err != nil {
			log.Warn("failed to encode metrics response", zap.Error(err))
		}
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &http.Server{Handler: mux}
}

// Serve starts srv listening on addr in a background goroutine and returns
// it so the caller can Shutdown it later. Bind errors are logged, not
// fatal, since the admin surface is strictly optional.
func Serve(addr string, srv *http.Server, log *zap.Logger) *http.Server {
	srv.Addr = addr
	go func() {
		log.Info("admin server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", zap.Error(err))
		}
	}()
	return srv
}
