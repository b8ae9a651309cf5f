// Package main provides the entry point for the package indexer TCP server.
// This server manages package dependency relationships with high concurrency support,
// designed for production observability workloads requiring 100+ simultaneous connections.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"package-indexer/internal/admin"
	"package-indexer/internal/config"
	"package-indexer/internal/indexer"
	"package-indexer/internal/logging"
	"package-indexer/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := config.DefaultFlags()

	cmd := &cobra.Command{
		Use:   "depindexd",
		Short: "TCP server for the package dependency index protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.Host, "host", flags.Host, "bind host")
	fs.IntVar(&flags.Port, "port", flags.Port, "bind port")
	fs.IntVar(&flags.MaxConns, "max-conns", flags.MaxConns, "maximum simultaneous connections (0 = unlimited)")
	fs.DurationVar(&flags.ShutdownGrace, "shutdown-grace", flags.ShutdownGrace, "time to wait for in-flight sessions during shutdown")
	fs.StringVar(&flags.AdminAddr, "admin-addr", flags.AdminAddr, "admin HTTP server address (disabled if empty)")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "log level: debug, info, warn, error")

	return cmd
}

// run encapsulates server startup and graceful shutdown, separated from
// main() so it returns an error cobra can turn into a non-zero exit code
// instead of calling os.Exit directly.
func run(flags config.Flags) error {
	log, err := logging.New(flags.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	idx := indexer.NewIndexer()
	srv := server.NewServer(flags.ServerConfig(), idx, log.Named("server"))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.StartWithContext(ctx)
	}()
	<-srv.Ready()

	adminHTTP := startAdminIfConfigured(flags.AdminAddr, srv, log)

	select {
	case <-stop:
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), flags.ShutdownGrace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if adminHTTP != nil {
		if err := adminHTTP.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown failed: %w", err)
		}
	}

	log.Info("stopped cleanly")
	return nil
}

// startAdminIfConfigured starts the optional admin HTTP server when addr is
// non-empty, returning nil otherwise so callers can skip shutdown.
func startAdminIfConfigured(addr string, srv *server.Server, log *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	h := admin.New(srv, log.Named("admin"))
	return admin.Serve(addr, h, log.Named("admin"))
}
