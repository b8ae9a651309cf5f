// Package server implements the TCP listener/acceptor and per-connection
// session handling for the package dependency index protocol. The acceptor
// spawns one goroutine per accepted connection, coordinated through an
// errgroup.Group so shutdown draining is a single Wait() call racing the
// configured grace period.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"package-indexer/internal/indexer"
)

// Server is the TCP acceptor. It owns the listener and the lifecycle state
// machine (NEW -> LISTENING -> DRAINING -> STOPPED) but holds no protocol
// state itself; every accepted connection gets its own session backed by
// the shared indexer.
type Server struct {
	cfg Config
	idx *indexer.Indexer
	log *zap.Logger

	metrics *Metrics

	mu       sync.Mutex
	state    State
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	sem      chan struct{} // non-nil and buffered to cfg.MaxConns when MaxConns > 0

	ready chan struct{} // closed once the listener is bound (or failed to bind)
}

// NewServer creates a server bound to cfg, serving idx. A nil logger is
// replaced with a no-op logger; a nil indexer gets a fresh empty one.
func NewServer(cfg Config, idx *indexer.Indexer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if idx == nil {
		idx = indexer.NewIndexer()
	}

	s := &Server{
		cfg:     cfg,
		idx:     idx,
		log:     log,
		metrics: NewMetrics(),
		ready:   make(chan struct{}),
	}
	if cfg.MaxConns > 0 {
		s.sem = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// Start begins listening for connections. It returns an error at once if
// the bind fails; otherwise it blocks until Shutdown is called. Accept
// errors are logged and the accept loop keeps going.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext is Start with a parent context. Cancelling ctx stops the
// accept loop and closes every open session's connection, but leaves the
// lifecycle state as it is and does not wait for sessions; only Shutdown
// moves the server to DRAINING and STOPPED.
func (s *Server) StartWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return fmt.Errorf("server: Start called in state %s", s.state)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	addr := net.JoinHostPort(s.cfg.BindHost, strconv.Itoa(s.cfg.BindPort))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		close(s.ready)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = l
	s.group = new(errgroup.Group)
	s.state = StateListening
	s.mu.Unlock()
	close(s.ready)

	// Closing the listener unblocks Accept() once the session context is
	// cancelled; this is the only wakeup Shutdown needs for the accept loop.
	go func() {
		<-s.ctx.Done()
		_ = l.Close()
	}()

	s.log.Info("listening", zap.String("addr", l.Addr().String()))

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
				s.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		if s.sem != nil {
			s.sem <- struct{}{}
		}
		s.group.Go(func() error {
			if s.sem != nil {
				defer func() { <-s.sem }()
			}
			s.handleConnection(conn)
			return nil
		})
	}
}

// handleConnection tags the connection with a session ID for structured
// logging, then runs the session loop until the client disconnects or the
// server starts draining.
func (s *Server) handleConnection(conn net.Conn) {
	connID := uuid.New().String()
	log := s.log.With(
		zap.String("conn_id", connID),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	s.metrics.IncrementConnections()
	log.Debug("session started")

	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug("error closing connection", zap.Error(err))
		}
		log.Debug("session ended")
	}()

	sess := &session{
		conn:    conn,
		idx:     s.idx,
		metrics: s.metrics,
		log:     log,
		maxLine: s.cfg.maxLineSize(),
	}
	sess.serve(s.ctx)
}

// Shutdown stops accepting new connections and waits for in-flight sessions
// to finish their current request, up to ctx's deadline or the configured
// shutdown grace, whichever comes first. The grace period is an internally
// applied ceiling: it never extends a tighter deadline the caller already
// put on ctx, it only bounds callers whose context has no deadline or a
// later one.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancelGrace := context.WithTimeout(ctx, s.cfg.shutdownGrace())
	defer cancelGrace()

	s.mu.Lock()
	if s.state == StateStopped || s.state == StateNew {
		s.state = StateStopped
		s.mu.Unlock()
		return nil
	}
	s.state = StateDraining
	cancel := s.cancel
	listener := s.listener
	group := s.group
	s.mu.Unlock()

	s.log.Info("draining")

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		_ = listener.Close()
	}

	done := make(chan error, 1)
	go func() {
		if group != nil {
			done <- group.Wait()
		} else {
			done <- nil
		}
	}()

	select {
	case err := <-done:
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		s.log.Info("stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound listener address, or "" if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready is closed once the listener has bound (successfully or not),
// letting callers synchronize with Start running in a goroutine.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// GetMetrics returns a snapshot of current server metrics, including the
// index store's current size as of the moment of the call.
func (s *Server) GetMetrics() MetricsSnapshot {
	indexed, deps, dependents := s.idx.GetStats()
	return s.metrics.GetSnapshot(IndexStats{
		PackagesIndexed:  indexed,
		TotalDeps:        deps,
		TotalReverseDeps: dependents,
	})
}

// GetIndexStats exposes the underlying index store's size counters, as
// returned by Indexer.GetStats.
func (s *Server) GetIndexStats() (indexed, deps, dependents int) {
	return s.idx.GetStats()
}
