// Package socket implements the socket server (C9): it listens on a
// Unix-domain stream socket, frames NDJSON in both directions, routes
// decoded commands to the dispatcher (C8), and hands each accepted
// connection a [dispatch.Client] the broadcaster (C7) can push events
// through.
//
// Stale-socket detection (spec.md §6 scenario S6) and PID-file lifecycle are
// handled in pidfile.go; per-connection framing in conn.go.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwulff/stenod/internal/dispatch"
	"github.com/jwulff/stenod/pkg/wire"
)

// writeBufferLines bounds how many outbound lines may be queued for a single
// connection before [clientConn.Send] reports back-pressure.
const writeBufferLines = 64

// Dispatcher routes a decoded command to the command dispatcher (C8).
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID string, client dispatch.Client, cmd wire.Command) wire.Response
}

// Unsubscriber drops a disconnected client's broadcaster subscription (C7).
type Unsubscriber interface {
	Unsubscribe(clientID string)
}

// Config configures a [Server].
type Config struct {
	SocketPath string
	Dispatcher Dispatcher
	Broadcast  Unsubscriber
	Logger     *slog.Logger

	// PIDPath overrides the sibling PID-file path; defaults to SocketPath
	// with its extension replaced by ".pid" when empty.
	PIDPath string
}

// Server accepts stream connections on a filesystem path and serves the
// NDJSON command/event protocol. Multiple clients are served concurrently;
// the server never serializes unrelated clients.
type Server struct {
	socketPath string
	pidPath    string
	dispatcher Dispatcher
	broadcast  Unsubscriber
	logger     *slog.Logger

	listener net.Listener

	mu    sync.Mutex
	conns map[string]*clientConn
	wg    sync.WaitGroup
}

// New acquires socketPath (removing a stale socket file per S6, failing if a
// live daemon already owns it), listens, and writes the sibling PID file.
// Call [Server.Serve] to begin accepting connections and [Server.Close] to
// shut down.
func New(cfg Config) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, errors.New("socket: socket path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pidPath := cfg.PIDPath
	if pidPath == "" {
		pidPath = pidPathFor(cfg.SocketPath)
	}

	if err := acquireSocketPath(cfg.SocketPath, pidPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("socket: listen %s: %w", cfg.SocketPath, err)
	}
	if err := os.Chmod(cfg.SocketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("socket: chmod %s: %w", cfg.SocketPath, err)
	}

	if err := writePIDFile(pidPath); err != nil {
		listener.Close()
		removeIfExists(cfg.SocketPath)
		return nil, err
	}

	return &Server{
		socketPath: cfg.SocketPath,
		pidPath:    pidPath,
		dispatcher: cfg.Dispatcher,
		broadcast:  cfg.Broadcast,
		logger:     logger,
		listener:   listener,
		conns:      make(map[string]*clientConn),
	}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is closed
// by [Server.Close]. It returns nil on a clean shutdown.
//
// An errgroup supervises two tasks: the accept loop, and a watcher that
// closes the listener when ctx is cancelled, so a context cancellation
// unblocks a pending Accept the same way Close does.
func (s *Server) Serve(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		<-egCtx.Done()
		s.listener.Close()
		return nil
	})

	eg.Go(func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("socket: accept: %w", err)
			}
			s.handleConn(ctx, conn)
		}
	})

	err := eg.Wait()
	s.wg.Wait()
	return err
}

// handleConn registers a fresh [clientConn] and spawns its reader/writer
// goroutines.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	cc := newClientConn(uuid.NewString(), conn, s)

	s.mu.Lock()
	s.conns[cc.id] = cc
	s.mu.Unlock()

	s.logger.Info("client connected", "client_id", cc.id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cc.serve(ctx, s.dispatcher)

		s.mu.Lock()
		delete(s.conns, cc.id)
		s.mu.Unlock()

		if s.broadcast != nil {
			s.broadcast.Unsubscribe(cc.id)
		}
		s.logger.Info("client disconnected", "client_id", cc.id)
	}()
}

// Close closes the listener, which causes [Server.Serve] to return, closes
// every active connection, and releases the socket file and PID file.
func (s *Server) Close() error {
	s.listener.Close()

	s.mu.Lock()
	conns := make([]*clientConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()

	removeIfExists(s.socketPath)
	removeIfExists(s.pidPath)
	return nil
}
