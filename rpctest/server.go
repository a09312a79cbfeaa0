// Package rpctest provides in-process fakes of the local Discord RPC
// servers for tests and local development.
package rpctest

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/Zereker/discordrpc"
)

// Handler serves a single accepted IPC connection.
// The connection is closed when Handle returns.
type Handler interface {
	Handle(ctx context.Context, p *Peer)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, p *Peer)

// Handle calls f(ctx, p).
func (f HandlerFunc) Handle(ctx context.Context, p *Peer) {
	f(ctx, p)
}

// Server listens where the IPC transport looks for the Discord client.
type Server struct {
	listener net.Listener
	path     string
	logger   discordrpc.Logger

	mu       sync.Mutex
	shutdown bool
	peers    map[*Peer]struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger discordrpc.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewIPCServer listens on IPC endpoint index under dir: the socket
// dir/discord-ipc-<index> on Unix, the named pipe discord-ipc-<index> on
// Windows where dir is ignored.
func NewIPCServer(dir string, index int, opts ...ServerOption) (*Server, error) {
	listener, path, err := listenIPC(dir, index)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on ipc endpoint %d", index)
	}

	s := &Server{
		listener: listener,
		path:     path,
		logger:   slog.Default(),
		peers:    make(map[*Peer]struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and hands each to handler on its own goroutine.
// It blocks until ctx is canceled or Close is called, then closes every
// open connection and waits for the handlers to return.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "path", s.path)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.closePeers()
				s.wg.Wait()
				s.logger.Info("server stopped", "path", s.path)
				return ctx.Err()
			}

			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "path", s.path)
		p := NewPeer(conn)

		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(p)
			handler.Handle(ctx, p)
		}()
	}
}

func (s *Server) release(p *Peer) {
	_ = p.Close()

	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

func (s *Server) closePeers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.peers {
		_ = p.Close()
	}
}

// Close stops accepting connections and closes the open ones.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	close(s.done)
	s.mu.Unlock()

	err := s.listener.Close()
	s.closePeers()
	return err
}

// Path returns the socket path or pipe name the server listens on.
func (s *Server) Path() string {
	return s.path
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
