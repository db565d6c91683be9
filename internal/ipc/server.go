package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"gamepadd/internal/logging"
)

// Handler processes IPC requests.
type Handler interface {
	// HandleMessage processes a request and returns the response.
	HandleMessage(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Server accepts control connections on a Unix socket.
type Server struct {
	socketPath string
	handler    Handler
	log        *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server; Start binds the socket.
func NewServer(socketPath string, handler Handler, log *logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log,
		conns:      make(map[net.Conn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the socket and begins accepting connections. A stale
// socket left by a crashed daemon is removed first.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener)

	s.log.Info("control socket listening", "path", s.socketPath)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
			default:
				s.log.Error("accept failed", "error", err)
			}
			return
		}

		ok, err := VerifyPeerIsCurrentUser(conn)
		if err != nil || !ok {
			s.log.Warn("rejecting control connection from foreign user", "error", err)
			conn.Close()
			continue
		}

		// Tracked so Stop can close idle clients instead of waiting
		// for them to hang up.
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn handles one client's request/response exchanges.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("control connection closed", "error", err)
			}
			return
		}

		resp, err := s.handler.HandleMessage(s.ctx, msg)
		if err != nil {
			resp = ErrorMessage(msg.ID, "%v", err)
		}
		if resp == nil {
			continue
		}
		if err := WriteMessage(conn, resp); err != nil {
			return
		}
	}
}

// Stop closes the listener and all open client connections, waits for
// the connection goroutines, and removes the socket file. Closing the
// connections unblocks serveConn's pending reads, so an idle client
// cannot stall daemon shutdown.
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	_ = os.Remove(s.socketPath)
}
