package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 120 * time.Second
)

// HTTPServer serves a handler in the background until it is closed.
// An addr with port 0 binds to a free port, see HTTPEndpoint.
type HTTPServer struct {
	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// StartHTTPServer binds addr and serves handler on it.
func StartHTTPServer(addr string, handler http.Handler) (*HTTPServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind to address %q: %w", addr, err)
	}
	s := &HTTPServer{
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		listener: listener,
		done:     make(chan error, 1),
	}
	go func() {
		s.done <- s.srv.Serve(listener)
	}()
	return s, nil
}

// HTTPEndpoint is the URL the server is reachable at, empty once closed.
func (s *HTTPServer) HTTPEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for active ones until ctx is done,
// then closes the rest.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	if errors.Is(err, ctx.Err()) {
		err = s.srv.Close()
	}
	s.listener = nil
	if serveErr := <-s.done; !errors.Is(serveErr, http.ErrServerClosed) {
		return errors.Join(err, serveErr)
	}
	return err
}

// Close shuts the server down, giving active requests a second to complete.
func (s *HTTPServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
