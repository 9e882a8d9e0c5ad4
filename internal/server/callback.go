package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackServer is a short-lived listener that serves a single [OAuthHandler].
type CallbackServer struct {
	handler *OAuthHandler
	server  *http.Server
	ln      net.Listener
	errs    chan error
}

// StartCallbackServer binds addr and serves handler in the background.
// Binding happens before returning so a port conflict is reported right away.
func StartCallbackServer(addr string, handler *OAuthHandler, logger *log.Logger) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &CallbackServer{
		handler: handler,
		server:  &http.Server{Handler: newCallbackRouter(handler, logger), ReadHeaderTimeout: 10 * time.Second},
		ln:      ln,
		errs:    make(chan error, 1),
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()

	return s, nil
}

// Addr is the bound address, useful when addr used port 0.
func (s *CallbackServer) Addr() string { return s.ln.Addr().String() }

// URL is the full callback URL.
func (s *CallbackServer) URL() string { return "http://" + s.Addr() + CallbackPath }

// Wait blocks until the callback delivers a token, the server fails, ctx ends or timeout elapses.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return nil, err
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case err := <-s.errs:
		return nil, fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	}
}

// Shutdown stops the listener.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
