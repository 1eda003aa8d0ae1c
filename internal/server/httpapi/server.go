// Package httpapi is the HTTP surface of the service: the authenticated
// JSON-RPC endpoint, token minting and, with the local storage backend,
// the signed blob endpoints.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Tokens mints and verifies bearer tokens.
type Tokens interface {
	Mint(ctx context.Context) (string, error)
	Verify(ctx context.Context, token string) error
}

// Blobs serves uploads and downloads through signed blob tokens.
type Blobs interface {
	Receive(ctx context.Context, token string, body io.Reader) (int64, error)
	Open(ctx context.Context, token string) (io.ReadCloser, error)
}

type HTTPServer struct {
	address    string
	tokens     Tokens
	secret     string
	dispatcher http.Handler
	blobs      Blobs
	logger     logging.Logger
}

// NewHTTPServer builds the server. blobs may be nil, in which case the
// /blobs routes are not mounted.
func NewHTTPServer(address string, l logging.Logger, tokens Tokens, secret string, dispatcher http.Handler, blobs Blobs) *HTTPServer {
	return &HTTPServer{
		address:    address,
		tokens:     tokens,
		secret:     secret,
		dispatcher: dispatcher,
		blobs:      blobs,
		logger:     l.With("module", "http_server"),
	}
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/auth-token", s.mintToken)
	r.With(s.requireToken).Post("/rpc", s.dispatcher.ServeHTTP)

	if s.blobs != nil {
		r.Put("/blobs/{token}", s.receiveBlob)
		r.Get("/blobs/{token}", s.sendBlob)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
