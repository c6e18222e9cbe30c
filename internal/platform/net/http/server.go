package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"repoharvest/internal/platform/logger"
)

const shutdownGrace = 5 * time.Second

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer creates a server for addr; opts receive the *chi.Mux to mount routes and middleware
func NewServer(addr string, opts ...func(*chi.Mux)) *Server {
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the configured listening address
func (s *Server) Addr() string { return s.addr }

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("http listening")

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			return err
		}
		<-errc
		return nil
	}
}
