package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

// NewSupervisor returns the root supervisor; every long-running part of the
// process is added to it as a suture.Service.
func NewSupervisor(name string, log *slog.Logger) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: log}
	return suture.New(name, suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   shutdownTimeout,
	})
}

// GRPCService serves a gRPC server until its context ends, then stops it gracefully.
type GRPCService struct {
	Addr   string
	Server *grpc.Server
}

func (s *GRPCService) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.Server.GracefulStop()
	}()

	err = s.Server.Serve(lis)
	if ctx.Err() != nil {
		<-stopped
		return ctx.Err()
	}
	return err
}

func (s *GRPCService) String() string { return "grpc " + s.Addr }

// HTTPService runs an http.Server until its context ends.
type HTTPService struct {
	Server *http.Server
}

func (s *HTTPService) Serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http " + s.Server.Addr }
