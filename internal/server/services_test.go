package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/logger"
)

func runUntilCanceled(t *testing.T, serve func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestGRPCServiceStopsWithContext(t *testing.T) {
	svc := &GRPCService{Addr: "127.0.0.1:0", Server: NewGRPCServer()}
	runUntilCanceled(t, svc.Serve)
}

func TestHTTPServiceStopsWithContext(t *testing.T) {
	svc := &HTTPService{Server: &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}}
	runUntilCanceled(t, svc.Serve)
}

func TestGRPCAddr(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, "127.0.0.1:50051", GRPCAddr(cfg))
}

func TestSupervisorRunsServices(t *testing.T) {
	sup := NewSupervisor("test", logger.Nop())
	sup.Add(&GRPCService{Addr: "127.0.0.1:0", Server: NewGRPCServer()})

	ctx, cancel := context.WithCancel(context.Background())
	errc := sup.ServeBackground(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
