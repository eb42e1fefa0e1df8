package server

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-matching/internal/config"
)

// NewGRPCServer builds a gRPC server with all provided services registered.
func NewGRPCServer(registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer()

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}
	return grpcServer
}

// GRPCAddr is the listen address from config.
func GRPCAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
}
