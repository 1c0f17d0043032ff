package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "navalha.v1.Booking"

// GRPCServer exposes the standard health service and reflection for orchestration probes.
type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	health   *health.Server
	ready    ReadinessFunc
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, ready ReadinessFunc, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(cfg, lis, ready, logger)
}

func newGRPCServer(cfg *config.APIConfig, lis net.Listener, ready ReadinessFunc, logger *zerolog.Logger) (*GRPCServer, error) {
	auth := NewAuthInterceptor(cfg)
	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			LoggingUnaryInterceptor(logger),
			auth.Unary(),
		)),
		grpc.ChainStreamInterceptor(
			LoggingStreamInterceptor(logger),
			auth.Stream(),
		),
	}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	setServing(hs, healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		health:   hs,
		ready:    ready,
		listener: lis,
		log:      serverLogger,
	}, nil
}

func setServing(hs *health.Server, st healthpb.HealthCheckResponse_ServingStatus) {
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("grpc tls enabled but cert_file/key_file not set")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("grpc tls require_client_cert=true but client_ca_file not set")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client_ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse client_ca_file PEM")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// RefreshHealth probes readiness once and publishes the result.
func (s *GRPCServer) RefreshHealth(ctx context.Context) bool {
	st := healthpb.HealthCheckResponse_SERVING
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	setServing(s.health, st)
	return st == healthpb.HealthCheckResponse_SERVING
}

// WatchHealth refreshes the health status every interval until ctx is done.
func (s *GRPCServer) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RefreshHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshHealth(ctx)
		}
	}
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
