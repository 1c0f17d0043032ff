package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current, next := interceptors[i], chained
			chained = func(c context.Context, r any) (any, error) {
				return current(c, r, info, next)
			}
		}
		return chained(ctx, req)
	}
}

const requestIDMetadataKey = "x-request-id"

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)

		base.Info().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ctx)).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

// LoggingStreamInterceptor logs stream calls (health Watch, reflection) once they end.
func LoggingStreamInterceptor(logger *zerolog.Logger) grpc.StreamServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		base.Info().
			Str("request_id", requestIDFromMetadata(ss.Context())).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ss.Context())).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc stream")
		return err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if id := first(metadataValues(ctx, requestIDMetadataKey)); id != "" {
		return id
	}
	return uuid.NewString()
}

func metadataValues(ctx context.Context, key string) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	return md.Get(key)
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}
