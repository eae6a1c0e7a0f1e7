package server

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// loggingInterceptor logs each call and converts handler panics to Internal.
func loggingInterceptor(logger hclog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			args := []any{"method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start)}
			switch code {
			case codes.OK:
				logger.Debug("request", args...)
			case codes.Internal, codes.Unavailable, codes.DataLoss:
				logger.Error("request failed", append(args, "error", err)...)
			default:
				logger.Debug("request rejected", append(args, "error", err)...)
			}
		}()
		return handler(ctx, req)
	}
}

// timeoutInterceptor bounds each call by d unless the caller set a sooner deadline.
func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

// skipHealth applies next to every service except the health service.
func skipHealth(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	prefix := "/" + grpc_health_v1.Health_ServiceDesc.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		return next(ctx, req, info, handler)
	}
}
