package grpc

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health check name other services probe.
const ServiceName = "classroom.v1"

// NewServer builds the internal gRPC server: token-guarded, traced, with the
// standard health service registered and reporting SERVING.
func NewServer(serviceToken string) (*grpc.Server, *health.Server, error) {
	unary, err := NewServiceAuthUnaryInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	stream, err := NewServiceAuthStreamInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(unary),
		grpc.StreamInterceptor(stream),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}

// WatchDatabase flips the classroom health status to NOT_SERVING while ping
// fails and back once it recovers. It returns when ctx is done.
func WatchDatabase(ctx context.Context, healthServer *health.Server, ping func(context.Context) error, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		serving := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, interval/2)
				err := ping(pingCtx)
				cancel()
				switch {
				case err != nil && serving:
					log.Printf("database health check failed: %v", err)
					healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
					serving = false
				case err == nil && !serving:
					log.Printf("database health check recovered")
					healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
					serving = true
				}
			}
		}
	}()
}
