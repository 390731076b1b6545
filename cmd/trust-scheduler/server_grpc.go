package main

import (
	"context"
	"net"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/obs"
	scheduler "github.com/NordCoder/Trustwatch/internal/services/trust-scheduler"
)

// poolService is the health service name placement clients watch: SERVING
// while periodic checks are on, NOT_SERVING otherwise.
const poolService = "trustwatch.TrustPool"

func buildGRPCServer(cfg *config.Config, reg prometheus.Registerer) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	grpcMetrics.InitializeMetrics(grpcServer)
	if err := reg.Register(grpcMetrics); err != nil {
		return nil, nil, nil, err
	}

	ln, err := net.Listen("tcp", cfg.Sched.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Sched.GRPCAddr))
	return s.Serve(ln)
}

// watchPoolHealth mirrors the periodic checks switch into the health server.
func watchPoolHealth(ctx context.Context, hs *health.Server, uc *scheduler.Usecase, every time.Duration) {
	set := func() {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if uc.Enabled() {
			st = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(poolService, st)
	}
	set()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			set()
		}
	}
}
