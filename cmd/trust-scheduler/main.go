package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/obs"
	"github.com/NordCoder/Trustwatch/internal/obs/retry"
	pg "github.com/NordCoder/Trustwatch/internal/repository/postgres"
	scheduler "github.com/NordCoder/Trustwatch/internal/services/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/trustpool"
)

func main() {
	cfgPath := flag.String("config", "config/trust-scheduler.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting trust-scheduler",
		zap.Duration("tick", cfg.Sched.Tick),
		zap.String("baseline", cfg.Baseline.Name),
		zap.Bool("kafka", cfg.Kafka.Enable),
		zap.Bool("redis", cfg.Redis.Enable),
	)

	// otel
	otelShutdown, err := initOTel(ctx, cfg)
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// db
	db, err := initDB(ctx, cfg)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// adapters
	reg, err := initAdapters(cfg, l)
	if err != nil {
		l.Fatal("adapters", zap.Error(err))
	}

	deps := scheduler.Deps{
		Checks:   pg.NewCheckRepo(db, pg.NewTransactor(db, l)),
		Results:  pg.NewResultRepo(db),
		Nodes:    pg.NewNodeRepo(db),
		Switch:   pg.NewSettingsRepo(db),
		Registry: reg,
		Pool:     trustpool.New(),
		Metrics:  scheduler.NewMetrics(prometheus.DefaultRegisterer),
	}

	// kafka
	var kh *kafkaHandles
	if cfg.Kafka.Enable {
		kh = initKafka(ctx, cfg, l)
		defer kh.Close()
		deps.Events = kh.events
	}

	// redis
	if cfg.Redis.Enable {
		mirror, closeRedis, err := initRedis(ctx, cfg, l)
		if err != nil {
			l.Fatal("redis connect", zap.Error(err))
		}
		defer closeRedis()
		deps.Mirror = mirror
	}

	// wiring
	uc := scheduler.NewUC(l, deps, scheduler.Options{
		Tick:           cfg.Sched.Tick,
		RunImmediately: cfg.Sched.RunImmediately,
		Baseline:       cfg.Baseline.AsDefinition(),
		ResultRetry:    retry.DefaultResultPolicy(l, cfg.Sched.ResultRetryAttempts),
	})
	if err := uc.Init(ctx); err != nil {
		l.Fatal("scheduler init", zap.Error(err))
	}
	runner := scheduler.New(l, uc, &cfg.Sched, nil, prometheus.DefaultRegisterer)

	// run metrics server
	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, prometheus.DefaultGatherer, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l, trustPoolRoute(uc, l))

	grpcServer, hs, grpcLn, err := buildGRPCServer(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		l.Fatal("build grpc", zap.Error(err))
	}

	// run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return serveGRPC(grpcServer, grpcLn, cfg, l) })
	g.Go(func() error {
		watchPoolHealth(gctx, hs, uc, cfg.Sched.Tick)
		<-gctx.Done()
		grpcServer.GracefulStop()
		return nil
	})
	if kh != nil {
		ctrl := &scheduler.Controller{Log: l, Sub: kh.nodes, UC: uc}
		g.Go(func() error { return ctrl.Run(gctx) })
	}

	l.Info("trust-scheduler started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("trust-scheduler stopped", zap.Error(err))
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
