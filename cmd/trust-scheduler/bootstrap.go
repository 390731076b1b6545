package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/obs"
	"github.com/NordCoder/Trustwatch/internal/obs/retry"
	kafkaRepo "github.com/NordCoder/Trustwatch/internal/repository/kafka"
	pg "github.com/NordCoder/Trustwatch/internal/repository/postgres"
	redisRepo "github.com/NordCoder/Trustwatch/internal/repository/redis"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}

func initAdapters(cfg *config.Config, logger *zap.Logger) (*adapters.Registry, error) {
	reg := adapters.NewRegistry(cfg.Baseline.Name)
	err := adapters.Build(reg, cfg.Adapters.Enabled, adapters.CatalogDeps{
		Log:         logger,
		Attestation: cfg.Adapters.AsAttestationConfig(),
		Trusted:     cfg.Adapters.Static.Trusted,
		Untrusted:   cfg.Adapters.Static.Untrusted,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("adapters registered", zap.Strings("names", cfg.Adapters.Enabled))
	return reg, nil
}

type kafkaHandles struct {
	producer *kafkaRepo.Producer
	events   *kafkaRepo.TrustEventsKafka
	nodes    *kafkaRepo.Consumer
}

func (k *kafkaHandles) Close() {
	if k == nil {
		return
	}
	_ = k.producer.Close()
	_ = k.nodes.Close()
}

func initKafka(ctx context.Context, cfg *config.Config, logger *zap.Logger) *kafkaHandles {
	_ = kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{
		Name:              cfg.Kafka.TrustTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger)
	prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TrustTopic).WithLogger(logger)

	pol := retry.DefaultKafkaPolicy(logger)
	pol.Attempts = 3

	nodes := kafkaRepo.BootstrapConsumer(ctx, &kafkaRepo.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.NodesTopic,
		Logger:  logger,
	}, logger)

	return &kafkaHandles{
		producer: prod,
		events:   kafkaRepo.NewTrustEventsKafka(prod, pol),
		nodes:    nodes,
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redisRepo.PoolMirror, func(), error) {
	mirror, client, err := redisRepo.NewPoolMirror(ctx, redisRepo.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Key:      cfg.Redis.Key,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return mirror, func() { _ = client.Close() }, nil
}

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}
