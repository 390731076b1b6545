package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/obs"
	kafkaRepo "github.com/NordCoder/Trustwatch/internal/repository/kafka"
)

func main() {
	cfgPath := flag.String("config", "config/trust-scheduler.yaml", "path to config file")
	extra := flag.String("topics", "", "comma separated topics to create besides the configured ones")
	partitions := flag.Int("partitions", 1, "partitions per topic")
	rf := flag.Int("rf", 1, "replication factor")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l = l.With(zap.String("component", "kafka-init"))

	topics := []string{cfg.Kafka.TrustTopic, cfg.Kafka.NodesTopic}
	topics = append(topics, strings.Split(*extra, ",")...)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{
			Name:              t,
			NumPartitions:     *partitions,
			ReplicationFactor: *rf,
			MaxWait:           30 * time.Second,
		}, l); err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("brokers", cfg.Kafka.Brokers))
}
