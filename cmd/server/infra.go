package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"payguard/internal/fraud/events"
	fraudmetrics "payguard/internal/fraud/metrics"
	"payguard/internal/platform/config"
	"payguard/internal/platform/postgres"
	"payguard/internal/platform/redis"
)

// infra holds the optional backing services. A nil field means the service
// is not configured and the in-memory or no-op variant is used instead.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	kafka *events.Publisher
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger, m *fraudmetrics.Metrics) (*infra, error) {
	in := &infra{}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	in.redis = rc
	if rc == nil {
		log.Warn("REDIS_URL not set, velocity counters are process-local")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		in.close(context.Background(), log)
		return nil, err
	}
	in.db = db
	if db == nil {
		log.Warn("DATABASE_URL not set, rules and evaluations are kept in memory")
	} else if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			in.close(context.Background(), log)
			return nil, err
		}
		log.Info("database migrations applied")
	}

	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, evaluation events are not published")
		return in, nil
	}
	pub, err := events.NewKafka(cfg.Kafka.Brokers, events.WithLogger(log), events.WithMetrics(m))
	if err != nil {
		in.close(context.Background(), log)
		return nil, err
	}
	in.kafka = pub

	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pub.EnsureTopic(topicCtx, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
		log.Warn("could not ensure kafka topic, relying on broker auto-create",
			"topic", cfg.Kafka.Topic,
			"error", err,
		)
	}
	return in, nil
}

// close flushes the producer and releases connections.
func (in *infra) close(ctx context.Context, log *slog.Logger) {
	var errs []error
	if in.kafka != nil {
		errs = append(errs, in.kafka.Close(ctx))
	}
	if in.redis != nil {
		errs = append(errs, in.redis.Close())
	}
	if in.db != nil {
		errs = append(errs, in.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("error releasing backing services", "error", err)
	}
}
