// Package events publishes evaluation results to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"payguard/internal/fraud/metrics"
)

// Publisher produces JSON records asynchronously. Publish returns once the
// record is buffered; delivery failures are logged and counted, never
// returned.
type Publisher struct {
	client  *kgo.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// NewKafka creates a producer for brokers. No connection is made until the
// first produce or Ping.
func NewKafka(brokers []string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Publisher{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish encodes payload as JSON and produces it to topic under key. The
// produce outlives ctx's cancellation so a finished request cannot abort
// delivery.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.metrics.IncrementSideEffectFailure("publish")
		p.logger.Error("event delivery failed",
			"topic", r.Topic,
			"key", string(r.Key),
			"error", err,
		)
	})
	return nil
}

// EnsureTopic creates topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, topic string, partitions int32, replicas int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Health pings the cluster.
func (p *Publisher) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records, bounded by ctx, and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
