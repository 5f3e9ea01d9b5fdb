package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"payguard/internal/fraud/metrics"
	"payguard/internal/fraud/models"
	"payguard/internal/fraud/ports"
)

const (
	DefaultTopic          = "fraud.transactions"
	DefaultAlertThreshold = 0.6

	defaultWorkers      = 4
	defaultQueueSize    = 1024
	defaultJobTimeout   = 5 * time.Second
	defaultRetries      = 3
	defaultRetryBackoff = 50 * time.Millisecond
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Job is one completed evaluation waiting for its side effects.
type Job struct {
	Request  models.TransactionRequest
	Result   models.EvaluationResult
	Features models.FeatureVector
}

// Dispatcher runs persist, publish and alert for completed evaluations on a
// bounded worker pool. It never touches the request context: each job gets a
// fresh background context with its own timeout.
type Dispatcher struct {
	persistence ports.Persistence
	publisher   ports.EventPublisher
	notifier    ports.Notifier

	topic          string
	alertThreshold float64
	workers        int
	queueSize      int
	jobTimeout     time.Duration
	retries        uint64
	retryBackoff   time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	jobs    chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithPersistence(p ports.Persistence) DispatcherOption {
	return func(d *Dispatcher) { d.persistence = p }
}

func WithPublisher(p ports.EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

func WithNotifier(n ports.Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithTopic sets the topic evaluation events are published to.
func WithTopic(topic string) DispatcherOption {
	return func(d *Dispatcher) {
		if topic != "" {
			d.topic = topic
		}
	}
}

// WithAlertThreshold sets the score above which the notifier is called.
func WithAlertThreshold(v float64) DispatcherOption {
	return func(d *Dispatcher) { d.alertThreshold = v }
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithJobTimeout bounds all side effects of one job together.
func WithJobTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.jobTimeout = timeout
		}
	}
}

// WithPersistRetries sets how many times a failed save is retried with
// exponential backoff.
func WithPersistRetries(retries uint64, backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.retries = retries
		if backoff > 0 {
			d.retryBackoff = backoff
		}
	}
}

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates the dispatcher and starts its workers. Collaborators
// left unset are skipped.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		topic:          DefaultTopic,
		alertThreshold: DefaultAlertThreshold,
		workers:        defaultWorkers,
		queueSize:      defaultQueueSize,
		jobTimeout:     defaultJobTimeout,
		retries:        defaultRetries,
		retryBackoff:   defaultRetryBackoff,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.jobs = make(chan Job, d.queueSize)
	for range d.workers {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Enqueue hands a job to the pool without blocking. It reports false when the
// queue is full or the dispatcher is closed; the job is then dropped.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		d.dropped.Add(1)
		d.metrics.IncrementDispatchDropped()
		d.logger.Warn("dispatch queue full, dropping side effects",
			"transaction_id", job.Result.TransactionID.String(),
		)
		return false
	}
}

// Dropped returns how many jobs were dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting jobs and waits for queued ones to finish or for ctx
// to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.handle(job)
	}
}

// handle runs the side effects in order. A failed save does not stop the
// event or the alert.
func (d *Dispatcher) handle(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	txID := job.Result.TransactionID.String()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("side effect panicked", "transaction_id", txID, "panic", fmt.Sprint(r))
		}
	}()

	if d.persistence != nil {
		if err := d.persist(ctx, job); err != nil {
			d.metrics.IncrementSideEffectFailure("persist")
			d.logger.ErrorContext(ctx, "failed to persist evaluation", "transaction_id", txID, "error", err)
		}
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, d.topic, txID, job.Result); err != nil {
			d.metrics.IncrementSideEffectFailure("publish")
			d.logger.ErrorContext(ctx, "failed to publish evaluation", "transaction_id", txID, "error", err)
		}
	}

	if d.notifier != nil && job.Result.FinalRiskScore > d.alertThreshold {
		if err := d.notifier.Notify(ctx, job.Result); err != nil {
			d.metrics.IncrementSideEffectFailure("notify")
			d.logger.ErrorContext(ctx, "failed to send alert", "transaction_id", txID, "error", err)
		}
	}
}

func (d *Dispatcher) persist(ctx context.Context, job Job) error {
	backoff := retry.WithMaxRetries(d.retries, retry.NewExponential(d.retryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := d.persistence.Save(ctx, job.Request, job.Result, job.Features)
		if err != nil {
			return retry.RetryableError(err)
		}
		d.logger.DebugContext(ctx, "evaluation persisted",
			"transaction_id", job.Result.TransactionID.String(),
			"record_id", id,
		)
		return nil
	})
}
