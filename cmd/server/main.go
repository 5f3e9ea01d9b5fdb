package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payguard/internal/fraud/alert"
	"payguard/internal/fraud/features"
	"payguard/internal/fraud/handler"
	fraudmetrics "payguard/internal/fraud/metrics"
	"payguard/internal/fraud/pipeline"
	"payguard/internal/fraud/ports"
	"payguard/internal/fraud/rules"
	"payguard/internal/fraud/scoring"
	"payguard/internal/fraud/store/counter"
	"payguard/internal/fraud/store/rule"
	"payguard/internal/fraud/store/transaction"
	"payguard/internal/fraud/velocity"
	"payguard/internal/platform/config"
	"payguard/internal/platform/httpserver"
	"payguard/internal/platform/logger"
	httpmetrics "payguard/internal/platform/metrics"
	"payguard/pkg/email"
	"payguard/pkg/platform/audit"
	"payguard/pkg/platform/circuit"
	"payguard/pkg/platform/middleware/metadata"
)

const (
	dailyWindow     = 24 * time.Hour
	dailyKeyPrefix  = "velocity:user:day:"
	sweepInterval   = time.Minute
	drainingTimeout = 10 * time.Second
	ruleWarmTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires dependencies, serves HTTP until SIGINT/SIGTERM, then drains side
// effects and releases backing services.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := fraudmetrics.New(reg)

	in, err := openInfra(ctx, cfg, log, m)
	if err != nil {
		return err
	}

	auditor := audit.NewLogEmitter(log)
	breakers := circuit.NewRegistry(
		circuit.WithFailureThreshold(cfg.Pipeline.BreakerThreshold),
		circuit.WithCooldown(cfg.Pipeline.BreakerCooldown),
		circuit.WithTransitionHook(breakerHook(m, auditor)),
	)

	svc, dispatcher, err := buildPipeline(ctx, cfg, in, breakers, m, auditor, log)
	if err != nil {
		in.close(context.Background(), log)
		return err
	}

	router := chi.NewRouter()
	router.Use(metadata.Middleware)
	router.Use(httpmetrics.New(reg).Middleware)
	router.Use(middleware.Recoverer)

	opts := []handler.Option{handler.WithBreakers(breakers), handler.WithLogger(log)}
	if in.redis != nil {
		opts = append(opts, handler.WithCheck("redis", in.redis.Health))
	}
	if in.db != nil {
		opts = append(opts, handler.WithCheck("postgres", in.db.PingContext))
	}
	if in.kafka != nil {
		opts = append(opts, handler.WithCheck("kafka", in.kafka.Health))
	}
	handler.New(svc, opts...).Register(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := httpserver.New(cfg.Server.Addr, router)
	serveErr := httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainingTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Error("side effects not drained", "error", err, "dropped", dispatcher.Dropped())
	}
	in.close(drainCtx, log)
	return serveErr
}

func buildPipeline(
	ctx context.Context,
	cfg config.Config,
	in *infra,
	breakers *circuit.Registry,
	m *fraudmetrics.Metrics,
	auditor audit.Emitter,
	log *slog.Logger,
) (*pipeline.Service, *pipeline.Dispatcher, error) {
	var counters ports.CounterStore
	if in.redis != nil {
		counters = counter.NewRedis(in.redis)
	} else {
		mem := counter.NewMemory()
		go sweep(ctx, mem)
		counters = mem
	}
	hourly, daily, err := velocityCounters(counters, cfg.Pipeline.VelocityWindow, log)
	if err != nil {
		return nil, nil, err
	}

	var (
		ruleStore   ports.RuleStore
		persistence ports.Persistence
	)
	if in.db != nil {
		ruleStore = rule.NewPostgres(in.db)
		persistence = transaction.NewPostgres(in.db)
	} else {
		ruleStore = rule.NewMemory()
		persistence = transaction.NewMemory()
	}
	cache, err := rules.NewCache(ruleStore, rules.WithTTL(cfg.Pipeline.RuleCacheTTL), rules.WithCacheLogger(log))
	if err != nil {
		return nil, nil, err
	}
	warmCtx, cancel := context.WithTimeout(ctx, ruleWarmTimeout)
	if err := cache.Warm(warmCtx); err != nil {
		log.Warn("rule cache not warmed, first evaluations load rules inline", "error", err)
	}
	cancel()

	builtins := rules.DefaultBuiltinConfig()
	builtins.VelocityThreshold = cfg.Pipeline.VelocityThreshold
	builtins.DailyVelocityThreshold = cfg.Pipeline.DailyThreshold
	engine, err := rules.New(
		breakers.Get("rules", circuit.WithTimeout(cfg.Pipeline.RulesTimeout)),
		rules.WithBuiltins(rules.Builtins(builtins)...),
		rules.WithSource(cache),
		rules.WithLogger(log),
		rules.WithMetrics(m),
	)
	if err != nil {
		return nil, nil, err
	}

	var model ports.ScoringService
	if cfg.Scoring.URL != "" {
		client, err := scoring.NewClient(cfg.Scoring.URL,
			scoring.WithHTTPClient(&http.Client{Timeout: cfg.Scoring.Timeout}))
		if err != nil {
			return nil, nil, err
		}
		model = client
	} else {
		log.Warn("SCORING_URL not set, risk scores come from the fallback heuristic")
	}
	scorer, err := scoring.New(model,
		breakers.Get("scoring", circuit.WithTimeout(cfg.Scoring.Timeout)),
		scoring.WithLogger(log),
		scoring.WithMetrics(m),
	)
	if err != nil {
		return nil, nil, err
	}

	recipients, err := email.NormalizeRecipients(cfg.Alerts.EmailRecipients)
	if err != nil {
		return nil, nil, err
	}
	notifier := alert.New(
		alert.WithChatWebhook(cfg.Alerts.ChatWebhookURL),
		alert.WithEmailWebhook(cfg.Alerts.EmailWebhookURL, recipients...),
		alert.WithHTTPClient(&http.Client{Timeout: cfg.Alerts.Timeout}),
		alert.WithAudit(auditor),
		alert.WithLogger(log),
	)

	dispatchOpts := []pipeline.DispatcherOption{
		pipeline.WithPersistence(persistence),
		pipeline.WithNotifier(notifier),
		pipeline.WithTopic(cfg.Kafka.Topic),
		pipeline.WithAlertThreshold(cfg.Pipeline.AlertThreshold),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithJobTimeout(cfg.Pipeline.SideEffectTimeout),
		pipeline.WithPersistRetries(cfg.Pipeline.PersistRetries, 0),
		pipeline.WithDispatcherLogger(log),
		pipeline.WithDispatcherMetrics(m),
	}
	if in.kafka != nil {
		dispatchOpts = append(dispatchOpts, pipeline.WithPublisher(in.kafka))
	}
	dispatcher := pipeline.NewDispatcher(dispatchOpts...)

	svc, err := pipeline.New(hourly, engine, scorer,
		breakers.Get("pipeline", circuit.WithTimeout(cfg.Pipeline.Timeout)),
		pipeline.WithDailyVelocity(daily),
		pipeline.WithFeatureBuilder(features.NewBuilder(features.WithLocation(cfg.Location()))),
		pipeline.WithDispatcher(dispatcher),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		_ = dispatcher.Close(context.Background())
		return nil, nil, err
	}
	return svc, dispatcher, nil
}

// velocityCounters builds the hourly and 24h windows over one store.
func velocityCounters(store ports.CounterStore, window time.Duration, log *slog.Logger) (*velocity.Counter, *velocity.Counter, error) {
	hourly, err := velocity.New(store, velocity.WithWindow(window), velocity.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	daily, err := velocity.New(store,
		velocity.WithWindow(dailyWindow),
		velocity.WithKeyPrefix(dailyKeyPrefix),
		velocity.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	return hourly, daily, nil
}

// breakerHook exports every transition as a gauge and audits opens and
// recoveries.
func breakerHook(m *fraudmetrics.Metrics, auditor audit.Emitter) circuit.TransitionFunc {
	return func(name string, from, to circuit.State) {
		m.RecordBreakerTransition(name, from, to)

		var action audit.Action
		switch to {
		case circuit.StateOpen:
			action = audit.ActionBreakerOpened
		case circuit.StateClosed:
			action = audit.ActionBreakerClosed
		default:
			return
		}
		auditor.Emit(context.Background(), audit.Event{
			Category:  audit.CategoryOperations,
			Action:    action,
			Timestamp: time.Now().UTC(),
			Subject:   name,
			Attrs:     map[string]any{"from": from.String()},
		})
	}
}

// sweep evicts expired in-memory counters until ctx ends.
func sweep(ctx context.Context, store *counter.InMemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}
