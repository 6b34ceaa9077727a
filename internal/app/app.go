package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/shell"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	shutdownTimeout    = 5 * time.Second
	outboxDrainTimeout = 3 * time.Second
)

// Run поднимает хранилище, сервисы, outbox worker и (опционально) HTTP с метриками,
// затем ведёт интерактивную сессию на in/out до quit, EOF или отмены ctx.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	logger := log.WithField("component", "app")

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(store, logger)

	registry := newRegistry()
	deps, err := NewDependencies(cfg, store, registry, logger)
	if err != nil {
		return err
	}
	if err := deps.SeedAdmin(ctx, cfg.AdminPassword, logger); err != nil {
		return err
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil {
		logger.WithError(err).Warn("order events will be written to the log instead of kafka")
	}
	defer closeKafka(producer, logger)

	publisher, dlq := outboxPublishers(cfg, producer, logger)
	workerOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(outbox.NewWorkerMetrics(registry)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(dlq))
	}
	worker := outbox.NewWorker(deps.Outbox, publisher, workerOpts...)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	healthHandler := health.NewHandler(version.Version())
	healthHandler.RegisterChecker("storage", health.NewStorageChecker(store))
	healthHandler.RegisterChecker("outbox", health.NewOutboxChecker(deps.Outbox, cfg.OutboxMaxAge))

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(ctx, cfg.MetricsAddr, registry, logger, healthHandler)
	}

	session := shell.NewSession(deps.ShellServices(), out,
		shell.WithLogger(logger.WithField("component", "shell")),
		shell.WithCurrency(cfg.Currency, cfg.CurrencyScale),
	)
	runErr := session.Run(ctx, in)

	shutdownOutboxWorker(cancelWorker, workerDone, logger)
	drainOutbox(worker, logger)
	shutdownHTTP(metricsSrv, logger)

	return runErr
}

// newRegistry создаёт реестр метрик процесса. Отдельный реестр на запуск позволяет
// вызывать Run повторно в одном процессе.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// startMetricsServer запускает HTTP-обработчик /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(gatherer, healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("metrics available at %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

func newMetricsMux(gatherer prometheus.Gatherer, healthHandler *health.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

// shutdownOutboxWorker останавливает цикл опроса и ждёт его завершения.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	cancel()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// drainOutbox публикует события, накопленные с последнего опроса, чтобы они не ждали
// следующего запуска.
func drainOutbox(worker *outbox.Worker, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), outboxDrainTimeout)
	defer cancel()
	if sent := worker.ProcessOnce(ctx); sent > 0 {
		logger.WithField("sent", sent).Info("outbox drained before exit")
	}
}
