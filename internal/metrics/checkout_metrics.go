package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказов.
type CheckoutMetrics struct {
	// Счётчики попыток оформления
	started    prometheus.Counter
	committed  prometheus.Counter
	failed     *prometheus.CounterVec
	rolledBack prometheus.Counter
	// Шаги компенсации, которые не удалось выполнить
	compensationFailed *prometheus.CounterVec

	// Гистограммы времени выполнения
	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	reservedUnits prometheus.Counter
	outboxEvents  prometheus.Counter
	statusUpdates prometheus.Counter

	inFlight prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в заданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		started: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_started_total",
			Help: "Total number of checkout attempts started",
		}),
		committed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_committed_total",
			Help: "Total number of checkouts committed to the ledger",
		}),
		failed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_failed_total",
			Help: "Total number of failed checkouts grouped by reason",
		}, []string{"reason"}),
		rolledBack: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_rolled_back_total",
			Help: "Total number of checkouts whose reservations were compensated",
		}),
		compensationFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_compensation_failed_total",
			Help: "Total number of compensation steps that failed grouped by step",
		}, []string{"step"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout attempts in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		reservedUnits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stock_reserved_units_total",
			Help: "Total number of stock units reserved by committed checkouts",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of order events enqueued to the outbox",
		}),
		statusUpdates: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_status_updates_total",
			Help: "Total number of order status updates appended",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_checkout_in_flight",
			Help: "Number of checkout attempts currently running",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordStarted увеличивает счётчик попыток и число активных оформлений.
func (m *CheckoutMetrics) RecordStarted() {
	m.started.Inc()
	m.inFlight.Inc()
}

// RecordFinished уменьшает число активных оформлений и записывает длительность.
func (m *CheckoutMetrics) RecordFinished(duration time.Duration) {
	m.inFlight.Dec()
	m.duration.Observe(duration.Seconds())
}

// RecordCommitted фиксирует успешное оформление и число зарезервированных единиц.
func (m *CheckoutMetrics) RecordCommitted(units int) {
	m.committed.Inc()
	m.reservedUnits.Add(float64(units))
}

// RecordFailed увеличивает счётчик неудач с причиной reason.
func (m *CheckoutMetrics) RecordFailed(reason string) {
	m.failed.WithLabelValues(reason).Inc()
}

// RecordRolledBack увеличивает счётчик компенсированных резервов.
func (m *CheckoutMetrics) RecordRolledBack() {
	m.rolledBack.Inc()
}

// RecordCompensationFailed увеличивает счётчик неудачных шагов компенсации (release, void).
func (m *CheckoutMetrics) RecordCompensationFailed(step string) {
	m.compensationFailed.WithLabelValues(step).Inc()
}

// RecordStepDuration записывает время выполнения шага оформления.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordStatusUpdate увеличивает счётчик обновлений статуса.
func (m *CheckoutMetrics) RecordStatusUpdate() {
	m.statusUpdates.Inc()
}
