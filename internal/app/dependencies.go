package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/account"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/discount"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/service/reporting"
	"github.com/vladislavdragonenkov/shop/internal/shell"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/images"
	outboxstore "github.com/vladislavdragonenkov/shop/internal/storage/outbox"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Store    storage.Store
	Catalog  *catalog.Manager
	Accounts *account.Manager
	Engine   *checkout.Engine
	Reports  *reporting.View
	Outbox   *outboxstore.Repository
	Payments *payment.MockService
	Breaker  *payment.CircuitBreaker
	Metrics  *metrics.CheckoutMetrics
}

// NewDependencies собирает сервисы поверх открытого хранилища.
// NOTE: платёжный шлюз — песочница MockService за circuit breaker; реальный провайдер
// подключается через domain.PaymentService.
func NewDependencies(cfg Config, store storage.Store, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	rates, err := discount.ParseRates(cfg.Discounts)
	if err != nil {
		return nil, fmt.Errorf("parse discounts: %w", err)
	}
	resolver, err := discount.NewStaticResolver(rates)
	if err != nil {
		return nil, fmt.Errorf("build discount table: %w", err)
	}

	declineAbove, err := decimal.NewFromString(cfg.PaymentDeclineAbove)
	if err != nil {
		return nil, fmt.Errorf("parse payment_decline_above: %w", err)
	}
	sandbox := payment.NewMockService()
	sandbox.DeclineAbove = declineAbove
	breaker := payment.NewCircuitBreaker(cfg.PaymentMaxFailures, cfg.PaymentResetTimeout, logger.WithField("component", "payment-breaker"))

	catalogOpts := []catalog.Option{catalog.WithLogger(logger.WithField("component", "catalog"))}
	if cfg.ImagesDir != "" {
		catalogOpts = append(catalogOpts, catalog.WithImageStore(images.NewFileStore(cfg.ImagesDir)))
	}
	products := catalog.NewManager(store, storage.NewLock(storage.CollectionProducts, cfg.LockTimeout), catalogOpts...)

	accounts := account.NewManager(store, storage.NewLock(storage.CollectionAccounts, cfg.LockTimeout),
		account.WithLogger(logger.WithField("component", "account")),
		account.WithProductRemover(products),
	)

	outboxRepo := outboxstore.NewRepository(store, cfg.LockTimeout)
	checkoutMetrics := metrics.NewCheckoutMetricsWithRegisterer(registerer)

	engine := checkout.NewEngine(checkout.Deps{
		Store:     store,
		Catalog:   products,
		Accounts:  accounts,
		Payments:  payment.NewGuardedService(sandbox, breaker),
		Discounts: resolver,
		Outbox:    outboxRepo,
	},
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithMetrics(checkoutMetrics),
		checkout.WithCurrency(cfg.Currency, cfg.CurrencyScale),
		checkout.WithLockTimeout(cfg.LockTimeout),
		checkout.WithRetryConfig(checkout.RetryConfig{
			MaxAttempts:   cfg.PaymentRetries,
			InitialDelay:  cfg.PaymentRetryDelay,
			MaxDelay:      checkout.DefaultRetryConfig().MaxDelay,
			BackoffFactor: checkout.DefaultRetryConfig().BackoffFactor,
		}),
	)

	return &Dependencies{
		Store:    store,
		Catalog:  products,
		Accounts: accounts,
		Engine:   engine,
		Reports:  reporting.NewView(engine, products),
		Outbox:   outboxRepo,
		Payments: sandbox,
		Breaker:  breaker,
		Metrics:  checkoutMetrics,
	}, nil
}

// SeedAdmin создаёт администратора по умолчанию при первом запуске.
func (d *Dependencies) SeedAdmin(ctx context.Context, password string, logger *log.Entry) error {
	created, err := d.Accounts.EnsureBootstrapAdmin(ctx, account.DefaultBootstrapAdmin(password))
	if err != nil {
		return err
	}
	if created && password == DefaultAdminPassword {
		logger.Warn("admin account seeded with the default password, set admin_password before going live")
	}
	return nil
}

// ShellServices возвращает сервисы, с которыми работает интерактивная сессия.
func (d *Dependencies) ShellServices() shell.Services {
	return shell.Services{
		Catalog:  d.Catalog,
		Accounts: d.Accounts,
		Orders:   d.Engine,
		Reports:  d.Reports,
	}
}
