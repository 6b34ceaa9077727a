// Package checkout превращает корзину в зафиксированный заказ: цена, резерв, оплата, запись в журнал.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const (
	// DefaultCurrency — валюта журнала по умолчанию.
	DefaultCurrency = "CLP"
	// DefaultCurrencyScale — число знаков после запятой для CLP.
	DefaultCurrencyScale int32 = 0
)

// Catalog — часть каталога, нужная оформлению.
type Catalog interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	ReserveStock(ctx context.Context, id string, qty int) error
	ReleaseStock(ctx context.Context, id string, qty int) error
}

// AccountReader проверяет существование покупателя.
type AccountReader interface {
	Get(ctx context.Context, id string) (domain.Account, error)
}

// Deps — обязательные зависимости Engine.
type Deps struct {
	Store     storage.Store
	Catalog   Catalog
	Accounts  AccountReader
	Payments  domain.PaymentService
	Discounts domain.DiscountResolver
	// Outbox может быть nil: тогда события не ставятся в очередь.
	Outbox domain.OutboxRepository
}

// Request — входные данные одной попытки оформления.
type Request struct {
	Buyer          domain.Account
	Cart           *cart.Cart
	Shipping       domain.ShippingInfo
	PaymentMethod  domain.PaymentMethod
	PaymentDetails map[string]string
	DiscountCode   string
	// IdempotencyKey — повтор с тем же ключом возвращает уже записанный заказ.
	IdempotencyKey string
}

// StatusChange — новая запись журнала статусов.
type StatusChange struct {
	FulfillmentStatus domain.FulfillmentStatus
	PaymentStatus     domain.PaymentStatus
	TrackingRef       string
	Note              string
}

// OrderView — заказ вместе с последним статусом.
type OrderView struct {
	Order  domain.Order
	Status domain.StatusUpdate
}

// Engine — единственная точка входа оформления заказа.
type Engine struct {
	catalog   Catalog
	accounts  AccountReader
	payments  domain.PaymentService
	discounts domain.DiscountResolver
	outbox    domain.OutboxRepository

	orders     *storage.Collection[domain.Order]
	statuses   *storage.Collection[domain.StatusUpdate]
	ledgerLock *storage.Lock
	statusLock *storage.Lock

	metrics     *metrics.CheckoutMetrics
	logger      *log.Entry
	retry       RetryConfig
	currency    string
	scale       int32
	lockTimeout time.Duration
	now         func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRetryConfig задаёт политику повторов авторизации платежа.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Engine) {
		e.retry = cfg
	}
}

// WithCurrency задаёт валюту и точность округления итогов.
func WithCurrency(code string, scale int32) Option {
	return func(e *Engine) {
		e.currency = strings.ToUpper(strings.TrimSpace(code))
		e.scale = scale
	}
}

// WithLockTimeout задаёт ожидание блокировок журнала.
func WithLockTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = timeout
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine собирает движок оформления.
func NewEngine(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		catalog:   deps.Catalog,
		accounts:  deps.Accounts,
		payments:  deps.Payments,
		discounts: deps.Discounts,
		outbox:    deps.Outbox,
		orders:    storage.NewCollection[domain.Order](deps.Store, storage.CollectionOrders),
		statuses:  storage.NewCollection[domain.StatusUpdate](deps.Store, storage.CollectionOrderStatus),
		retry:     DefaultRetryConfig(),
		currency:  DefaultCurrency,
		scale:     DefaultCurrencyScale,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New().WithField("component", "checkout")
	}
	if e.currency == "" {
		e.currency = DefaultCurrency
	}
	e.ledgerLock = storage.NewLock(storage.CollectionOrders, e.lockTimeout)
	e.statusLock = storage.NewLock(storage.CollectionOrderStatus, e.lockTimeout)
	return e
}

// Checkout оформляет заказ по корзине покупателя. Либо заказ записан в журнал,
// остатки уменьшены и платёж авторизован, либо ни одно из этих изменений не сохранилось.
// При успехе корзина очищается.
func (e *Engine) Checkout(ctx context.Context, req Request) (domain.Order, error) {
	started := time.Now()
	e.recordStarted()
	defer e.recordFinished(started)

	order, err := e.checkout(ctx, req)
	if err != nil {
		e.recordFailed(err)
		return domain.Order{}, err
	}
	if req.Cart != nil {
		req.Cart.Clear()
	}
	return order, nil
}

func (e *Engine) checkout(ctx context.Context, req Request) (domain.Order, error) {
	logger := e.logger.WithFields(log.Fields{
		"buyer_id":        req.Buyer.ID,
		"idempotency_key": req.IdempotencyKey,
	})

	if err := e.validateBuyer(ctx, req.Buyer); err != nil {
		return domain.Order{}, err
	}

	if req.IdempotencyKey != "" {
		existing, found, err := e.findByKey(ctx, req.Buyer.ID, req.IdempotencyKey)
		if err != nil {
			return domain.Order{}, err
		}
		if found {
			logger.WithField("order_id", existing.ID).Info("checkout replayed by idempotency key")
			return existing, nil
		}
	}

	if err := validateRequest(req); err != nil {
		return domain.Order{}, err
	}

	// Priced
	stepStarted := time.Now()
	order, err := e.price(ctx, req)
	e.recordStep(domain.CheckoutStepPrice, stepStarted)
	if err != nil {
		logger.WithError(err).Warn("checkout pricing failed")
		return domain.Order{}, err
	}
	logger = logger.WithField("order_id", order.ID)
	logger.WithFields(log.Fields{
		"state":       domain.CheckoutStatePriced,
		"gross_total": order.GrossTotal.String(),
		"net_total":   order.NetTotal.String(),
	}).Debug("order priced")

	// Reserved
	stepStarted = time.Now()
	reserved, err := e.reserve(ctx, order.LineItems)
	e.recordStep(domain.CheckoutStepReserve, stepStarted)
	if err != nil {
		compensation := e.release(ctx, logger, reserved)
		logger.WithError(err).WithField("state", domain.CheckoutStateFailed).Warn("stock reservation failed")
		return domain.Order{}, withCompensation(err, compensation)
	}
	logger.WithField("state", domain.CheckoutStateReserved).Debug("stock reserved")

	stepStarted = time.Now()
	result, err := e.authorize(ctx, logger, order.NetTotal, req)
	e.recordStep(domain.CheckoutStepAuthorize, stepStarted)
	if err != nil {
		return domain.Order{}, withCompensation(err, e.rollback(ctx, logger, reserved, ""))
	}
	order.PaymentRef = result.Reference

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, withCompensation(errors.Join(errs...), e.rollback(ctx, logger, reserved, order.PaymentRef))
	}

	// Committed
	stepStarted = time.Now()
	committed, replayed, err := e.commit(ctx, order)
	e.recordStep(domain.CheckoutStepCommit, stepStarted)
	if err != nil {
		compensation := e.rollback(ctx, logger, reserved, order.PaymentRef)
		logger.WithError(err).Error("order commit failed, reservation and payment rolled back")
		return domain.Order{}, withCompensation(fmt.Errorf("%w: commit order: %w", domain.ErrPersistenceFailure, err), compensation)
	}
	if replayed {
		// Параллельная попытка с тем же ключом успела записать заказ раньше.
		// Заказ покупателя уже есть, поэтому сбой компенсации остаётся в логе и метрике.
		_ = e.rollback(ctx, logger, reserved, order.PaymentRef)
		logger.WithField("order_id", committed.ID).Info("checkout replayed by idempotency key")
		return committed, nil
	}

	logger.WithFields(log.Fields{
		"state":     domain.CheckoutStateCommitted,
		"net_total": committed.NetTotal.String(),
		"units":     committed.Units(),
	}).Info("order committed")
	if e.metrics != nil {
		e.metrics.RecordCommitted(committed.Units())
	}

	e.afterCommit(ctx, logger, committed)
	return committed, nil
}

func (e *Engine) validateBuyer(ctx context.Context, buyer domain.Account) error {
	if buyer.ID == "" {
		return domain.ErrBuyerRequired
	}
	stored, err := e.accounts.Get(ctx, buyer.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError("buyer_id", "is not a registered account")
		}
		return err
	}
	if stored.Role != domain.RoleCustomer {
		return fmt.Errorf("%w: only customers can place orders", domain.ErrForbidden)
	}
	return nil
}

func validateRequest(req Request) error {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	errs := req.Shipping.Validate()
	if !req.PaymentMethod.Valid() {
		errs = append(errs, domain.ErrPaymentMethodInvalid)
	}
	return errors.Join(errs...)
}

func (e *Engine) price(ctx context.Context, req Request) (domain.Order, error) {
	lines := req.Cart.Lines()
	items := make([]domain.LineItem, 0, len(lines))
	gross := decimal.Zero

	for _, line := range lines {
		if line.Quantity <= 0 {
			return domain.Order{}, domain.ErrQuantityInvalid
		}
		product, err := e.catalog.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, line.ProductID)
			}
			return domain.Order{}, err
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, domain.LineItem{
			ProductID:           product.ID,
			ProductName:         product.Name,
			SellerID:            product.OwnerID,
			Quantity:            line.Quantity,
			UnitPriceAtPurchase: product.Price,
			Subtotal:            subtotal,
		})
		gross = gross.Add(subtotal)
	}

	code := strings.ToUpper(strings.TrimSpace(req.DiscountCode))
	rate := decimal.Zero
	if code != "" {
		if e.discounts == nil {
			return domain.Order{}, domain.ErrUnknownDiscountCode
		}
		var err error
		if rate, err = e.discounts.Rate(code); err != nil {
			return domain.Order{}, err
		}
	}

	return domain.Order{
		ID:             uuid.NewString(),
		BuyerID:        req.Buyer.ID,
		LineItems:      items,
		Shipping:       req.Shipping,
		PaymentMethod:  req.PaymentMethod,
		DiscountCode:   code,
		DiscountRate:   rate,
		GrossTotal:     gross,
		NetTotal:       domain.NetTotal(gross, rate, e.scale),
		Currency:       e.currency,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

// reserve резервирует позиции по очереди и возвращает успешно зарезервированные,
// даже если очередная позиция не прошла.
func (e *Engine) reserve(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	reserved := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if err := e.catalog.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			return reserved, fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}
		reserved = append(reserved, item)
	}
	return reserved, nil
}

func (e *Engine) authorize(ctx context.Context, logger *log.Entry, amount decimal.Decimal, req Request) (domain.PaymentResult, error) {
	var result domain.PaymentResult
	err := executeWithRetry(ctx, e.retry, logger, string(domain.CheckoutStepAuthorize), isTemporaryPaymentError, func() error {
		var err error
		result, err = e.payments.Authorize(ctx, amount, req.PaymentMethod, req.PaymentDetails)
		return err
	})
	if err != nil {
		logger.WithError(err).Warn("payment authorization failed")
		return domain.PaymentResult{}, fmt.Errorf("authorize payment: %w", err)
	}
	if !result.Approved() {
		logger.WithField("payment_status", result.Status).Warn("payment declined")
		return domain.PaymentResult{}, fmt.Errorf("%w: status %s", domain.ErrPaymentDeclined, result.Status)
	}
	return result, nil
}

// commit дописывает заказ в журнал. Если ключ идемпотентности уже занят,
// возвращает записанный ранее заказ и replayed=true.
func (e *Engine) commit(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	var (
		committed domain.Order
		replayed  bool
	)
	err := e.ledgerLock.Do(ctx, func() error {
		orders, err := e.orders.Load(ctx)
		if err != nil {
			return err
		}
		if order.IdempotencyKey != "" {
			for _, existing := range orders {
				if existing.BuyerID == order.BuyerID && existing.IdempotencyKey == order.IdempotencyKey {
					committed, replayed = existing, true
					return nil
				}
			}
		}
		order.PlacedAt = e.now()
		if err := e.orders.Save(ctx, append(orders, order)); err != nil {
			return err
		}
		committed = order
		return nil
	})
	return committed, replayed, err
}

// CompensationError перечисляет шаги компенсации, которые не удалось выполнить.
// Unwrap нет: errors.Is по результату оформления видит только исходную причину.
type CompensationError struct {
	Failures []error
}

func (e *CompensationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, err := range e.Failures {
		parts = append(parts, err.Error())
	}
	return "compensation incomplete: " + strings.Join(parts, "; ")
}

// withCompensation присоединяет к ошибке оформления незавершённую компенсацию.
func withCompensation(err error, compensation *CompensationError) error {
	if compensation == nil {
		return err
	}
	return errors.Join(err, compensation)
}

// rollback компенсирует резерв и, если платёж уже авторизован, отменяет его.
// Возвращает nil, если все шаги компенсации прошли.
func (e *Engine) rollback(ctx context.Context, logger *log.Entry, reserved []domain.LineItem, paymentRef string) *CompensationError {
	var failures []error
	if paymentRef != "" {
		stepStarted := time.Now()
		if err := e.payments.Void(context.WithoutCancel(ctx), paymentRef); err != nil {
			logger.WithError(err).WithField("payment_ref", paymentRef).Error("payment void failed")
			e.recordCompensationFailed(domain.CheckoutStepVoid)
			failures = append(failures, fmt.Errorf("void payment %s: %w", paymentRef, err))
		}
		e.recordStep(domain.CheckoutStepVoid, stepStarted)
	}
	if compensation := e.release(ctx, logger, reserved); compensation != nil {
		failures = append(failures, compensation.Failures...)
	}
	if e.metrics != nil {
		e.metrics.RecordRolledBack()
	}
	logger.WithField("state", domain.CheckoutStateRolledBack).Warn("checkout rolled back")
	if len(failures) == 0 {
		return nil
	}
	return &CompensationError{Failures: failures}
}

func (e *Engine) release(ctx context.Context, logger *log.Entry, reserved []domain.LineItem) *CompensationError {
	if len(reserved) == 0 {
		return nil
	}
	stepStarted := time.Now()
	defer e.recordStep(domain.CheckoutStepRelease, stepStarted)

	// Компенсация выполняется и после отмены исходного контекста.
	releaseCtx := context.WithoutCancel(ctx)
	var failures []error
	for _, item := range reserved {
		if err := e.catalog.ReleaseStock(releaseCtx, item.ProductID, item.Quantity); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
			}).Error("stock release failed")
			e.recordCompensationFailed(domain.CheckoutStepRelease)
			failures = append(failures, fmt.Errorf("release %d of %s: %w", item.Quantity, item.ProductID, err))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &CompensationError{Failures: failures}
}

// afterCommit пишет начальный статус и событие order.placed. Ошибки только логируются:
// заказ уже зафиксирован.
func (e *Engine) afterCommit(ctx context.Context, logger *log.Entry, order domain.Order) {
	update := domain.StatusUpdate{
		OrderID:           order.ID,
		PaymentStatus:     domain.PaymentStatusAuthorized,
		FulfillmentStatus: domain.FulfillmentPaid,
		Occurred:          order.PlacedAt,
	}
	if err := e.appendStatus(ctx, update); err != nil {
		logger.WithError(err).Error("initial order status not recorded")
	}

	e.emitEvent(ctx, logger, order.ID, domain.EventOrderPlaced, newOrderPlacedEvent(order))
}

// UpdateStatus дописывает новую запись в журнал статусов заказа. Сам заказ не меняется.
func (e *Engine) UpdateStatus(ctx context.Context, orderID string, change StatusChange) (domain.StatusUpdate, error) {
	if !change.FulfillmentStatus.Valid() {
		return domain.StatusUpdate{}, domain.ErrStatusInvalid
	}
	if _, err := e.getOrder(ctx, orderID); err != nil {
		return domain.StatusUpdate{}, err
	}

	update := domain.StatusUpdate{
		OrderID:           orderID,
		PaymentStatus:     change.PaymentStatus,
		FulfillmentStatus: change.FulfillmentStatus,
		TrackingRef:       strings.TrimSpace(change.TrackingRef),
		Note:              strings.TrimSpace(change.Note),
		Occurred:          e.now(),
	}

	err := e.statusLock.Do(ctx, func() error {
		updates, err := e.statuses.Load(ctx)
		if err != nil {
			return err
		}
		if latest, ok := latestFor(updates, orderID); ok && isTerminal(latest.FulfillmentStatus) {
			return domain.NewValidationError("status", fmt.Sprintf("order is already %s", latest.FulfillmentStatus))
		}
		if update.PaymentStatus == "" {
			if latest, ok := latestFor(updates, orderID); ok {
				update.PaymentStatus = latest.PaymentStatus
			}
		}
		return e.statuses.Save(ctx, append(updates, update))
	})
	if err != nil {
		return domain.StatusUpdate{}, err
	}

	logger := e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   update.FulfillmentStatus,
	})
	logger.Info("order status updated")
	if e.metrics != nil {
		e.metrics.RecordStatusUpdate()
	}
	e.emitEvent(ctx, logger, orderID, domain.EventOrderStatusChanged, newStatusChangedEvent(update))
	return update, nil
}

// Get возвращает заказ и его последний статус.
func (e *Engine) Get(ctx context.Context, id string) (OrderView, error) {
	order, err := e.getOrder(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	updates, err := e.statuses.Load(ctx)
	if err != nil {
		return OrderView{}, err
	}
	view := OrderView{Order: order}
	if latest, ok := latestFor(updates, id); ok {
		view.Status = latest
	} else {
		view.Status = domain.StatusUpdate{OrderID: id, FulfillmentStatus: domain.FulfillmentPending}
	}
	return view, nil
}

// ListByBuyer возвращает историю покупок покупателя, новые сверху.
func (e *Engine) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	orders, err := e.orders.Load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Order, 0)
	for _, order := range orders {
		if order.BuyerID == buyerID {
			result = append(result, order)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PlacedAt.After(result[j].PlacedAt)
	})
	return result, nil
}

// ListOrders возвращает весь журнал в порядке записи.
func (e *Engine) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return e.orders.Load(ctx)
}

// History возвращает журнал статусов заказа в порядке записи.
func (e *Engine) History(ctx context.Context, orderID string) ([]domain.StatusUpdate, error) {
	if _, err := e.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	updates, err := e.statuses.Load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.StatusUpdate, 0)
	for _, update := range updates {
		if update.OrderID == orderID {
			result = append(result, update)
		}
	}
	return result, nil
}

func (e *Engine) getOrder(ctx context.Context, id string) (domain.Order, error) {
	orders, err := e.orders.Load(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	for _, order := range orders {
		if order.ID == id {
			return order, nil
		}
	}
	return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
}

func (e *Engine) findByKey(ctx context.Context, buyerID, key string) (domain.Order, bool, error) {
	orders, err := e.orders.Load(ctx)
	if err != nil {
		return domain.Order{}, false, err
	}
	for _, order := range orders {
		if order.BuyerID == buyerID && order.IdempotencyKey == key {
			return order, true, nil
		}
	}
	return domain.Order{}, false, nil
}

func (e *Engine) appendStatus(ctx context.Context, update domain.StatusUpdate) error {
	return e.statusLock.Do(ctx, func() error {
		return e.statuses.Append(ctx, update)
	})
}

func (e *Engine) emitEvent(ctx context.Context, logger *log.Entry, orderID, eventType string, payload any) {
	if e.outbox == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.WithError(err).WithField("event_type", eventType).Error("marshal outbox payload")
		return
	}
	_, err = e.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       body,
	})
	if err != nil {
		logger.WithError(err).WithField("event_type", eventType).Error("enqueue outbox event")
		return
	}
	if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}
}

func (e *Engine) recordStarted() {
	if e.metrics != nil {
		e.metrics.RecordStarted()
	}
}

func (e *Engine) recordFinished(started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordFinished(time.Since(started))
	}
}

func (e *Engine) recordStep(step domain.CheckoutStep, started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordStepDuration(string(step), time.Since(started))
	}
}

func (e *Engine) recordCompensationFailed(step domain.CheckoutStep) {
	if e.metrics != nil {
		e.metrics.RecordCompensationFailed(string(step))
	}
}

func (e *Engine) recordFailed(err error) {
	if e.metrics != nil {
		e.metrics.RecordFailed(FailureReason(err))
	}
}

// FailureReason сводит ошибку оформления к метке для метрик и логов.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, domain.ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, domain.ErrPaymentTemporary):
		return "payment_error"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrPersistenceFailure), errors.Is(err, domain.ErrStorageFailure):
		return "persistence"
	default:
		return "internal"
	}
}

func isTemporaryPaymentError(err error) bool {
	return errors.Is(err, domain.ErrPaymentTemporary)
}

func latestFor(updates []domain.StatusUpdate, orderID string) (domain.StatusUpdate, bool) {
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].OrderID == orderID {
			return updates[i], true
		}
	}
	return domain.StatusUpdate{}, false
}

func isTerminal(status domain.FulfillmentStatus) bool {
	return status == domain.FulfillmentDelivered || status == domain.FulfillmentCanceled
}
