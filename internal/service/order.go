package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/gateway"
	"github.com/linemk/storefront-payments/internal/storage"
)

const orderIDPlaceholder = "{order_id}"

// PaymentGateway - операции платёжного шлюза, которые использует сервис
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req gateway.InitRequest) (*gateway.InitResult, error)
	GetStatus(ctx context.Context, paymentID string) (*gateway.StatusResult, error)
}

// CheckoutService - оформление заказа
type CheckoutService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// OutcomeService - подтверждение исхода оплаты по запросу клиента
type OutcomeService interface {
	ConfirmOutcome(ctx context.Context, orderID string, claimed Outcome) (*ConfirmResult, error)
}

// NotificationService - обработка уведомлений шлюза
type NotificationService interface {
	HandleNotification(ctx context.Context, n *gateway.Notification) (*ConfirmResult, error)
}

// AdminService - операции поддержки над заказом
type AdminService interface {
	Get(ctx context.Context, orderID string) (*models.Order, error)
	SyncWithGateway(ctx context.Context, orderID string) (*ConfirmResult, error)
	Cancel(ctx context.Context, orderID string) (*models.Order, error)
}

// CheckoutOptions - настройки оформления заказа
type CheckoutOptions struct {
	Currency          string
	MaxQuantity       int
	DescriptionPrefix string
	SuccessURL        string
	FailURL           string
	NotificationURL   string
	Receipt           ReceiptOptions
}

// CartItem - позиция корзины от клиента. Цена от клиента не принимается.
type CartItem struct {
	ID       string
	Quantity int
	Variant  string
}

// CheckoutRequest - корзина, контакты и промокод
type CheckoutRequest struct {
	Items     []CartItem
	Customer  models.Customer
	PromoCode string
}

// CheckoutResult - созданный заказ и ссылка на оплату
type CheckoutResult struct {
	OrderID     string `json:"orderId"`
	PaymentID   string `json:"paymentId"`
	PaymentURL  string `json:"paymentUrl"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// ReconciliationResult - итоговый статус заказа и статус, который видел шлюз
type ReconciliationResult struct {
	Order         *models.Order
	Status        models.OrderStatus
	GatewayStatus gateway.Status
}

// ConfirmResult - итог сверки и уведомления
type ConfirmResult struct {
	ReconciliationResult
	Notified    bool
	DeliveryErr error
}

type OrderService struct {
	log     *slog.Logger
	orders  storage.OrderStorage
	catalog storage.CatalogStorage
	gateway PaymentGateway
	gate    *NotificationGate
	promos  PromoCodes
	opts    CheckoutOptions
}

func NewOrderService(
	log *slog.Logger,
	orders storage.OrderStorage,
	catalog storage.CatalogStorage,
	gw PaymentGateway,
	gate *NotificationGate,
	promos PromoCodes,
	opts CheckoutOptions,
) *OrderService {
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = 99
	}
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	return &OrderService{
		log:     log,
		orders:  orders,
		catalog: catalog,
		gateway: gw,
		gate:    gate,
		promos:  promos,
		opts:    opts,
	}
}

// CreateOrder пересчитывает сумму по ценам каталога и сохраняет заказ в статусе created.
// Любой неизвестный товар отклоняет весь заказ.
func (s *OrderService) CreateOrder(ctx context.Context, items []CartItem, customer models.Customer, discount DiscountFunc) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op))

	order, err := s.buildOrder(ctx, items, customer, discount)
	if err != nil {
		logger.Warn("order rejected", slog.Any("error", err))
		return nil, err
	}

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		logger.Error("failed to insert order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to insert order: %w", op, err)
	}

	logger.Info("order created", slog.String("order_id", created.ID), slog.Int64("amount", created.AmountMinor))
	return created, nil
}

// Checkout создаёт заказ и платёж в шлюзе. Ошибка шлюза возвращается вызывающему, заказ остаётся в created.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "service.OrderService.Checkout"
	logger := s.log.With(slog.String("op", op))

	discount, err := s.promos.Resolve(req.PromoCode)
	if err != nil {
		logger.Warn("promo code rejected", slog.Any("error", err))
		return nil, err
	}

	order, err := s.buildOrder(ctx, req.Items, req.Customer, discount)
	if err != nil {
		logger.Warn("order rejected", slog.Any("error", err))
		return nil, err
	}
	order.PromoCode = normalizeCode(req.PromoCode)
	if order.AmountMinor <= 0 {
		return nil, validationErrorf("order amount must be positive")
	}

	order, err = s.orders.Insert(ctx, order)
	if err != nil {
		logger.Error("failed to insert order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to insert order: %w", op, err)
	}
	logger = logger.With(slog.String("order_id", order.ID))

	data := map[string]string{}
	if order.Customer.Phone != "" {
		data["Phone"] = order.Customer.Phone
	}
	if order.Customer.Email != "" {
		data["Email"] = order.Customer.Email
	}

	payment, err := s.gateway.InitiatePayment(ctx, gateway.InitRequest{
		OrderID:         order.ID,
		Amount:          order.AmountMinor,
		Description:     strings.TrimSpace(s.opts.DescriptionPrefix + " " + order.ID),
		SuccessURL:      withOrderID(s.opts.SuccessURL, order.ID),
		FailURL:         withOrderID(s.opts.FailURL, order.ID),
		NotificationURL: s.opts.NotificationURL,
		Receipt:         BuildReceipt(order, s.opts.Receipt),
		Data:            data,
	})
	if err != nil {
		logger.Error("failed to initiate payment", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to initiate payment: %w", op, err)
	}

	attached, err := s.orders.SetGatewayPaymentID(ctx, order.ID, payment.PaymentID)
	if err != nil {
		logger.Error("failed to store payment id", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to store payment id: %w", op, err)
	}
	if !attached {
		logger.Warn("payment id already set on order", slog.String("payment_id", payment.PaymentID))
	}

	logger.Info("payment initiated", slog.String("payment_id", payment.PaymentID))
	return &CheckoutResult{
		OrderID:     order.ID,
		PaymentID:   payment.PaymentID,
		PaymentURL:  payment.PaymentURL,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
	}, nil
}

// Get возвращает заказ по id
func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, &NotFoundError{OrderID: orderID}
		}
		return nil, fmt.Errorf("service.OrderService.Get: %w", err)
	}
	return order, nil
}

// Reconcile сверяет статус заказа с заявленным исходом и, при расхождении, со статусом в шлюзе
func (s *OrderService) Reconcile(ctx context.Context, orderID string, claimed Outcome) (*ReconciliationResult, error) {
	return s.reconcile(ctx, orderID, claimed, nil)
}

// ConfirmOutcome - сверка и однократное уведомление об исходе.
// Ошибка доставки уведомления не считается ошибкой операции и возвращается в DeliveryErr.
func (s *OrderService) ConfirmOutcome(ctx context.Context, orderID string, claimed Outcome) (*ConfirmResult, error) {
	return s.confirm(ctx, orderID, claimed, nil)
}

// SyncWithGateway спрашивает шлюз и подтверждает исход, если он уже определён
func (s *OrderService) SyncWithGateway(ctx context.Context, orderID string) (*ConfirmResult, error) {
	const op = "service.OrderService.SyncWithGateway"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID))

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentID() == "" {
		return nil, validationErrorf("order %s has no payment", orderID)
	}

	st, err := s.gateway.GetStatus(ctx, order.PaymentID())
	if err != nil {
		logger.Error("failed to get payment status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger = logger.With(slog.String("gateway_status", st.Status.String()))

	var claimed Outcome
	switch st.Status.Bucket() {
	case gateway.SuccessLike:
		claimed = OutcomeSuccess
	case gateway.FailLike:
		claimed = OutcomeFail
	default:
		logger.Debug("payment outcome not determined yet")
		return &ConfirmResult{ReconciliationResult: ReconciliationResult{
			Order:         order,
			Status:        order.Status,
			GatewayStatus: st.Status,
		}}, nil
	}
	return s.confirm(ctx, orderID, claimed, st)
}

// HandleNotification обрабатывает проверенное уведомление шлюза
func (s *OrderService) HandleNotification(ctx context.Context, n *gateway.Notification) (*ConfirmResult, error) {
	const op = "service.OrderService.HandleNotification"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("order_id", n.OrderID),
		slog.String("payment_id", n.PaymentID),
		slog.String("gateway_status", n.Status.String()),
	)

	order, err := s.Get(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}

	switch current := order.PaymentID(); {
	case current == "" && n.PaymentID != "":
		if _, err := s.orders.SetGatewayPaymentID(ctx, order.ID, n.PaymentID); err != nil {
			logger.Error("failed to attach payment id", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to attach payment id: %w", op, err)
		}
		logger.Info("payment id attached from notification")
	case current != n.PaymentID:
		logger.Warn("notification for another payment", slog.String("stored_payment_id", current))
		return nil, ErrPaymentMismatch
	}

	var claimed Outcome
	switch n.Status.Bucket() {
	case gateway.SuccessLike:
		if n.Amount != order.AmountMinor {
			logger.Warn("notification amount mismatch", slog.Int64("amount", n.Amount), slog.Int64("order_amount", order.AmountMinor))
			return nil, ErrAmountMismatch
		}
		claimed = OutcomeSuccess
	case gateway.FailLike:
		claimed = OutcomeFail
	default:
		logger.Debug("intermediate status, nothing to confirm")
		return &ConfirmResult{ReconciliationResult: ReconciliationResult{
			Order:         order,
			Status:        order.Status,
			GatewayStatus: n.Status,
		}}, nil
	}
	// уведомление подписано шлюзом и служит подтверждением без повторного запроса
	return s.confirm(ctx, order.ID, claimed, &gateway.StatusResult{
		PaymentID: n.PaymentID,
		OrderID:   n.OrderID,
		Status:    n.Status,
		Amount:    n.Amount,
	})
}

// Cancel переводит заказ created -> canceled, если шлюз не видит по нему оплаты
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	const op = "service.OrderService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID))

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderCanceled {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%s: order is %s: %w", op, order.Status, ErrIllegalTransition)
	}

	if id := order.PaymentID(); id != "" {
		st, err := s.gateway.GetStatus(ctx, id)
		if err != nil {
			logger.Error("failed to get payment status", slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if st.Status.Bucket() == gateway.SuccessLike {
			logger.Warn("refusing to cancel paid order", slog.String("gateway_status", st.Status.String()))
			return nil, fmt.Errorf("%s: gateway reports %s: %w", op, st.Status, ErrIllegalTransition)
		}
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, models.OrderCanceled)
	if err != nil {
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order, err = s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !updated && order.Status != models.OrderCanceled {
		return nil, fmt.Errorf("%s: order became %s: %w", op, order.Status, ErrIllegalTransition)
	}

	logger.Info("order canceled")
	return order, nil
}

func (s *OrderService) confirm(ctx context.Context, orderID string, claimed Outcome, known *gateway.StatusResult) (*ConfirmResult, error) {
	const op = "service.OrderService.confirm"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID), slog.String("outcome", string(claimed)))

	rec, err := s.reconcile(ctx, orderID, claimed, known)
	if err != nil {
		return nil, err
	}

	var build MessageBuilder
	if claimed == OutcomeSuccess {
		build = func(o *models.Order) string { return FormatSuccess(o, o.PaymentID()) }
	} else {
		reason := string(rec.GatewayStatus)
		build = func(o *models.Order) string { return FormatFailed(o, reason) }
	}

	res := &ConfirmResult{ReconciliationResult: *rec}
	sent, err := s.gate.NotifyOnce(ctx, orderID, claimed.Event(), build)
	if err != nil {
		var deliveryErr *NotificationDeliveryError
		if !errors.As(err, &deliveryErr) {
			return nil, err
		}
		logger.Warn("notification delivery failed", slog.Any("error", err))
		res.DeliveryErr = err
	}
	res.Notified = sent.Sent
	return res, nil
}

func (s *OrderService) reconcile(ctx context.Context, orderID string, claimed Outcome, known *gateway.StatusResult) (*ReconciliationResult, error) {
	const op = "service.OrderService.Reconcile"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID), slog.String("outcome", string(claimed)))

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ev := Evidence{HasPaymentID: order.PaymentID() != ""}
	if NeedsEvidence(order.Status, claimed, ev.HasPaymentID) {
		ev.Checked = true
		if known != nil {
			ev.Status = known.Status
		} else {
			st, err := s.gateway.GetStatus(ctx, order.PaymentID())
			if err != nil {
				// таймаут или отказ шлюза - исход неизвестен
				logger.Warn("gateway status unavailable", slog.Any("error", err))
				ev.Err = err
			} else {
				ev.Status = st.Status
			}
		}
	}

	decision, decideErr := Decide(order.Status, claimed, ev)
	if decision.Change {
		updated, err := s.orders.UpdateStatus(ctx, orderID, decision.Next)
		if err != nil {
			logger.Error("failed to update status", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
		}
		if updated {
			logger.Info("order status changed",
				slog.String("from", order.Status.String()),
				slog.String("to", decision.Next.String()),
				slog.String("gateway_status", ev.Status.String()))
			order.Status = decision.Next
		} else {
			// статус успел поменять параллельный вызов: решаем заново по свежему состоянию
			order, err = s.Get(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if !order.Status.IsTerminal() {
				return nil, fmt.Errorf("%s: status update lost for order in %s", op, order.Status)
			}
			_, decideErr = Decide(order.Status, claimed, ev)
		}
	}

	result := &ReconciliationResult{Order: order, Status: order.Status, GatewayStatus: ev.Status}
	if decideErr != nil {
		var unconfirmed *UnconfirmedPaymentError
		if errors.As(decideErr, &unconfirmed) {
			unconfirmed.OrderID = orderID
		}
		logger.Warn("outcome not confirmed", slog.String("status", order.Status.String()), slog.Any("error", decideErr))
		return result, decideErr
	}
	return result, nil
}

func (s *OrderService) buildOrder(ctx context.Context, items []CartItem, customer models.Customer, discount DiscountFunc) (*models.Order, error) {
	if len(items) == 0 {
		return nil, validationErrorf("cart is empty")
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, validationErrorf("item id is required")
		}
		if item.Quantity < 1 || item.Quantity > s.opts.MaxQuantity {
			return nil, validationErrorf("item %s: quantity must be between 1 and %d", item.ID, s.opts.MaxQuantity)
		}
		if _, ok := seen[item.ID]; !ok {
			seen[item.ID] = struct{}{}
			ids = append(ids, item.ID)
		}
	}

	resolved, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prices: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, validationErrorf("unknown items: %s", strings.Join(missing, ", "))
	}

	order := &models.Order{
		ID:       uuid.NewString(),
		Items:    make([]models.OrderItem, 0, len(items)),
		Currency: s.opts.Currency,
		Customer: customer,
		Status:   models.OrderCreated,
	}
	for _, item := range items {
		product := resolved[item.ID]
		line := models.OrderItem{
			ID:           product.ID,
			Name:         product.Name,
			UnitPrice:    product.PriceMinor,
			Quantity:     item.Quantity,
			VariantLabel: item.Variant,
		}
		if product.Slug != "" {
			line.Path = "/product/" + product.Slug
		}
		order.Items = append(order.Items, line)
		order.SubtotalMinor += line.Total()
	}
	order.AmountMinor, order.DiscountMinor = applyDiscount(order.SubtotalMinor, discount)
	return order, nil
}

func withOrderID(url, orderID string) string {
	return strings.ReplaceAll(url, orderIDPlaceholder, orderID)
}
