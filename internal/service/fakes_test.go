package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/gateway"
	"github.com/linemk/storefront-payments/internal/service"
	"github.com/linemk/storefront-payments/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order

	flagErr error
	getErr  error
	// updateHook вызывается до условного обновления статуса, имитирует параллельный вызов
	updateHook func(o *models.Order)
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderRepo) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeOrderRepo) snapshot(id string) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (f *fakeOrderRepo) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	cp := *order
	f.orders[order.ID] = &cp
	return order, nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if o := f.snapshot(id); o != nil {
		return o, nil
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return false, nil
	}
	if f.updateHook != nil {
		f.updateHook(o)
	}
	if !o.Status.CanTransitionTo(status) {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeOrderRepo) SetGatewayPaymentID(ctx context.Context, id, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.GatewayPaymentID != nil {
		return false, nil
	}
	o.GatewayPaymentID = &paymentID
	return true, nil
}

func (f *fakeOrderRepo) SetNotificationFlagIfNull(ctx context.Context, id string, event models.NotificationEvent) (bool, error) {
	if f.flagErr != nil {
		return false, f.flagErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.PaymentSuccessNotifiedAt != nil || o.PaymentFailNotifiedAt != nil {
		return false, nil
	}
	now := time.Now()
	if event == models.EventPaymentSuccess {
		o.PaymentSuccessNotifiedAt = &now
	} else {
		o.PaymentFailNotifiedAt = &now
	}
	return true, nil
}

func (f *fakeOrderRepo) ListStale(ctx context.Context, updatedBefore, createdAfter time.Time, limit int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderCreated && o.GatewayPaymentID != nil && len(res) < limit {
			cp := *o
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeOrderRepo) MarkPolled(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != models.OrderCreated {
		return false, nil
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

type fakeCatalog map[string]models.CatalogItem

func (f fakeCatalog) Resolve(ctx context.Context, ids []string) (map[string]models.CatalogItem, error) {
	res := make(map[string]models.CatalogItem, len(ids))
	for _, id := range ids {
		if item, ok := f[id]; ok {
			res[id] = item
		}
	}
	return res, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	status   gateway.Status
	err      error
	initErr  error
	calls    int
	lastInit gateway.InitRequest
}

var _ service.PaymentGateway = (*fakeGateway)(nil)

func (f *fakeGateway) InitiatePayment(ctx context.Context, req gateway.InitRequest) (*gateway.InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInit = req
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &gateway.InitResult{
		PaymentID:  "pay-" + req.OrderID,
		PaymentURL: "https://pay.example/" + req.OrderID,
		Status:     gateway.StatusNew,
	}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, paymentID string) (*gateway.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.StatusResult{PaymentID: paymentID, Status: f.status}, nil
}

func (f *fakeGateway) getStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

var errChannelDown = errors.New("channel down")

func strPtr(s string) *string { return &s }

func newOrder(id string, status models.OrderStatus, paymentID string) *models.Order {
	o := &models.Order{
		ID:            id,
		Items:         []models.OrderItem{{ID: "hoodie", Name: "Худи", UnitPrice: 150000, Quantity: 2}},
		SubtotalMinor: 300000,
		AmountMinor:   300000,
		Currency:      "RUB",
		Customer:      models.Customer{Name: "Анна", Phone: "+79990000000"},
		Status:        status,
	}
	if paymentID != "" {
		o.GatewayPaymentID = strPtr(paymentID)
	}
	return o
}
