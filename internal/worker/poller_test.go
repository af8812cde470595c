package worker_test

import (
	"context"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/service"
	"github.com/linemk/storefront-payments/internal/storage"
	"github.com/linemk/storefront-payments/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleRepo - очередь заказов в памяти, упорядоченная по updated_at, как в ListStale
type staleRepo struct {
	storage.OrderStorage

	mu            sync.Mutex
	orders        []*models.Order
	err           error
	marked        []string
	updatedBefore time.Time
	createdAfter  time.Time
	limit         int
}

func (r *staleRepo) ListStale(ctx context.Context, updatedBefore, createdAfter time.Time, limit int) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatedBefore, r.createdAfter, r.limit = updatedBefore, createdAfter, limit
	if r.err != nil {
		return nil, r.err
	}

	var res []*models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderCreated && o.UpdatedAt.Before(updatedBefore) {
			cp := *o
			res = append(res, &cp)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].UpdatedAt.Before(res[j].UpdatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *staleRepo) MarkPolled(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = append(r.marked, id)
	for _, o := range r.orders {
		if o.ID == id && o.Status == models.OrderCreated {
			o.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

type fakeSyncer struct {
	mu     sync.Mutex
	synced []string
	errs   map[string]error
	// pending - шлюз ещё не знает исхода, заказ остаётся в created
	pending bool
}

func (f *fakeSyncer) SyncWithGateway(ctx context.Context, orderID string) (*service.ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, orderID)
	if err := f.errs[orderID]; err != nil {
		return nil, err
	}
	if f.pending {
		return &service.ConfirmResult{ReconciliationResult: service.ReconciliationResult{Status: models.OrderCreated}}, nil
	}
	return &service.ConfirmResult{ReconciliationResult: service.ReconciliationResult{Status: models.OrderPaid}}, nil
}

func (f *fakeSyncer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synced...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick_SyncsEveryStaleOrder(t *testing.T) {
	repo := &staleRepo{orders: []*models.Order{
		{ID: "o1", Status: models.OrderCreated},
		{ID: "o2", Status: models.OrderCreated},
		{ID: "o3", Status: models.OrderCreated},
	}}
	syncer := &fakeSyncer{errs: map[string]error{
		"o1": &service.UnconfirmedPaymentError{OrderID: "o1"},
		"o2": errors.New("gateway down"),
	}}
	p := worker.NewStatusPoller(discardLogger(), repo, syncer, worker.PollerConfig{
		StaleAfter: 5 * time.Minute,
		MaxAge:     24 * time.Hour,
		BatchSize:  10,
	})

	before := time.Now()
	n := p.Tick(context.Background())

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"o1", "o2", "o3"}, syncer.calls())
	assert.Equal(t, 10, repo.limit)
	assert.WithinDuration(t, before.Add(-5*time.Minute), repo.updatedBefore, time.Second)
	assert.WithinDuration(t, before.Add(-24*time.Hour), repo.createdAfter, time.Second)
	// неразрешённые заказы уходят в конец очереди, оплаченный больше не в created
	assert.Equal(t, []string{"o1", "o2"}, repo.marked)
}

func TestTick_UnsettledOrdersDoNotBlockQueue(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := &staleRepo{}
	for i := 1; i <= 5; i++ {
		repo.orders = append(repo.orders, &models.Order{
			ID:        fmt.Sprintf("o%d", i),
			Status:    models.OrderCreated,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	syncer := &fakeSyncer{pending: true}
	p := worker.NewStatusPoller(discardLogger(), repo, syncer, worker.PollerConfig{
		StaleAfter: 5 * time.Minute,
		MaxAge:     24 * time.Hour,
		BatchSize:  2,
	})

	assert.Equal(t, 2, p.Tick(context.Background()))
	assert.Equal(t, 2, p.Tick(context.Background()))
	assert.Equal(t, 1, p.Tick(context.Background()))

	assert.Equal(t, []string{"o1", "o2", "o3", "o4", "o5"}, syncer.calls())
	assert.Equal(t, 0, p.Tick(context.Background()))
}

func TestTick_GatewayErrorsDoNotBlockQueue(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := &staleRepo{orders: []*models.Order{
		{ID: "o1", Status: models.OrderCreated, UpdatedAt: base},
		{ID: "o2", Status: models.OrderCreated, UpdatedAt: base.Add(time.Minute)},
	}}
	syncer := &fakeSyncer{errs: map[string]error{"o1": errors.New("gateway down")}}
	p := worker.NewStatusPoller(discardLogger(), repo, syncer, worker.PollerConfig{BatchSize: 1})

	p.Tick(context.Background())
	p.Tick(context.Background())

	assert.Equal(t, []string{"o1", "o2"}, syncer.calls())
}

func TestTick_ListError(t *testing.T) {
	repo := &staleRepo{err: errors.New("db down")}
	syncer := &fakeSyncer{}
	p := worker.NewStatusPoller(discardLogger(), repo, syncer, worker.PollerConfig{})

	assert.Equal(t, 0, p.Tick(context.Background()))
	assert.Empty(t, syncer.calls())
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &staleRepo{orders: []*models.Order{{ID: "o1", Status: models.OrderCreated}}}
	syncer := &fakeSyncer{}
	p := worker.NewStatusPoller(discardLogger(), repo, syncer, worker.PollerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(syncer.calls()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
