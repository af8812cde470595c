package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/service"
	"github.com/linemk/storefront-payments/internal/storage"
)

// Syncer - сверка одного заказа со шлюзом
type Syncer interface {
	SyncWithGateway(ctx context.Context, orderID string) (*service.ConfirmResult, error)
}

type PollerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	MaxAge     time.Duration
	BatchSize  int
}

// StatusPoller периодически сверяет заказы, которые зависли в created с платежом в шлюзе
type StatusPoller struct {
	log    *slog.Logger
	orders storage.OrderStorage
	syncer Syncer
	cfg    PollerConfig
	now    func() time.Time
}

func NewStatusPoller(log *slog.Logger, orders storage.OrderStorage, syncer Syncer, cfg PollerConfig) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 72 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &StatusPoller{
		log:    log,
		orders: orders,
		syncer: syncer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run блокируется до отмены ctx
func (p *StatusPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info("status poller started", slog.Duration("interval", p.cfg.Interval))
	for {
		select {
		case <-ticker.C:
			p.Tick(ctx)
		case <-ctx.Done():
			p.log.Info("status poller stopped")
			return
		}
	}
}

// Tick - один проход по зависшим заказам, возвращает число обработанных
func (p *StatusPoller) Tick(ctx context.Context) int {
	const op = "worker.StatusPoller.Tick"
	logger := p.log.With(slog.String("op", op))

	now := p.now()
	orders, err := p.orders.ListStale(ctx, now.Add(-p.cfg.StaleAfter), now.Add(-p.cfg.MaxAge), p.cfg.BatchSize)
	if err != nil {
		logger.Error("failed to list stale orders", slog.Any("error", err))
		return 0
	}

	processed := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		p.syncOne(ctx, logger, order)
		processed++
	}
	if processed > 0 {
		logger.Debug("stale orders processed", slog.Int("count", processed))
	}
	return processed
}

func (p *StatusPoller) syncOne(ctx context.Context, logger *slog.Logger, order *models.Order) {
	logger = logger.With(slog.String("order_id", order.ID))

	res, err := p.syncer.SyncWithGateway(ctx, order.ID)
	if err != nil {
		var unconfirmed *service.UnconfirmedPaymentError
		if errors.As(err, &unconfirmed) || errors.Is(err, service.ErrOutcomeConflict) {
			logger.Info("order outcome not settled", slog.Any("error", err))
		} else {
			logger.Error("failed to sync order", slog.Any("error", err))
		}
		p.markPolled(ctx, logger, order.ID)
		return
	}

	if res.Status == models.OrderCreated {
		p.markPolled(ctx, logger, order.ID)
		return
	}
	if res.Status != order.Status {
		logger.Info("order settled by poller",
			slog.String("status", res.Status.String()),
			slog.String("gateway_status", res.GatewayStatus.String()),
			slog.Bool("notified", res.Notified))
	}
}

// markPolled отодвигает неразрешённый заказ в конец очереди ListStale
func (p *StatusPoller) markPolled(ctx context.Context, logger *slog.Logger, orderID string) {
	if _, err := p.orders.MarkPolled(ctx, orderID); err != nil {
		logger.Error("failed to mark order polled", slog.Any("error", err))
	}
}
