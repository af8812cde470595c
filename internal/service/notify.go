package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/storage"
)

// Notifier - канал доставки текстовых уведомлений, может вернуть ошибку
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// MessageBuilder собирает текст уведомления по снимку заказа
type MessageBuilder func(order *models.Order) string

// NotifyResult - итог попытки уведомления
type NotifyResult struct {
	// Sent - этот вызов выиграл отметку в заказе и передал сообщение в канал
	Sent bool
}

// NotificationGate отправляет уведомление об исходе оплаты не больше одного раза.
// Единственный источник правды - условная запись отметки в заказе.
type NotificationGate struct {
	log     *slog.Logger
	orders  storage.OrderStorage
	channel Notifier
}

func NewNotificationGate(log *slog.Logger, orders storage.OrderStorage, channel Notifier) *NotificationGate {
	return &NotificationGate{
		log:     log,
		orders:  orders,
		channel: channel,
	}
}

// NotifyOnce ставит отметку об уведомлении и, если она поставлена этим вызовом, отправляет сообщение.
// Ошибка канала возвращается как *NotificationDeliveryError и отметку не откатывает.
func (g *NotificationGate) NotifyOnce(ctx context.Context, orderID string, event models.NotificationEvent, build MessageBuilder) (NotifyResult, error) {
	const op = "service.NotificationGate.NotifyOnce"
	logger := g.log.With(
		slog.String("op", op),
		slog.String("order_id", orderID),
		slog.String("event", event.String()),
	)

	marked, err := g.orders.SetNotificationFlagIfNull(ctx, orderID, event)
	if err != nil {
		logger.Error("failed to set notification flag", slog.Any("error", err))
		return NotifyResult{}, fmt.Errorf("%s: failed to set notification flag: %w", op, err)
	}
	if !marked {
		logger.Debug("notification already committed, skipping")
		return NotifyResult{}, nil
	}

	order, err := g.orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Error("failed to load order for notification", slog.Any("error", err))
		return NotifyResult{Sent: true}, &NotificationDeliveryError{OrderID: orderID, Event: event, Cause: err}
	}

	if err := g.channel.Send(ctx, build(order)); err != nil {
		logger.Error("failed to deliver notification", slog.Any("error", err))
		return NotifyResult{Sent: true}, &NotificationDeliveryError{OrderID: orderID, Event: event, Cause: err}
	}

	logger.Info("notification sent")
	return NotifyResult{Sent: true}, nil
}
