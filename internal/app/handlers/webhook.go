package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/linemk/storefront-payments/internal/gateway"
	"github.com/linemk/storefront-payments/internal/service"
)

// NotificationParser проверяет подпись уведомления шлюза
type NotificationParser interface {
	ParseNotification(body []byte) (*gateway.Notification, error)
}

// WebhookHandler принимает уведомления шлюза о смене статуса платежа.
// Шлюз повторяет доставку, пока не получит OK, поэтому 5xx отдаётся только на сбой хранилища.
func WebhookHandler(log *slog.Logger, parser NotificationParser, notifications service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WebhookHandler"
		logger := log.With(slog.String("op", op))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			logger.Error("failed to read body", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		n, err := parser.ParseNotification(body)
		if err != nil {
			logger.Warn("notification rejected", slog.Any("error", err))
			http.Error(w, "invalid notification", http.StatusBadRequest)
			return
		}
		logger = logger.With(
			slog.String("order_id", n.OrderID),
			slog.String("payment_id", n.PaymentID),
			slog.String("gateway_status", n.Status.String()),
		)

		res, err := notifications.HandleNotification(r.Context(), n)
		switch {
		case err == nil:
			logger.Info("notification processed", slog.String("status", res.Status.String()), slog.Bool("notified", res.Notified))
			if res.DeliveryErr != nil {
				logger.Warn("notification delivery failed", slog.Any("error", res.DeliveryErr))
			}
		case errors.Is(err, service.ErrPaymentMismatch), errors.Is(err, service.ErrAmountMismatch):
			logger.Error("notification does not match order", slog.Any("error", err))
		case StatusFor(err) == http.StatusInternalServerError:
			logger.Error("failed to process notification", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		default:
			// повтор доставки ничего не изменит
			logger.Warn("notification not applied", slog.Any("error", err))
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
