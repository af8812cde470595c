package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront-payments/internal/service"
)

// NotifyRequest - исход оплаты, о котором сообщает клиент после возврата со страницы шлюза
type NotifyRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=success fail"`
}

type NotifyResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	GatewayStatus string `json:"gatewayStatus,omitempty"`
	Notified      bool   `json:"notified"`
	DeliveryError string `json:"deliveryError,omitempty"`
}

// NotifyHandler обрабатывает POST /api/orders/{id}/notify.
// Повторный вызов после отправленного уведомления отвечает 200 с notified=false.
func NotifyHandler(log *slog.Logger, outcomes service.OutcomeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.NotifyHandler"
		orderID := chi.URLParam(r, "id")
		logger := log.With(slog.String("op", op), slog.String("order_id", orderID))

		if orderID == "" {
			logger.Error("order id is missing")
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "order id is required"})
			return
		}

		var req NotifyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "validation error"})
			return
		}

		outcome, err := service.ParseOutcome(req.Outcome)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		res, err := outcomes.ConfirmOutcome(r.Context(), orderID, outcome)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		resp := NotifyResponse{
			OrderID:       orderID,
			Status:        res.Status.String(),
			GatewayStatus: res.GatewayStatus.String(),
			Notified:      res.Notified,
		}
		if res.DeliveryErr != nil {
			resp.DeliveryError = res.DeliveryErr.Error()
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
