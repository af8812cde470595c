package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/storefront-payments/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/storefront-payments/internal/service"
)

func adminLogger(log *slog.Logger, r *http.Request, op string) (*slog.Logger, string) {
	orderID := chi.URLParam(r, "id")
	logger := log.With(slog.String("op", op), slog.String("order_id", orderID))
	if subject, ok := jwtmiddleware.FromContext(r.Context()); ok {
		logger = logger.With(slog.String("admin", subject))
	}
	return logger, orderID
}

// AdminGetOrderHandler - GET /api/admin/orders/{id}
func AdminGetOrderHandler(log *slog.Logger, admin service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, orderID := adminLogger(log, r, "handlers.AdminGetOrderHandler")

		order, err := admin.Get(r.Context(), orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// AdminSyncOrderHandler - POST /api/admin/orders/{id}/sync, разовая сверка со шлюзом
func AdminSyncOrderHandler(log *slog.Logger, admin service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, orderID := adminLogger(log, r, "handlers.AdminSyncOrderHandler")

		res, err := admin.SyncWithGateway(r.Context(), orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("order synced", slog.String("status", res.Status.String()))

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

// AdminCancelOrderHandler - POST /api/admin/orders/{id}/cancel
func AdminCancelOrderHandler(log *slog.Logger, admin service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, orderID := adminLogger(log, r, "handlers.AdminCancelOrderHandler")

		order, err := admin.Cancel(r.Context(), orderID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("order canceled by admin")
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// CatalogInvalidator сбрасывает закэшированные цены товаров
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// InvalidateCatalogRequest - товары, цены которых поменялись в БД
type InvalidateCatalogRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// AdminInvalidateCatalogHandler - POST /api/admin/catalog/invalidate
func AdminInvalidateCatalogHandler(log *slog.Logger, catalog CatalogInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminInvalidateCatalogHandler"
		logger := log.With(slog.String("op", op))
		if subject, ok := jwtmiddleware.FromContext(r.Context()); ok {
			logger = logger.With(slog.String("admin", subject))
		}

		var req InvalidateCatalogRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		if err := catalog.Invalidate(r.Context(), req.IDs...); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("catalog cache invalidated", slog.Int("count", len(req.IDs)))
		w.WriteHeader(http.StatusNoContent)
	}
}
