package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/service"
)

// CartItemRequest - позиция корзины. Цена с клиента не принимается.
type CartItemRequest struct {
	ID       string `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Variant  string `json:"variant,omitempty"`
}

type DeliveryRequest struct {
	Method  string `json:"method"`
	City    string `json:"city"`
	Address string `json:"address"`
	Comment string `json:"comment" validate:"max=1000"`
}

type CustomerRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Phone    string          `json:"phone" validate:"required,max=32"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Delivery DeliveryRequest `json:"delivery"`
}

// CreateOrderRequest - тело POST /api/orders
type CreateOrderRequest struct {
	Items     []CartItemRequest `json:"items" validate:"required,min=1,dive"`
	Customer  CustomerRequest   `json:"customer"`
	PromoCode string            `json:"promoCode,omitempty" validate:"max=64"`
}

// CreateOrderHandler оформляет заказ и возвращает ссылку на оплату
func CreateOrderHandler(log *slog.Logger, checkout service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CreateOrderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "validation error: " + err.Error()})
			return
		}

		items := make([]service.CartItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, service.CartItem{ID: it.ID, Quantity: it.Quantity, Variant: it.Variant})
		}
		res, err := checkout.Checkout(r.Context(), service.CheckoutRequest{
			Items: items,
			Customer: models.Customer{
				Name:  req.Customer.Name,
				Phone: req.Customer.Phone,
				Email: req.Customer.Email,
				Delivery: models.Delivery{
					Method:  req.Customer.Delivery.Method,
					City:    req.Customer.Delivery.City,
					Address: req.Customer.Delivery.Address,
					Comment: req.Customer.Delivery.Comment,
				},
			},
			PromoCode: req.PromoCode,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, res)
	}
}
