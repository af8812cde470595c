package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/storefront-payments/internal/gateway"
	"github.com/linemk/storefront-payments/internal/service"
	"github.com/linemk/storefront-payments/internal/storage"
)

const maxBodySize = 1 << 20

var validate = validator.New()

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor сопоставляет ошибку сервиса с HTTP-кодом
func StatusFor(err error) int {
	var (
		validationErr  *service.ValidationError
		notFoundErr    *service.NotFoundError
		unconfirmedErr *service.UnconfirmedPaymentError
		gatewayErr     *gateway.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr), errors.Is(err, storage.ErrOrderNotFound):
		return http.StatusNotFound
	// до проверки шлюза: причиной неподтверждения может быть его ошибка
	case errors.As(err, &unconfirmedErr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOutcomeConflict), errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrPaymentMismatch), errors.Is(err, service.ErrAmountMismatch):
		return http.StatusConflict
	case errors.As(err, &gatewayErr), errors.Is(err, gateway.ErrUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
		msg = "internal server error"
	} else {
		logger.Warn("request rejected", slog.Int("status", code), slog.Any("error", err))
	}
	writeJSON(w, logger, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}
