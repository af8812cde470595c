package service

import (
	"errors"
	"fmt"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/gateway"
	"github.com/linemk/storefront-payments/internal/storage"
)

var (
	// ErrOutcomeConflict - заявленный исход противоречит терминальному статусу заказа
	ErrOutcomeConflict = errors.New("claimed outcome contradicts order status")
	// ErrIllegalTransition - недопустимый переход статуса заказа
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrPaymentMismatch - уведомление пришло по чужому платежу
	ErrPaymentMismatch = errors.New("notification payment id does not match order")
	// ErrAmountMismatch - сумма в уведомлении не совпадает с суммой заказа
	ErrAmountMismatch = errors.New("notification amount does not match order")
)

// ValidationError - некорректная корзина или запрос, до сохранения не доходит
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError - заказа с таким id нет
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

func (e *NotFoundError) Unwrap() error {
	return storage.ErrOrderNotFound
}

// UnconfirmedPaymentError - шлюз не подтвердил заявленный исход.
// Это штатный бизнес-результат, а не сбой транспорта.
type UnconfirmedPaymentError struct {
	OrderID       string
	Claimed       Outcome
	GatewayStatus gateway.Status
	Cause         error
}

func (e *UnconfirmedPaymentError) Error() string {
	msg := fmt.Sprintf("payment not confirmed for order %s: claimed %s", e.OrderID, e.Claimed)
	if e.GatewayStatus != "" {
		msg += ", gateway status " + string(e.GatewayStatus)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnconfirmedPaymentError) Unwrap() error {
	return e.Cause
}

// NotificationDeliveryError - канал уведомлений не доставил сообщение. Отметка в заказе при этом остаётся.
type NotificationDeliveryError struct {
	OrderID string
	Event   models.NotificationEvent
	Cause   error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notification %s for order %s not delivered: %v", e.Event, e.OrderID, e.Cause)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Cause
}
