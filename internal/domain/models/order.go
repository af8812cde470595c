package models

import "time"

// OrderStatus - статус заказа. Переходы только created -> paid|failed|canceled.
type OrderStatus string

const (
	OrderCreated  OrderStatus = "created"
	OrderPaid     OrderStatus = "paid"
	OrderFailed   OrderStatus = "failed"
	OrderCanceled OrderStatus = "canceled"
)

// IsTerminal сообщает, что из статуса нет переходов
func (s OrderStatus) IsTerminal() bool {
	return s == OrderPaid || s == OrderFailed || s == OrderCanceled
}

// Valid проверяет, что статус из известного набора
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderCreated, OrderPaid, OrderFailed, OrderCanceled:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderCreated && next.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem - позиция заказа, снимок цены на момент оформления
type OrderItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unit_price"` // в копейках
	Quantity     int    `json:"quantity"`
	VariantLabel string `json:"variant_label,omitempty"`
	Path         string `json:"path,omitempty"`
}

// Total - стоимость позиции
func (i OrderItem) Total() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Delivery - данные доставки, передаются как есть
type Delivery struct {
	Method  string `json:"method,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Customer - контактные данные покупателя
type Customer struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email,omitempty"`
	Delivery Delivery `json:"delivery"`
}

// Order представляет заказ, созданный при оформлении корзины
type Order struct {
	ID                       string      `json:"id"`
	Items                    []OrderItem `json:"items"`
	SubtotalMinor            int64       `json:"subtotal_minor"`
	DiscountMinor            int64       `json:"discount_minor"`
	AmountMinor              int64       `json:"amount_minor"`
	Currency                 string      `json:"currency"`
	Customer                 Customer    `json:"customer"`
	PromoCode                string      `json:"promo_code,omitempty"`
	Status                   OrderStatus `json:"status"`
	GatewayPaymentID         *string     `json:"gateway_payment_id,omitempty"`
	PaymentSuccessNotifiedAt *time.Time  `json:"payment_success_notified_at,omitempty"`
	PaymentFailNotifiedAt    *time.Time  `json:"payment_fail_notified_at,omitempty"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

// PaymentID возвращает идентификатор платежа или пустую строку
func (o *Order) PaymentID() string {
	if o.GatewayPaymentID == nil {
		return ""
	}
	return *o.GatewayPaymentID
}
