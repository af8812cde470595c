package service

import (
	"fmt"
	"strings"

	"github.com/linemk/storefront-payments/internal/domain/models"
)

// FormatSuccess - текст уведомления об успешной оплате
func FormatSuccess(order *models.Order, paymentID string) string {
	var b strings.Builder
	b.WriteString("✅ Заказ оплачен\n")
	writeLine(&b, "Заказ", order.ID)
	writeLine(&b, "Платёж", paymentID)
	writeOrderBody(&b, order)
	return strings.TrimRight(b.String(), "\n")
}

// FormatFailed - текст уведомления о неудачной оплате
func FormatFailed(order *models.Order, reason string) string {
	var b strings.Builder
	b.WriteString("❌ Оплата не прошла\n")
	writeLine(&b, "Заказ", order.ID)
	writeLine(&b, "Платёж", order.PaymentID())
	writeLine(&b, "Причина", reason)
	writeOrderBody(&b, order)
	return strings.TrimRight(b.String(), "\n")
}

func writeOrderBody(b *strings.Builder, order *models.Order) {
	writeLine(b, "Сумма", formatMoney(order.AmountMinor, order.Currency))
	if order.DiscountMinor > 0 {
		discount := formatMoney(order.DiscountMinor, order.Currency)
		if order.PromoCode != "" {
			discount += " (промокод " + order.PromoCode + ")"
		}
		writeLine(b, "Скидка", discount)
	}

	c := order.Customer
	writeLine(b, "Покупатель", c.Name)
	writeLine(b, "Телефон", c.Phone)
	writeLine(b, "Email", c.Email)
	writeLine(b, "Доставка", joinNonEmpty(", ", c.Delivery.Method, c.Delivery.City, c.Delivery.Address))
	writeLine(b, "Комментарий", c.Delivery.Comment)

	if len(order.Items) == 0 {
		return
	}
	b.WriteString("Состав:\n")
	for i, item := range order.Items {
		name := item.Name
		if item.VariantLabel != "" {
			name += " (" + item.VariantLabel + ")"
		}
		fmt.Fprintf(b, "%d. %s × %d = %s\n", i+1, name, item.Quantity, formatMoney(item.Total(), order.Currency))
	}
}

// writeLine пропускает пустые значения, чтобы в сообщении не было пустых полей
func writeLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func formatMoney(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	s := fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	if currency != "" {
		s += " " + currency
	}
	return s
}
