package service

import (
	"math/bits"
	"sort"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/gateway"
)

const maxReceiptNameRunes = 128

// ReceiptOptions - параметры чека
type ReceiptOptions struct {
	Enabled  bool
	Taxation string
	Tax      string
}

// BuildReceipt собирает чек по позициям заказа.
// Сумма позиций равна сумме заказа, каждая позиция неотрицательна и Price*Quantity == Amount.
func BuildReceipt(order *models.Order, opts ReceiptOptions) *gateway.Receipt {
	if !opts.Enabled || len(order.Items) == 0 || order.SubtotalMinor <= 0 {
		return nil
	}

	amounts := distributeDiscount(order)
	items := make([]gateway.ReceiptItem, 0, len(order.Items))
	for i, item := range order.Items {
		name := item.Name
		if item.VariantLabel != "" {
			name += " (" + item.VariantLabel + ")"
		}
		for _, line := range splitLine(amounts[i], int64(item.Quantity)) {
			items = append(items, gateway.ReceiptItem{
				Name:          truncateRunes(name, maxReceiptNameRunes),
				Price:         line.price,
				Quantity:      float64(line.quantity),
				Amount:        line.price * line.quantity,
				Tax:           opts.Tax,
				PaymentMethod: "full_prepayment",
				PaymentObject: "commodity",
			})
		}
	}

	return &gateway.Receipt{
		Email:    order.Customer.Email,
		Phone:    order.Customer.Phone,
		Taxation: opts.Taxation,
		Items:    items,
	}
}

// distributeDiscount делит скидку между позициями методом наибольших остатков.
// Доля позиции не превышает её стоимость, поэтому суммы позиций не уходят в минус.
func distributeDiscount(order *models.Order) []int64 {
	subtotal := uint64(order.SubtotalMinor)
	discount := order.SubtotalMinor - order.AmountMinor
	if discount < 0 {
		discount = 0
	}
	if discount > order.SubtotalMinor {
		discount = order.SubtotalMinor
	}

	amounts := make([]int64, len(order.Items))
	remainders := make([]uint64, len(order.Items))
	left := discount
	for i, item := range order.Items {
		total := item.Total()
		// discount*total может не поместиться в int64
		hi, lo := bits.Mul64(uint64(discount), uint64(total))
		share, rem := bits.Div64(hi, lo, subtotal)
		amounts[i] = total - int64(share)
		remainders[i] = rem
		left -= int64(share)
	}

	indexes := make([]int, len(order.Items))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool { return remainders[indexes[a]] > remainders[indexes[b]] })
	for _, i := range indexes {
		if left == 0 {
			break
		}
		if remainders[i] == 0 {
			continue
		}
		amounts[i]--
		left--
	}
	return amounts
}

type receiptLine struct {
	price    int64
	quantity int64
}

// splitLine разбивает позицию на две строки, если сумма не делится на количество нацело
func splitLine(amount, quantity int64) []receiptLine {
	if quantity <= 1 || amount%quantity == 0 {
		if quantity < 1 {
			quantity = 1
		}
		return []receiptLine{{price: amount / quantity, quantity: quantity}}
	}
	price := amount / quantity
	return []receiptLine{
		{price: price, quantity: quantity - 1},
		{price: amount - price*(quantity-1), quantity: 1},
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
