package service

import (
	"strings"
)

// DiscountFunc возвращает размер скидки для пересчитанной на сервере суммы
type DiscountFunc func(subtotal int64) int64

// PromoCode - правило скидки: процент и/или фиксированная сумма в копейках
type PromoCode struct {
	Percent int
	Fixed   int64
}

// PromoCodes - справочник промокодов, ключи в верхнем регистре
type PromoCodes map[string]PromoCode

func NewPromoCodes(raw map[string]PromoCode) PromoCodes {
	codes := make(PromoCodes, len(raw))
	for code, rule := range raw {
		codes[normalizeCode(code)] = rule
	}
	return codes
}

// Resolve возвращает функцию скидки для кода; пустой код - без скидки
func (p PromoCodes) Resolve(code string) (DiscountFunc, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, nil
	}
	rule, ok := p[code]
	if !ok {
		return nil, validationErrorf("unknown promo code %q", code)
	}
	return func(subtotal int64) int64 {
		return subtotal*int64(rule.Percent)/100 + rule.Fixed
	}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// applyDiscount применяет скидку и не даёт сумме уйти ниже нуля
func applyDiscount(subtotal int64, discount DiscountFunc) (amount, applied int64) {
	if discount == nil {
		return subtotal, 0
	}
	applied = discount(subtotal)
	if applied < 0 {
		applied = 0
	}
	if applied > subtotal {
		applied = subtotal
	}
	return subtotal - applied, applied
}
