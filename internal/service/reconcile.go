package service

import (
	"fmt"
	"strings"

	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/gateway"
)

// Outcome - исход оплаты, о котором заявляет клиент или шлюз
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
)

// ParseOutcome разбирает исход из запроса
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeSuccess:
		return OutcomeSuccess, nil
	case OutcomeFail:
		return OutcomeFail, nil
	}
	return "", validationErrorf("unknown outcome %q", s)
}

// Event - тип уведомления для исхода
func (o Outcome) Event() models.NotificationEvent {
	if o == OutcomeSuccess {
		return models.EventPaymentSuccess
	}
	return models.EventPaymentFail
}

// Evidence - что известно от шлюза на момент решения
type Evidence struct {
	HasPaymentID bool
	Checked      bool
	Status       gateway.Status
	Err          error
}

// Bucket - корзина статуса; ошибка или отсутствие проверки дают Indeterminate
func (e Evidence) Bucket() gateway.Bucket {
	if !e.Checked || e.Err != nil {
		return gateway.Indeterminate
	}
	return e.Status.Bucket()
}

// Decision - итог сверки: следующий статус и нужно ли его записывать
type Decision struct {
	Next   models.OrderStatus
	Change bool
}

// Agrees сообщает, что статус заказа уже соответствует заявленному исходу
func Agrees(current models.OrderStatus, claimed Outcome) bool {
	switch claimed {
	case OutcomeSuccess:
		return current == models.OrderPaid
	case OutcomeFail:
		return current == models.OrderFailed || current == models.OrderCanceled
	}
	return false
}

// NeedsEvidence сообщает, нужно ли спрашивать шлюз перед решением
func NeedsEvidence(current models.OrderStatus, claimed Outcome, hasPaymentID bool) bool {
	return hasPaymentID && current == models.OrderCreated && !Agrees(current, claimed)
}

// Decide - переход состояния без ввода-вывода.
// Успех требует подтверждения шлюзом; неудача без платежа принимается как есть.
func Decide(current models.OrderStatus, claimed Outcome, ev Evidence) (Decision, error) {
	if !current.Valid() {
		return Decision{}, fmt.Errorf("unknown order status %q", current)
	}
	if claimed != OutcomeSuccess && claimed != OutcomeFail {
		return Decision{}, validationErrorf("unknown outcome %q", claimed)
	}
	stay := Decision{Next: current}

	if Agrees(current, claimed) {
		return stay, nil
	}

	if current.IsTerminal() {
		if claimed == OutcomeSuccess {
			return stay, &UnconfirmedPaymentError{Claimed: claimed, GatewayStatus: ev.Status}
		}
		return stay, ErrOutcomeConflict
	}

	bucket := ev.Bucket()
	switch claimed {
	case OutcomeSuccess:
		if ev.HasPaymentID && bucket == gateway.SuccessLike {
			return Decision{Next: models.OrderPaid, Change: true}, nil
		}
		return stay, &UnconfirmedPaymentError{Claimed: claimed, GatewayStatus: ev.Status, Cause: ev.Err}
	default:
		if !ev.HasPaymentID {
			return stay, nil
		}
		switch bucket {
		case gateway.FailLike:
			return Decision{Next: models.OrderFailed, Change: true}, nil
		case gateway.SuccessLike:
			// шлюз видит оплату: фиксируем её, уведомление о неудаче не отправляется
			return Decision{Next: models.OrderPaid, Change: true}, ErrOutcomeConflict
		default:
			return stay, &UnconfirmedPaymentError{Claimed: claimed, GatewayStatus: ev.Status, Cause: ev.Err}
		}
	}
}
