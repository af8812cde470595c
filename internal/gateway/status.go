package gateway

// Status - статус платежа на стороне шлюза
type Status string

const (
	StatusNew             Status = "NEW"
	StatusFormShowed      Status = "FORM_SHOWED"
	StatusAuthorizing     Status = "AUTHORIZING"
	Status3DSChecking     Status = "3DS_CHECKING"
	Status3DSChecked      Status = "3DS_CHECKED"
	StatusAuthorized      Status = "AUTHORIZED"
	StatusConfirming      Status = "CONFIRMING"
	StatusConfirmed       Status = "CONFIRMED"
	StatusReversing       Status = "REVERSING"
	StatusPartialReversed Status = "PARTIAL_REVERSED"
	StatusReversed        Status = "REVERSED"
	StatusRefunding       Status = "REFUNDING"
	StatusPartialRefunded Status = "PARTIAL_REFUNDED"
	StatusRefunded        Status = "REFUNDED"
	StatusCanceled        Status = "CANCELED"
	StatusDeadlineExpired Status = "DEADLINE_EXPIRED"
	StatusRejected        Status = "REJECTED"
	StatusAuthFail        Status = "AUTH_FAIL"
)

// Bucket - грубая классификация статуса шлюза
type Bucket int

const (
	Indeterminate Bucket = iota
	SuccessLike
	FailLike
)

func (b Bucket) String() string {
	switch b {
	case SuccessLike:
		return "success-like"
	case FailLike:
		return "fail-like"
	default:
		return "indeterminate"
	}
}

// Bucket относит статус к одной из корзин. Неизвестные статусы считаются неопределёнными.
func (s Status) Bucket() Bucket {
	switch s {
	case StatusConfirmed, StatusAuthorized:
		return SuccessLike
	case StatusCanceled, StatusRejected, StatusDeadlineExpired, StatusRefunded, StatusReversed, StatusAuthFail:
		return FailLike
	default:
		return Indeterminate
	}
}

func (s Status) String() string {
	return string(s)
}
