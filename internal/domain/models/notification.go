package models

// NotificationEvent - тип уведомления об оплате
type NotificationEvent string

const (
	EventPaymentSuccess NotificationEvent = "SUCCESS"
	EventPaymentFail    NotificationEvent = "FAIL"
)

func (e NotificationEvent) String() string {
	return string(e)
}
