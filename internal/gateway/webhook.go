package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Notification - проверенное уведомление шлюза о смене статуса платежа
type Notification struct {
	TerminalKey string
	OrderID     string
	Success     bool
	Status      Status
	PaymentID   string
	ErrorCode   string
	Amount      int64
}

type notificationPayload struct {
	TerminalKey string    `json:"TerminalKey"`
	OrderID     string    `json:"OrderId"`
	Success     bool      `json:"Success"`
	Status      Status    `json:"Status"`
	PaymentID   PaymentID `json:"PaymentId"`
	ErrorCode   string    `json:"ErrorCode"`
	Amount      int64     `json:"Amount"`
}

// ParseNotification разбирает тело уведомления и проверяет его подпись.
// Числа читаются как json.Number, чтобы подпись считалась по исходному представлению.
func (c *Client) ParseNotification(body []byte) (*Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	token, _ := fields[TokenField].(string)
	if !Verify(fields, token, c.password) {
		return nil, ErrInvalidSignature
	}

	var p notificationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if p.TerminalKey != c.terminalKey {
		return nil, ErrTerminalMismatch
	}
	return &Notification{
		TerminalKey: p.TerminalKey,
		OrderID:     p.OrderID,
		Success:     p.Success,
		Status:      p.Status,
		PaymentID:   string(p.PaymentID),
		ErrorCode:   p.ErrorCode,
		Amount:      p.Amount,
	}, nil
}
