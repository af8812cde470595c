package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrTerminalMismatch = errors.New("notification terminal key mismatch")
	// ErrUnavailable - шлюз не ответил или ответ не разобран
	ErrUnavailable = errors.New("gateway unavailable")
)

// Error - отказ шлюза: не-2xx ответ или Success=false
type Error struct {
	Method     string
	HTTPStatus int
	Code       string
	Message    string
	Details    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s failed: http %d, code %s", e.Method, e.HTTPStatus, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}
