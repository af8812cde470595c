package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	methodInit     = "Init"
	methodGetState = "GetState"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Config - параметры терминала
type Config struct {
	BaseURL     string
	TerminalKey string
	Password    string
	Language    string
	Timeout     time.Duration
	HTTP        *http.Client
}

// Client - клиент платёжного шлюза: Init, GetState и проверка уведомлений
type Client struct {
	baseURL     string
	terminalKey string
	password    string
	language    string
	timeout     time.Duration
	http        *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.TerminalKey) == "" || cfg.Password == "" {
		return nil, fmt.Errorf("gateway config incomplete")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		terminalKey: cfg.TerminalKey,
		password:    cfg.Password,
		language:    cfg.Language,
		timeout:     timeout,
		http:        hc,
	}, nil
}

// Receipt - чек, передаётся в теле запроса, но не подписывается
type Receipt struct {
	Email    string        `json:"Email,omitempty"`
	Phone    string        `json:"Phone,omitempty"`
	Taxation string        `json:"Taxation"`
	Items    []ReceiptItem `json:"Items"`
}

type ReceiptItem struct {
	Name          string  `json:"Name"`
	Price         int64   `json:"Price"`
	Quantity      float64 `json:"Quantity"`
	Amount        int64   `json:"Amount"`
	Tax           string  `json:"Tax"`
	PaymentMethod string  `json:"PaymentMethod,omitempty"`
	PaymentObject string  `json:"PaymentObject,omitempty"`
}

// InitRequest - данные для создания платежа
type InitRequest struct {
	OrderID         string
	Amount          int64
	Description     string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	Receipt         *Receipt
	Data            map[string]string
}

// InitResult - ответ шлюза на создание платежа
type InitResult struct {
	PaymentID  string
	PaymentURL string
	Status     Status
}

// StatusResult - текущее состояние платежа
type StatusResult struct {
	PaymentID string
	OrderID   string
	Status    Status
	Amount    int64
}

type initPayload struct {
	TerminalKey     string            `json:"TerminalKey"`
	Amount          int64             `json:"Amount"`
	OrderID         string            `json:"OrderId"`
	Description     string            `json:"Description,omitempty"`
	SuccessURL      string            `json:"SuccessURL,omitempty"`
	FailURL         string            `json:"FailURL,omitempty"`
	NotificationURL string            `json:"NotificationURL,omitempty"`
	Language        string            `json:"Language,omitempty"`
	Token           string            `json:"Token"`
	Data            map[string]string `json:"DATA,omitempty"`
	Receipt         *Receipt          `json:"Receipt,omitempty"`
}

type statePayload struct {
	TerminalKey string `json:"TerminalKey"`
	PaymentID   string `json:"PaymentId"`
	Token       string `json:"Token"`
}

type response struct {
	Success    bool      `json:"Success"`
	ErrorCode  string    `json:"ErrorCode"`
	Message    string    `json:"Message"`
	Details    string    `json:"Details"`
	Status     Status    `json:"Status"`
	PaymentID  PaymentID `json:"PaymentId"`
	OrderID    string    `json:"OrderId"`
	Amount     int64     `json:"Amount"`
	PaymentURL string    `json:"PaymentURL"`
}

// PaymentID принимает идентификатор платежа и строкой, и числом
type PaymentID string

func (p *PaymentID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*p = PaymentID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = PaymentID(n.String())
	return nil
}

// InitiatePayment создаёт платёж. Подписываются только плоские поля, чек и DATA идут в теле без подписи.
func (c *Client) InitiatePayment(ctx context.Context, req InitRequest) (*InitResult, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("order id required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	payload := initPayload{
		TerminalKey:     c.terminalKey,
		Amount:          req.Amount,
		OrderID:         req.OrderID,
		Description:     req.Description,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
		Language:        c.language,
		Data:            req.Data,
		Receipt:         req.Receipt,
	}
	payload.Token = Sign(map[string]any{
		"TerminalKey":     payload.TerminalKey,
		"Amount":          payload.Amount,
		"OrderId":         payload.OrderID,
		"Description":     payload.Description,
		"SuccessURL":      payload.SuccessURL,
		"FailURL":         payload.FailURL,
		"NotificationURL": payload.NotificationURL,
		"Language":        payload.Language,
	}, c.password)

	out, err := c.do(ctx, methodInit, payload)
	if err != nil {
		return nil, err
	}
	if out.PaymentID == "" {
		return nil, &Error{Method: methodInit, HTTPStatus: http.StatusOK, Code: out.ErrorCode, Message: "missing PaymentId"}
	}
	return &InitResult{
		PaymentID:  string(out.PaymentID),
		PaymentURL: out.PaymentURL,
		Status:     out.Status,
	}, nil
}

// GetStatus запрашивает статус платежа. Подписываются только TerminalKey и PaymentId.
func (c *Client) GetStatus(ctx context.Context, paymentID string) (*StatusResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("payment id required")
	}
	payload := statePayload{
		TerminalKey: c.terminalKey,
		PaymentID:   paymentID,
	}
	payload.Token = Sign(map[string]any{
		"TerminalKey": payload.TerminalKey,
		"PaymentId":   payload.PaymentID,
	}, c.password)

	out, err := c.do(ctx, methodGetState, payload)
	if err != nil {
		return nil, err
	}
	id := string(out.PaymentID)
	if id == "" {
		id = paymentID
	}
	return &StatusResult{
		PaymentID: id,
		OrderID:   out.OrderID,
		Status:    out.Status,
		Amount:    out.Amount,
	}, nil
}

func (c *Client) do(ctx context.Context, method string, payload any) (*response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: marshal request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gateway %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: %w: %w", method, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("gateway %s: read response: %w: %w", method, ErrUnavailable, err)
	}

	var out response
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{Method: method, HTTPStatus: resp.StatusCode, Code: strconv.Itoa(resp.StatusCode)}
		if decodeErr == nil && out.ErrorCode != "" {
			gwErr.Code = out.ErrorCode
			gwErr.Message = out.Message
			gwErr.Details = out.Details
		} else {
			gwErr.Message = strings.TrimSpace(string(body))
		}
		return nil, gwErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("gateway %s: decode response: %w: %w", method, ErrUnavailable, decodeErr)
	}
	if !out.Success {
		return nil, &Error{
			Method:     method,
			HTTPStatus: resp.StatusCode,
			Code:       out.ErrorCode,
			Message:    out.Message,
			Details:    out.Details,
		}
	}
	return &out, nil
}
