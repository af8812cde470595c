package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/linemk/storefront-payments/internal/config"
)

const (
	KindTelegram = "telegram"
	KindKafka    = "kafka"
	KindLog      = "log"
)

// Channel - канал уведомлений, который можно закрыть при остановке
type Channel interface {
	Send(ctx context.Context, text string) error
	io.Closer
}

type nopCloser struct {
	sender interface {
		Send(ctx context.Context, text string) error
	}
}

func (n nopCloser) Send(ctx context.Context, text string) error { return n.sender.Send(ctx, text) }

func (nopCloser) Close() error { return nil }

// New собирает канал по конфигу
func New(log *slog.Logger, cfg config.NotifierConfig) (Channel, error) {
	const op = "notify.New"

	switch cfg.Kind {
	case KindTelegram:
		tg, err := NewTelegram(TelegramConfig{
			BaseURL: cfg.Telegram.BaseURL,
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
			Timeout: cfg.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nopCloser{tg}, nil
	case KindKafka:
		w, err := NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return NewKafka(w), nil
	case KindLog, "":
		return nopCloser{NewLog(log)}, nil
	}
	return nil, fmt.Errorf("%s: unknown notifier kind %q", op, cfg.Kind)
}
