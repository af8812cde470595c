package notify

import (
	"context"
	"log/slog"
)

// Log пишет уведомления в журнал, для локального запуска
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(ctx context.Context, text string) error {
	l.log.InfoContext(ctx, "payment notification", slog.String("text", text))
	return nil
}
