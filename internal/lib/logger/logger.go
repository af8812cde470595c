package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/linemk/storefront-payments/internal/config"
	"github.com/linemk/storefront-payments/internal/lib/logger/handlers/slogpretty"
)

// switching logger
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// SetupLogger инициализирует логгер в зависимости от окружения.
// Для local цветной вывод (pretty), для dev/prod JSON. Уровень из cfg.Level важнее уровня окружения.
func SetupLogger(env string, cfg config.LogConfig) *slog.Logger {
	return newLogger(os.Stdout, env, cfg)
}

func newLogger(out io.Writer, env string, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     envLevel(env),
		AddSource: cfg.AddSource,
	}
	if level, ok := parseLevel(cfg.Level); ok {
		opts.Level = level
	}

	var log *slog.Logger
	if env == EnvLocal {
		log = setupPrettySlog(out, opts)
	} else {
		log = slog.New(slog.NewJSONHandler(out, opts))
	}

	if cfg.Service != "" {
		log = log.With(slog.String("service", cfg.Service))
	}
	return log
}

func envLevel(env string) slog.Level {
	switch env {
	case EnvLocal, EnvDev:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// parseLevel понимает debug, info, warn, error; пустая строка - уровень окружения
func parseLevel(s string) (slog.Level, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, false
	}
	return level, true
}

func setupPrettySlog(out io.Writer, slogOpts *slog.HandlerOptions) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: slogOpts,
	}

	handler := opts.NewPrettyHandler(out)
	return slog.New(handler)
}
