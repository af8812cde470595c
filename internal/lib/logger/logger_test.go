package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/linemk/storefront-payments/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_EnvLevels(t *testing.T) {
	ctx := context.Background()

	assert.True(t, SetupLogger(EnvLocal, config.LogConfig{}).Enabled(ctx, slog.LevelDebug))
	assert.True(t, SetupLogger(EnvDev, config.LogConfig{}).Enabled(ctx, slog.LevelDebug))
	assert.False(t, SetupLogger(EnvProd, config.LogConfig{}).Enabled(ctx, slog.LevelDebug))
	assert.True(t, SetupLogger("unknown", config.LogConfig{}).Enabled(ctx, slog.LevelInfo))
}

func TestSetupLogger_LevelOverride(t *testing.T) {
	ctx := context.Background()

	prod := SetupLogger(EnvProd, config.LogConfig{Level: "debug"})
	assert.True(t, prod.Enabled(ctx, slog.LevelDebug))

	local := SetupLogger(EnvLocal, config.LogConfig{Level: "WARN"})
	assert.False(t, local.Enabled(ctx, slog.LevelInfo))
	assert.True(t, local.Enabled(ctx, slog.LevelWarn))

	// неизвестный уровень не ломает запуск, остаётся уровень окружения
	broken := SetupLogger(EnvProd, config.LogConfig{Level: "verbose"})
	assert.True(t, broken.Enabled(ctx, slog.LevelInfo))
	assert.False(t, broken.Enabled(ctx, slog.LevelDebug))
}

func TestNewLogger_JSONWithServiceAndSource(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, EnvProd, config.LogConfig{AddSource: true, Service: "storefront-payments"})

	log.Info("order created", slog.String("order_id", "o1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "storefront-payments", entry["service"])
	assert.Equal(t, "o1", entry["order_id"])
	assert.Contains(t, entry, slog.SourceKey)
}
