package app_test

import (
	"testing"

	"github.com/linemk/storefront-payments/internal/app"
	"github.com/linemk/storefront-payments/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	dsn := app.DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "shop",
		Password: "secret",
		Name:     "payments",
	})
	assert.Equal(t, "postgres://shop:secret@db:5433/payments?sslmode=disable", dsn)
}
