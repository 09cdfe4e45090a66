package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults when no config file is present", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 24*time.Hour, cfg.Server.Auth.TokenTTL)
		assert.True(t, cfg.Server.RateLimit.Enabled)
		assert.Equal(t, "info", cfg.Logger.Level)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.False(t, cfg.RabbitMQ.Enabled)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "0 3 * * *", cfg.Batch.StaleApplicationSchedule)
		assert.Equal(t, 30*24*time.Hour, cfg.Batch.StaleApplicationAge)
		assert.Equal(t, 8090, cfg.Notifier.MetricsPort)

		limits, err := cfg.Loan.Parse()
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1000).Equal(limits.MinPrincipal))
		assert.True(t, decimal.NewFromInt(50000).Equal(limits.MaxPrincipal))
		assert.Equal(t, 1, limits.MinTenureMonths)
		assert.Equal(t, 24, limits.MaxTenureMonths)
		assert.True(t, decimal.NewFromInt(30000).Equal(limits.DefaultMonthlyIncome))
	})

	t.Run("environment overrides nested keys", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9999")
		t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/loans?sslmode=disable")
		t.Setenv("SERVER_AUTH_JWTSECRET", "from-env")

		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "postgres://u:p@db:5432/loans?sslmode=disable", cfg.Database.URL)
		assert.Equal(t, "from-env", cfg.Server.Auth.JWTSecret)
	})

	t.Run("reads config.yml", func(t *testing.T) {
		dir := t.TempDir()
		content := []byte("server:\n  port: 7070\nloan:\n  maxPrincipal: \"75000\"\nredis:\n  enabled: true\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), content, 0o644))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "75000", cfg.Loan.MaxPrincipal)
		assert.True(t, cfg.Redis.Enabled)
	})

	t.Run("malformed config.yml is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("server: [unclosed"), 0o644))

		_, err := LoadConfig(dir)
		assert.Error(t, err)
	})
}

func TestLoanConfigParse(t *testing.T) {
	valid := LoanConfig{MinPrincipal: "1000", MaxPrincipal: "50000", MinTenureMonths: 1, MaxTenureMonths: 24, DefaultMonthlyIncome: "30000"}

	_, err := valid.Parse()
	require.NoError(t, err)

	bad := valid
	bad.MaxPrincipal = "500"
	_, err = bad.Parse()
	assert.Error(t, err)

	bad = valid
	bad.MinTenureMonths = 0
	_, err = bad.Parse()
	assert.Error(t, err)

	bad = valid
	bad.DefaultMonthlyIncome = "lots"
	_, err = bad.Parse()
	assert.Error(t, err)
}

func TestRabbitMQURL(t *testing.T) {
	cfg := RabbitMQConfig{Host: "mq", Port: 5672, Username: "guest", Password: "p@ss"}
	assert.Equal(t, "amqp://guest:p%40ss@mq:5672/", cfg.URL())
}
