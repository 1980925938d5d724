package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	cfg "github.com/acc-network/relay/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	for key, value := range map[string]string{
		"RELAY_ACCESS_KEY":       "access",
		"RELAY_ENCRYPT_KEY":      "encrypt",
		"RELAY_CHAIN_RPC_URL":    "http://127.0.0.1:8545",
		"RELAY_PRIVATE_KEY":      "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"RELAY_LEDGER_ADDRESS":   "0x1000000000000000000000000000000000000001",
		"RELAY_SHOP_ADDRESS":     "0x1000000000000000000000000000000000000002",
		"RELAY_CONSUMER_ADDRESS": "0x1000000000000000000000000000000000000003",
		"RELAY_CURRENCY_ADDRESS": "0x1000000000000000000000000000000000000004",
	} {
		t.Setenv(key, value)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)
		datadir := t.TempDir()
		t.Setenv("RELAY_DATADIR", datadir)

		config, err := cfg.LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "sqlite", config.DbType)
		require.Equal(t, uint32(7070), config.HTTPPort)
		require.DirExists(t, filepath.Join(datadir, "db"))

		app := config.AppConfig()
		require.Equal(t, 45*time.Second, app.PaymentTimeout)
		require.Equal(t, 3*time.Second, app.ApprovalTimeout)
		require.Equal(t, 300*time.Second, app.ForcedCloseTimeout)
		require.Equal(t, time.Hour, app.TemporaryAccountTTL)
		require.Equal(t, 5, app.TaskMaxAttempts)
		require.Equal(t, 8, app.StaleNonceWindow)
		require.Equal(t, "0x0001", app.AllowedShopIDPrefix)

		web := config.WebConfig()
		require.Equal(t, "access", web.AccessKey)
		require.False(t, web.SentryEnabled)

		chain := config.ChainConfig()
		require.Equal(t, "http://127.0.0.1:8545", chain.RPCURL)
		require.Equal(t, "0x1000000000000000000000000000000000000003", chain.ConsumerAddress.Hex())
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RELAY_DATADIR", t.TempDir())
		t.Setenv("RELAY_DB_TYPE", "badger")
		t.Setenv("RELAY_RATE_LIMIT", "2.5")
		t.Setenv("RELAY_RECONCILER_REMOTE_STATUS", "true")
		t.Setenv("RELAY_SENTRY_DSN", "https://key@sentry.example/1")

		config, err := cfg.LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "badger", config.DbType)
		require.Equal(t, 2.5, config.RateLimit)
		require.True(t, config.ReconcilerRemoteStatus)
		require.True(t, config.WebConfig().SentryEnabled)
	})

	t.Run("config file", func(t *testing.T) {
		setRequired(t)
		dir := t.TempDir()
		file := filepath.Join(dir, "relay.yaml")
		require.NoError(t, os.WriteFile(file, []byte("HTTP_PORT: 9090\nTASK_MAX_ATTEMPTS: 2\n"), 0o600))
		t.Setenv("RELAY_DATADIR", dir)
		t.Setenv("RELAY_CONFIG_FILE", file)
		t.Setenv("RELAY_TASK_MAX_ATTEMPTS", "7")

		config, err := cfg.LoadConfig()
		require.NoError(t, err)
		require.Equal(t, uint32(9090), config.HTTPPort)
		// The environment wins over the file.
		require.Equal(t, uint32(7), config.TaskMaxAttempts)
	})
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{"db type", map[string]string{"RELAY_DB_TYPE": "postgres"}, "DB_TYPE"},
		{"access key", map[string]string{"RELAY_ACCESS_KEY": ""}, "ACCESS_KEY"},
		{"private key", map[string]string{"RELAY_PRIVATE_KEY": " "}, "PRIVATE_KEY"},
		{"ledger", map[string]string{"RELAY_LEDGER_ADDRESS": "0x1234"}, "LEDGER_ADDRESS"},
		{"bridge", map[string]string{"RELAY_BRIDGE_ADDRESS": "bridge"}, "BRIDGE_ADDRESS"},
		{"approval", map[string]string{"RELAY_APPROVAL_SECOND": "60"}, "APPROVAL_SECOND"},
		{"attempts", map[string]string{"RELAY_TASK_MAX_ATTEMPTS": "0"}, "TASK_MAX_ATTEMPTS"},
		{"rate limit", map[string]string{"RELAY_RATE_LIMIT": "-1"}, "RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("RELAY_DATADIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := cfg.LoadConfig()
			require.Error(t, err)
			require.True(t, cfg.IsConfigError(err))

			var configErr *cfg.Error
			require.ErrorAs(t, err, &configErr)
			require.Equal(t, tt.key, configErr.Key)
		})
	}
}
