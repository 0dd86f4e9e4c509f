package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "enforce", cfg.Registry.PrelationPolicy)
		assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
		assert.False(t, cfg.Security.ESignEnabled)
	})

	t.Run("brokers are trimmed and deduplicated", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,a:9092,")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("rejects unknown prelation policy", func(t *testing.T) {
		t.Setenv("PRELATION_POLICY", "ignore")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("production requires real secrets", func(t *testing.T) {
		t.Setenv("LANDREG_ENV", "production")
		_, err := FromEnv()
		require.Error(t, err)

		t.Setenv("JWT_SIGNING_KEY", "prod-key")
		t.Setenv("SYSTEM_CREDENTIAL", "prod-credential")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.Server.IsProduction())
	})
}
