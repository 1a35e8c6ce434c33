package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultSigningConfig(t *testing.T) {
	cfg := NewDefaultSigningConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, PersistenceTypeMemory, cfg.Persistence.Type)
}

func TestSigningConfig_Validate(t *testing.T) {
	t.Run("rejects non-positive timeout", func(t *testing.T) {
		cfg := NewDefaultSigningConfig()
		cfg.LedgerTimeout = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledgerTimeout")
	})

	t.Run("requires badger path", func(t *testing.T) {
		cfg := NewDefaultSigningConfig()
		cfg.Persistence.Type = PersistenceTypeBadger

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "persistence.badgerPath")
	})

	t.Run("requires redis address and a valid db", func(t *testing.T) {
		cfg := NewDefaultSigningConfig()
		cfg.Persistence.Type = PersistenceTypeRedis
		cfg.Persistence.RedisDB = 16

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "persistence.redisAddress")
		assert.Contains(t, err.Error(), "persistence.redisDb")
	})

	t.Run("aggregates every problem", func(t *testing.T) {
		cfg := &SigningConfig{Persistence: PersistenceConfig{Type: "sqlite"}}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledgerTimeout")
		assert.Contains(t, err.Error(), "apduChunkRate")
		assert.Contains(t, err.Error(), "metricsNamespace")
		assert.Contains(t, err.Error(), "persistence.type")
	})
}

func TestParsePersistenceType(t *testing.T) {
	pt, err := ParsePersistenceType(" Badger ")
	require.NoError(t, err)
	assert.Equal(t, PersistenceTypeBadger, pt)

	_, err = ParsePersistenceType("sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported persistence type")
}
