package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesMergesOverDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
database:
  host: db.internal
  user: memento
  database: memento
redis:
  addr: redis.internal:6379
`))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.6, cfg.Ranking.ImportanceWeight)
	assert.Equal(t, 100, cfg.Ranking.ActivationThreshold)
}

func TestLoadBytesExpandsEnv(t *testing.T) {
	t.Setenv("MEMENTO_DB_PASSWORD", "s3cr3t")
	cfg, err := LoadBytes([]byte(`
database:
  host: localhost
  user: memento
  database: memento
  password: ${MEMENTO_DB_PASSWORD}
redis:
  addr: localhost:6379
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Database.Password)
}

func TestLoadBytesRejectsBadRankingWeights(t *testing.T) {
	_, err := LoadBytes([]byte(`
ranking:
  importance_weight: 0.9
  recency_weight: 0.9
database:
  host: localhost
  user: memento
  database: memento
redis:
  addr: localhost:6379
`))
	require.Error(t, err)
	assert.True(t, IsValidationErrors(err))
}

func TestLoadBytesRejectsMissingDatabase(t *testing.T) {
	_, err := LoadBytes([]byte(`
redis:
  addr: localhost:6379
`))
	require.Error(t, err)
}

func TestDefaultsAreValidOnTheirOwn(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}
