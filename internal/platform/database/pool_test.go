package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sesame/internal/platform/config"
)

func TestFromEngineCarriesURL(t *testing.T) {
	cfg := FromEngine(config.Engine{DatabaseURL: "postgres://localhost/sesame"})
	require.Equal(t, "postgres://localhost/sesame", cfg.URL)
	require.Equal(t, 25, cfg.MaxOpenConns)
}

func TestNewWithoutURLIsDisabled(t *testing.T) {
	pool, err := New(DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, pool)
}

func TestNilPoolIsSafe(t *testing.T) {
	var pool *Pool
	require.Error(t, pool.Health(context.Background()))
	require.NoError(t, pool.Close())
	require.Zero(t, pool.Stats().OpenConnections)
}
