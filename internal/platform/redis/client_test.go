package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewConnectsAndReportsHealth(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := New(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Health(context.Background()))

	// Exercises both the first-call and delta paths.
	client.RecordPoolStats()
	client.RecordPoolStats()
}

func TestNewWithoutAddrIsDisabled(t *testing.T) {
	client, err := New(Config{})
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestNewUnreachableAddrFails(t *testing.T) {
	_, err := New(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
