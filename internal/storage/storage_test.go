package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizops-backend/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, &config.Config{Store: config.StoreConfig{Driver: "memory"}})
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.Store.Customers)
	assert.NoError(t, b.Ping(ctx))

	list, err := b.Store.Businesses.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "cassandra"}})
	assert.ErrorContains(t, err, "unknown store driver")
}
