package redisclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReserveResult(t *testing.T) {
	ok, err := parseReserveResult(1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = parseReserveResult(0)
	require.NoError(t, err)
	assert.False(t, ok)

	// An unseeded key is not a rejection: callers must get a signal to
	// consult the database instead of a silent ok=false
	ok, err = parseReserveResult(-1)
	assert.ErrorIs(t, err, ErrStockUnseeded)
	assert.False(t, ok)

	_, err = parseReserveResult(7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStockUnseeded)
}

func TestReserveStockUnseeded(t *testing.T) {
	t.Skip("Integration test - requires redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	// A book with no counters must surface ErrStockUnseeded, never a
	// plain rejection
	_, err = client.ReserveStock(ctx, 424242, 1)
	assert.ErrorIs(t, err, ErrStockUnseeded)

	// After seeding the normal grant/reject verdicts apply
	require.NoError(t, client.InitStock(ctx, 424242, 3, 0))

	ok, err := client.ReserveStock(ctx, 424242, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ReserveStock(ctx, 424242, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
