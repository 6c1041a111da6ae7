package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
}

func newTestBalances(t *testing.T) (*Balances, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBalances(client, time.Minute), mr
}

func TestBalancesRoundTrip(t *testing.T) {
	balances, _ := newTestBalances(t)
	ctx := context.Background()
	key := RakeKey("RK-2024-001")

	var got snapshot
	require.ErrorIs(t, balances.Get(ctx, key, &got), ErrMiss)

	require.NoError(t, balances.Set(ctx, key, snapshot{Total: 2600, Remaining: 412.5}))
	require.NoError(t, balances.Get(ctx, key, &got))
	require.Equal(t, snapshot{Total: 2600, Remaining: 412.5}, got)
}

func TestBalancesInvalidate(t *testing.T) {
	balances, _ := newTestBalances(t)
	ctx := context.Background()
	rakeKey := RakeKey("RK-2024-002")
	whKey := WarehouseKey(7)

	require.NoError(t, balances.Set(ctx, rakeKey, snapshot{Total: 1000}))
	require.NoError(t, balances.Set(ctx, whKey, snapshot{Total: 55}))
	require.NoError(t, balances.Invalidate(ctx, rakeKey, whKey))

	var got snapshot
	require.ErrorIs(t, balances.Get(ctx, rakeKey, &got), ErrMiss)
	require.ErrorIs(t, balances.Get(ctx, whKey, &got), ErrMiss)
}

func TestBalancesExpiry(t *testing.T) {
	balances, mr := newTestBalances(t)
	ctx := context.Background()
	key := WarehouseKey(3)

	require.NoError(t, balances.Set(ctx, key, snapshot{Total: 120}))
	mr.FastForward(2 * time.Minute)

	var got snapshot
	require.ErrorIs(t, balances.Get(ctx, key, &got), ErrMiss)
}

func TestNilClientIsNoOp(t *testing.T) {
	var balances *Balances
	ctx := context.Background()

	var got snapshot
	require.ErrorIs(t, balances.Get(ctx, RakeKey("x"), &got), ErrMiss)
	require.NoError(t, balances.Set(ctx, RakeKey("x"), snapshot{}))
	require.NoError(t, balances.Invalidate(ctx, RakeKey("x")))
}
