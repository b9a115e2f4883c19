package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingAccounts struct {
	calls int
}

func (c *countingAccounts) GetOrCreate(ctx context.Context, businessID int64) (ChartOfAccounts, error) {
	c.calls++
	return ChartOfAccounts{
		BusinessID:    businessID,
		InventoryCode: DefaultInventoryCode,
		CashCode:      DefaultCashCode,
		COGSCode:      DefaultCOGSCode,
	}, nil
}

func TestCachedAccountsServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingAccounts{}
	cached := NewCachedAccounts(inner, client, time.Minute)
	ctx := context.Background()

	first, err := cached.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, DefaultCOGSCode, first.COGSCode)
	require.Equal(t, 1, inner.calls)

	second, err := cached.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)

	// A different business misses the cache.
	_, err = cached.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	// Expiry falls through to the source again.
	mr.FastForward(2 * time.Minute)
	_, err = cached.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, inner.calls)
}

func TestCachedAccountsWithoutRedis(t *testing.T) {
	inner := &countingAccounts{}
	cached := NewCachedAccounts(inner, nil, 0)

	chart, err := cached.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, DefaultInventoryCode, chart.InventoryCode)
	require.Equal(t, 1, inner.calls)
}
