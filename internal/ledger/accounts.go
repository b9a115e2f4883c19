package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// AccountsRepository resolves the chart of accounts per business, creating
// the default codes the first time a business is read.
type AccountsRepository struct {
	pool *pgxpool.Pool
}

// NewAccountsRepository constructs AccountsRepository.
func NewAccountsRepository(pool *pgxpool.Pool) *AccountsRepository {
	return &AccountsRepository{pool: pool}
}

// GetOrCreate returns the business's account codes, inserting defaults on
// first read. The insert is conflict-free so concurrent first reads are safe.
func (r *AccountsRepository) GetOrCreate(ctx context.Context, businessID int64) (ChartOfAccounts, error) {
	if r == nil {
		return ChartOfAccounts{}, errors.New("ledger: accounts repository not initialised")
	}
	if businessID == 0 {
		return ChartOfAccounts{}, errors.New("ledger: business required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO chart_of_accounts (business_id, inventory_code, cash_code, cogs_code, created_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (business_id) DO NOTHING`, businessID, DefaultInventoryCode, DefaultCashCode, DefaultCOGSCode)
	if err != nil {
		return ChartOfAccounts{}, err
	}
	var chart ChartOfAccounts
	err = r.pool.QueryRow(ctx, `SELECT business_id, inventory_code, cash_code, cogs_code
FROM chart_of_accounts WHERE business_id=$1`, businessID).
		Scan(&chart.BusinessID, &chart.InventoryCode, &chart.CashCode, &chart.COGSCode)
	if err != nil {
		return ChartOfAccounts{}, err
	}
	return chart, nil
}

// CachedAccounts wraps an accounts source with a Redis cache. Account codes
// change rarely; a short TTL keeps manual edits visible without a bus.
type CachedAccounts struct {
	inner  AccountsPort
	client *redis.Client
	ttl    time.Duration
}

// NewCachedAccounts builds the caching wrapper.
func NewCachedAccounts(inner AccountsPort, client *redis.Client, ttl time.Duration) *CachedAccounts {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedAccounts{inner: inner, client: client, ttl: ttl}
}

func accountsKey(businessID int64) string {
	return fmt.Sprintf("ledger:coa:%d", businessID)
}

// GetOrCreate serves from cache when possible, falling through on any
// cache failure.
func (c *CachedAccounts) GetOrCreate(ctx context.Context, businessID int64) (ChartOfAccounts, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, accountsKey(businessID)).Bytes()
		if err == nil {
			var chart ChartOfAccounts
			if err := json.Unmarshal(raw, &chart); err == nil {
				return chart, nil
			}
		}
	}
	chart, err := c.inner.GetOrCreate(ctx, businessID)
	if err != nil {
		return ChartOfAccounts{}, err
	}
	if c.client != nil {
		if raw, err := json.Marshal(chart); err == nil {
			_ = c.client.Set(ctx, accountsKey(businessID), raw, c.ttl).Err()
		}
	}
	return chart, nil
}
