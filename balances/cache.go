// Package balances caches (address, chain, asset) balances behind a
// TTL so the transfer and swap flows bound their RPC call volume.
package balances

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/internal/erc20"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/types"
	"github.com/coinflow/chainpay/utils"
)

// DefaultTTL is the maximum age at which a cached balance is served.
const DefaultTTL = 30 * time.Second

// key is the structured composite cache key.
type key struct {
	Owner   common.Address
	ChainID uint64
	Asset   string
}

func (k key) flightKey() string {
	return k.Owner.Hex() + "|" + strconv.FormatUint(k.ChainID, 10) + "|" + k.Asset
}

type entry struct {
	amount  decimal.Decimal
	fetched time.Time
}

// Cache is a TTL-bounded balance cache. Concurrent reads of the same
// key coalesce into a single fetch; a failed fetch yields a zero amount
// so dependent flows degrade instead of blocking.
type Cache struct {
	client  clients.EVM
	network string
	ttl     time.Duration
	log     logger.Logger
	metrics metrics.Recorder

	mu      sync.RWMutex
	entries map[key]entry
	flight  singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

func New(client clients.EVM, network string, ttl time.Duration, log logger.Logger, rec metrics.Recorder) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Cache{
		client:  client,
		network: network,
		ttl:     ttl,
		log:     log,
		metrics: rec,
		entries: make(map[key]entry),
		now:     time.Now,
	}
}

// Balance returns the owner's balance of asset in human-decimal units.
// An entry older than the TTL is treated as absent and refetched.
func (c *Cache) Balance(ctx context.Context, owner common.Address, asset types.Asset) decimal.Decimal {
	k := key{Owner: owner, ChainID: asset.ChainID, Asset: asset.Key()}

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetched) <= c.ttl {
		c.metrics.IncCounter("balance_cache_hit", map[string]string{"network": c.network})
		return e.amount
	}

	c.metrics.IncCounter("balance_cache_miss", map[string]string{"network": c.network})

	v, err, _ := c.flight.Do(k.flightKey(), func() (any, error) {
		start := c.now()
		raw, err := c.fetch(ctx, owner, asset.Contract, asset.IsNative())
		c.metrics.ObserveLatency("balance_fetch", c.now().Sub(start), map[string]string{"network": c.network})
		if err != nil {
			return nil, err
		}
		amount := utils.FromUnits(raw, asset.Decimals)
		c.mu.Lock()
		c.entries[k] = entry{amount: amount, fetched: c.now()}
		c.mu.Unlock()
		return amount, nil
	})
	if err != nil {
		c.log.Warn("balance fetch failed, serving zero", map[string]any{
			"network": c.network,
			"owner":   owner.Hex(),
			"asset":   asset.Key(),
			"error":   err.Error(),
		})
		return decimal.Decimal{}
	}
	return v.(decimal.Decimal)
}

func (c *Cache) fetch(ctx context.Context, owner, contract common.Address, native bool) (*big.Int, error) {
	if native {
		return c.client.BalanceAt(ctx, owner, nil)
	}

	data, err := erc20.PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return erc20.UnpackUint256("balanceOf", out)
}

// Invalidate drops the cached entry for (owner, asset) so the next read
// refetches. Called after a confirmed transaction changes the balance.
func (c *Cache) Invalidate(owner common.Address, chainID uint64, assetKey string) {
	c.mu.Lock()
	delete(c.entries, key{Owner: owner, ChainID: chainID, Asset: assetKey})
	c.mu.Unlock()
}
