package balances

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinflow/chainpay/types"
)

type stubEVM struct {
	fetches    atomic.Int64
	delay      time.Duration
	balance    *big.Int
	balanceErr error
}

func (s *stubEVM) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (s *stubEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.balanceErr != nil {
		return nil, s.balanceErr
	}
	return new(big.Int).Set(s.balance), nil
}

func (s *stubEVM) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.balanceErr != nil {
		return nil, s.balanceErr
	}
	return common.LeftPadBytes(s.balance.Bytes(), 32), nil
}

func (s *stubEVM) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEVM) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (s *stubEVM) TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error) {
	return nil, ethereum.NotFound
}

func (s *stubEVM) Close() {}

var (
	owner       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	nativeAsset = types.Asset{ChainID: 1, Symbol: "ETH", Kind: types.AssetNative, Decimals: 18}
	tokenAsset  = types.Asset{
		ChainID:  1,
		Symbol:   "USDC",
		Kind:     types.AssetToken,
		Contract: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		Decimals: 6,
	}
)

func TestBalanceCachedWithinTTL(t *testing.T) {
	client := &stubEVM{balance: big.NewInt(2_500_000)}
	c := New(client, "test", 30*time.Second, nil, nil)

	got := c.Balance(context.Background(), owner, tokenAsset)
	assert.Equal(t, "2.5", got.String())

	got = c.Balance(context.Background(), owner, tokenAsset)
	assert.Equal(t, "2.5", got.String())
	assert.EqualValues(t, 1, client.fetches.Load())
}

func TestBalanceRefetchedAfterTTL(t *testing.T) {
	client := &stubEVM{balance: big.NewInt(1_000_000)}
	c := New(client, "test", 30*time.Second, nil, nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Balance(context.Background(), owner, tokenAsset)
	require.EqualValues(t, 1, client.fetches.Load())

	// Advance past the TTL: the entry is treated as absent.
	now = now.Add(31 * time.Second)
	_ = c.Balance(context.Background(), owner, tokenAsset)
	assert.EqualValues(t, 2, client.fetches.Load())
}

func TestConcurrentReadsCoalesce(t *testing.T) {
	client := &stubEVM{balance: big.NewInt(7_000_000), delay: 20 * time.Millisecond}
	c := New(client, "test", 30*time.Second, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := c.Balance(context.Background(), owner, tokenAsset)
			assert.Equal(t, "7", got.String())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, client.fetches.Load())
}

func TestNativeAndTokenKeyedSeparately(t *testing.T) {
	client := &stubEVM{balance: big.NewInt(5)}
	c := New(client, "test", 30*time.Second, nil, nil)

	_ = c.Balance(context.Background(), owner, nativeAsset)
	_ = c.Balance(context.Background(), owner, tokenAsset)
	assert.EqualValues(t, 2, client.fetches.Load())
}

func TestFailedFetchReturnsZero(t *testing.T) {
	client := &stubEVM{balanceErr: errors.New("rpc down")}
	c := New(client, "test", 30*time.Second, nil, nil)

	got := c.Balance(context.Background(), owner, tokenAsset)
	assert.True(t, got.IsZero())

	// Failures are not cached; the next read retries.
	_ = c.Balance(context.Background(), owner, tokenAsset)
	assert.EqualValues(t, 2, client.fetches.Load())
}

func TestInvalidateForcesRefetch(t *testing.T) {
	client := &stubEVM{balance: big.NewInt(1_000_000)}
	c := New(client, "test", 30*time.Second, nil, nil)

	_ = c.Balance(context.Background(), owner, tokenAsset)
	c.Invalidate(owner, tokenAsset.ChainID, tokenAsset.Key())
	_ = c.Balance(context.Background(), owner, tokenAsset)
	assert.EqualValues(t, 2, client.fetches.Load())
}
