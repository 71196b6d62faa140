package quote

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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinflow/chainpay/internal/erc20"
	"github.com/coinflow/chainpay/registry"
	"github.com/coinflow/chainpay/types"
)

var (
	routerAddr = common.HexToAddress("0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43")
	wethAddr   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdcAddr   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	daiAddr    = common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")
)

type stubEVM struct {
	fetches atomic.Int64
	callFn  func(msg ethereum.CallMsg) ([]byte, error)
}

func (s *stubEVM) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (s *stubEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEVM) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.fetches.Add(1)
	if s.callFn == nil {
		return nil, errors.New("unexpected call")
	}
	return s.callFn(msg)
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

// amountsOutResponse ABI-encodes a uint256[] return value.
func amountsOutResponse(amounts ...*big.Int) []byte {
	out := common.LeftPadBytes(big.NewInt(32).Bytes(), 32)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(amounts))).Bytes(), 32)...)
	for _, a := range amounts {
		out = append(out, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return out
}

func newEngine(client *stubEVM, debounce time.Duration) *Engine {
	cfg := types.ChainConfig{
		ChainID:              8453,
		Name:                 "Base",
		NativeSymbol:         "ETH",
		NativeDecimals:       18,
		RouterAddress:        routerAddr.Hex(),
		WrappedNativeAddress: wethAddr.Hex(),
		Tokens: []types.TokenConfig{
			{Symbol: "USDC", Address: usdcAddr.Hex(), Decimals: 6},
			{Symbol: "DAI", Address: daiAddr.Hex(), Decimals: 18},
		},
	}
	reg := registry.New(cfg, client, nil)
	return New(client, reg, "base", debounce, nil, nil)
}

func TestQuoteReturnsPricedResult(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			// Final hop pays out 0.995 USDC.
			return amountsOutResponse(big.NewInt(1_000_000_000_000_000_000), big.NewInt(995_000)), nil
		},
	}
	e := newEngine(client, time.Millisecond)

	req := types.SwapRequest{
		ChainID:   8453,
		From:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InSymbol:  "DAI",
		OutSymbol: "USDC",
		Amount:    "1",
	}
	q, err := e.Quote(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "0.995", q.AmountOut.String())
	assert.Equal(t, "0.990025", q.MinOut.String()) // 0.995 less 0.5%
	assert.Equal(t, types.PoolVolatile, q.Pool)
	assert.False(t, q.FetchedAt.IsZero())
	assert.Equal(t, req.RequestIdentity(), q.Identity())
}

func TestRapidRequestsCollapseToFinalFetch(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return amountsOutResponse(big.NewInt(1), big.NewInt(5_000_000)), nil
		},
	}
	e := newEngine(client, 60*time.Millisecond)

	base := types.SwapRequest{
		ChainID:   8453,
		From:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InSymbol:  "DAI",
		OutSymbol: "USDC",
	}

	// Four edits in quick succession, then the value the caller settles
	// on. Each edit supersedes the previous waiter for the same pair.
	amounts := []string{"1", "12", "123", "1234"}
	var wg sync.WaitGroup
	errs := make([]error, len(amounts))
	for i, amt := range amounts {
		req := base
		req.Amount = amt
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Quote(context.Background(), req)
		}(i)
		time.Sleep(10 * time.Millisecond)
	}

	final := base
	final.Amount = "12345"
	q, err := e.Quote(context.Background(), final)
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "12345", q.AmountIn.String())
	for _, err := range errs {
		require.Error(t, err)
		assert.Equal(t, types.ErrCodeQuoteSuperseded, types.ErrCode(err))
	}

	// Only the final value reached the router.
	assert.EqualValues(t, 1, client.fetches.Load())
}

func TestDistinctPairsDoNotInterfere(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return amountsOutResponse(big.NewInt(1), big.NewInt(5_000_000)), nil
		},
	}
	e := newEngine(client, 5*time.Millisecond)

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, firstErr = e.Quote(context.Background(), types.SwapRequest{
			ChainID: 8453, From: "0xA", InSymbol: "DAI", OutSymbol: "USDC", Amount: "1",
		})
	}()
	go func() {
		defer wg.Done()
		_, secondErr = e.Quote(context.Background(), types.SwapRequest{
			ChainID: 8453, From: "0xA", InSymbol: "ETH", OutSymbol: "USDC", Amount: "1",
		})
	}()
	wg.Wait()

	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.EqualValues(t, 2, client.fetches.Load())
}

func TestNativeLegRoutesThroughWrappedToken(t *testing.T) {
	var captured []byte
	client := &stubEVM{
		callFn: func(msg ethereum.CallMsg) ([]byte, error) {
			captured = msg.Data
			return amountsOutResponse(big.NewInt(1), big.NewInt(3_000_000_000)), nil
		},
	}
	e := newEngine(client, time.Millisecond)

	_, err := e.Quote(context.Background(), types.SwapRequest{
		ChainID:   8453,
		From:      "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InSymbol:  "ETH",
		OutSymbol: "USDC",
		Amount:    "1",
	})
	require.NoError(t, err)

	expected, err := erc20.PackGetAmountsOut(
		big.NewInt(1_000_000_000_000_000_000),
		[]erc20.Route{{From: wethAddr, To: usdcAddr}},
	)
	require.NoError(t, err)
	assert.Equal(t, expected, captured)
}

func TestQuoteInvalidAmount(t *testing.T) {
	client := &stubEVM{}
	e := newEngine(client, time.Millisecond)

	for _, amount := range []string{"", "abc", "-5", "0"} {
		_, err := e.Quote(context.Background(), types.SwapRequest{
			ChainID: 8453, From: "0xA", InSymbol: "DAI", OutSymbol: "USDC", Amount: amount,
		})
		require.Error(t, err, "amount %q", amount)
		assert.Equal(t, types.ErrCodeQuoteInvalidAmount, types.ErrCode(err))
	}
	assert.EqualValues(t, 0, client.fetches.Load())
}

func TestQuoteIdenticalSymbols(t *testing.T) {
	e := newEngine(&stubEVM{}, time.Millisecond)

	_, err := e.Quote(context.Background(), types.SwapRequest{
		ChainID: 8453, From: "0xA", InSymbol: "USDC", OutSymbol: "USDC", Amount: "1",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidation, types.ErrCode(err))
}

func TestQuoteNoLiquidity(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return nil, errors.New("execution reverted")
		},
	}
	e := newEngine(client, time.Millisecond)

	_, err := e.Quote(context.Background(), types.SwapRequest{
		ChainID: 8453, From: "0xA", InSymbol: "DAI", OutSymbol: "USDC", Amount: "1",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeQuoteNoLiquidity, types.ErrCode(err))
}

func TestQuoteZeroOutput(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return amountsOutResponse(big.NewInt(1), big.NewInt(0)), nil
		},
	}
	e := newEngine(client, time.Millisecond)

	_, err := e.Quote(context.Background(), types.SwapRequest{
		ChainID: 8453, From: "0xA", InSymbol: "DAI", OutSymbol: "USDC", Amount: "1",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeQuoteNoLiquidity, types.ErrCode(err))
}

func TestMinOutTruncates(t *testing.T) {
	assert.Equal(t, "99.5", MinOut(decimal.NewFromInt(100), 50, 6).String())

	// Truncation, never rounding up: 99.5 at zero precision floors to 99.
	assert.Equal(t, "99", MinOut(decimal.NewFromInt(100), 50, 0).String())

	assert.Equal(t, "0.990025", MinOut(decimal.RequireFromString("0.995"), 50, 6).String())
	assert.True(t, MinOut(decimal.Zero, 50, 6).IsZero())
}

func TestQuoteFreshness(t *testing.T) {
	now := time.Now()
	q := &types.QuoteResult{FetchedAt: now}

	assert.True(t, q.Fresh(now.Add(29*time.Second), 30*time.Second))
	assert.False(t, q.Fresh(now.Add(31*time.Second), 30*time.Second))
}
