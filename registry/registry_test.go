package registry

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinflow/chainpay/types"
)

type stubEVM struct {
	callFn    func(msg ethereum.CallMsg) ([]byte, error)
	callCount atomic.Int64
}

func (s *stubEVM) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (s *stubEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEVM) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.callCount.Add(1)
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

func baseConfig() types.ChainConfig {
	return types.ChainConfig{
		ChainID:        8453,
		Name:           "Base",
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		Tokens: []types.TokenConfig{
			{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
			{Symbol: "MYST", Address: "0x1111111111111111111111111111111111111111"},
		},
	}
}

func TestResolveNative(t *testing.T) {
	r := New(baseConfig(), &stubEVM{}, nil)

	asset, err := r.Resolve(context.Background(), "eth")
	require.NoError(t, err)
	assert.True(t, asset.IsNative())
	assert.Equal(t, uint8(18), asset.Decimals)
	assert.Equal(t, uint64(8453), asset.ChainID)
}

func TestResolveToken(t *testing.T) {
	client := &stubEVM{}
	r := New(baseConfig(), client, nil)

	asset, err := r.Resolve(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, types.AssetToken, asset.Kind)
	assert.Equal(t, uint8(6), asset.Decimals)
	// Static decimals: no contract call issued.
	assert.EqualValues(t, 0, client.callCount.Load())
}

func TestResolveUnknownSymbol(t *testing.T) {
	client := &stubEVM{}
	r := New(baseConfig(), client, nil)

	_, err := r.Resolve(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUnsupportedAsset, types.ErrCode(err))
	assert.EqualValues(t, 0, client.callCount.Load())
}

func TestDynamicDecimalsResolvedOnceAndCached(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return common.LeftPadBytes(big.NewInt(9).Bytes(), 32), nil
		},
	}
	r := New(baseConfig(), client, nil)

	asset, err := r.Resolve(context.Background(), "MYST")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), asset.Decimals)

	_, err = r.Resolve(context.Background(), "MYST")
	require.NoError(t, err)
	assert.EqualValues(t, 1, client.callCount.Load())
}

func TestDynamicDecimalsFallsBackTo18(t *testing.T) {
	client := &stubEVM{
		callFn: func(ethereum.CallMsg) ([]byte, error) {
			return nil, errors.New("execution reverted")
		},
	}
	r := New(baseConfig(), client, nil)

	asset, err := r.Resolve(context.Background(), "MYST")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), asset.Decimals)

	// The fallback is cached too; a flaky RPC must not flip precision.
	_, err = r.Resolve(context.Background(), "MYST")
	require.NoError(t, err)
	assert.EqualValues(t, 1, client.callCount.Load())
}

func TestAddToken(t *testing.T) {
	r := New(baseConfig(), &stubEVM{}, nil)
	r.AddToken(types.TokenConfig{Symbol: "DAI", Address: "0x2222222222222222222222222222222222222222", Decimals: 18})

	asset, err := r.Resolve(context.Background(), "dai")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), asset.Decimals)
}
