package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinflow/chainpay/types"
)

type stubEVM struct {
	price       *big.Int
	priceErr    error
	limit       uint64
	estimateErr error
}

func (s *stubEVM) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (s *stubEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEVM) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEVM) SuggestGasPrice(context.Context) (*big.Int, error) {
	return s.price, s.priceErr
}

func (s *stubEVM) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return s.limit, s.estimateErr
}

func (s *stubEVM) TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error) {
	return nil, ethereum.NotFound
}

func (s *stubEVM) Close() {}

func TestEstimateAppliesSafetyMargin(t *testing.T) {
	e := New(&stubEVM{price: big.NewInt(1_000_000_000), limit: 21000}, "test", nil, nil)

	params, err := e.Estimate(context.Background(), ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, uint64(25200), params.Limit) // 21000 * 120 / 100
	assert.Equal(t, big.NewInt(1_000_000_000), params.Price)
}

func TestEstimatePriceFailure(t *testing.T) {
	e := New(&stubEVM{priceErr: errors.New("rpc down")}, "test", nil, nil)

	_, err := e.Estimate(context.Background(), ethereum.CallMsg{})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeGasEstimation, types.ErrCode(err))
}

func TestEstimateLimitFailure(t *testing.T) {
	// A call that would revert under simulation surfaces the same way.
	e := New(&stubEVM{price: big.NewInt(1), estimateErr: errors.New("execution reverted")}, "test", nil, nil)

	_, err := e.Estimate(context.Background(), ethereum.CallMsg{})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeGasEstimation, types.ErrCode(err))
}
