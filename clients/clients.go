// Package clients abstracts the EVM RPC surface the core depends on.
// Production code dials a go-ethereum client; tests inject stubs.
package clients

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVM is the subset of an Ethereum JSON-RPC client chainpay calls.
// *ethclient.Client satisfies it directly.
type EVM interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	Close()
}

var _ EVM = (*ethclient.Client)(nil)

// Dial connects to the first endpoint that answers a ChainID probe and
// verifies it serves the expected chain.
func Dial(ctx context.Context, chainID uint64, rpcURLs []string) (EVM, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for chain %d", chainID)
	}

	var lastErr error
	for _, url := range rpcURLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		got, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}
		if got.Uint64() != chainID {
			client.Close()
			lastErr = fmt.Errorf("endpoint %s serves chain %d, want %d", url, got.Uint64(), chainID)
			continue
		}
		return client, nil
	}

	return nil, fmt.Errorf("failed to connect to chain %d: %w", chainID, lastErr)
}
