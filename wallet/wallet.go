// Package wallet declares the signing capability the core consumes.
// Private keys never enter chainpay; callers inject an implementation
// backed by whatever key management they use.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is a transaction intent handed to the wallet for signing
// and broadcast. GasLimit zero and GasPrice nil delegate gas selection
// to the wallet or its provider; the submitter uses that as the
// fallback when upfront estimation fails.
type TxRequest struct {
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
}

// Wallet signs and broadcasts transactions on behalf of one address.
type Wallet interface {
	// Address returns the account the wallet signs for.
	Address() common.Address

	// SendTransaction signs req and broadcasts it, returning the
	// transaction hash once the provider accepts it.
	SendTransaction(ctx context.Context, req *TxRequest) (common.Hash, error)
}
