package submit

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/coinflow/chainpay/types"
)

// Intent is the sealed union of transactions the submitter can build:
// NativeTransfer, TokenTransfer, Approve or Swap. Dispatch happens in
// one place, by type switch, rather than per call site.
type Intent interface {
	kind() types.TxKind
	validate() error
}

// NativeTransfer moves the chain's intrinsic coin.
type NativeTransfer struct {
	From   common.Address
	To     common.Address
	Asset  types.Asset
	Amount *big.Int

	// Display is the human-decimal amount carried on the record.
	Display string
	Memo    string
	LinkID  string
}

func (NativeTransfer) kind() types.TxKind { return types.TxTransfer }

func (i NativeTransfer) validate() error {
	return validateTransfer(i.From, i.To, i.Amount)
}

// TokenTransfer moves an ERC-20 token straight to the recipient.
type TokenTransfer struct {
	From   common.Address
	To     common.Address
	Asset  types.Asset
	Amount *big.Int

	Display string
	Memo    string
	LinkID  string
}

func (TokenTransfer) kind() types.TxKind { return types.TxTransfer }

func (i TokenTransfer) validate() error {
	if err := validateTransfer(i.From, i.To, i.Amount); err != nil {
		return err
	}
	if i.Asset.IsNative() || i.Asset.Contract == (common.Address{}) {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "token transfer requires a contract asset",
		}
	}
	return nil
}

// Approve raises a spender's allowance on a token contract. It is
// issued automatically ahead of a swap whose allowance is short.
type Approve struct {
	Owner   common.Address
	Spender common.Address
	Asset   types.Asset
	Amount  *big.Int

	Display string
}

func (Approve) kind() types.TxKind { return types.TxApprove }

func (i Approve) validate() error {
	if i.Spender == (common.Address{}) {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "approve requires a spender",
		}
	}
	return validateTransfer(i.Owner, i.Spender, i.Amount)
}

// Swap exchanges In for Out through the chain's router. MinOut is the
// slippage-bounded floor computed from a fresh quote.
type Swap struct {
	From     common.Address
	In       types.Asset
	Out      types.Asset
	AmountIn *big.Int
	MinOut   *big.Int
	Stable   bool
	Deadline time.Time

	// DisplayIn is the human-decimal input amount for the record.
	DisplayIn string
}

func (Swap) kind() types.TxKind { return types.TxSwap }

func (i Swap) validate() error {
	if err := validateTransfer(i.From, i.From, i.AmountIn); err != nil {
		return err
	}
	if i.In.Key() == i.Out.Key() {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "cannot swap an asset for itself",
		}
	}
	if i.MinOut == nil || i.MinOut.Sign() < 0 {
		return &types.Error{
			Code:    types.ErrCodeValidation,
			Message: "swap requires a non-negative minimum output",
		}
	}
	return nil
}

func validateTransfer(from, to common.Address, amount *big.Int) error {
	if from == (common.Address{}) {
		return &types.Error{Code: types.ErrCodeValidation, Message: "sender address is required"}
	}
	if to == (common.Address{}) {
		return &types.Error{Code: types.ErrCodeValidation, Message: "recipient address is required"}
	}
	if amount == nil || amount.Sign() < 0 {
		return &types.Error{Code: types.ErrCodeValidation, Message: "amount must be a non-negative value"}
	}
	return nil
}

// symbolOf names the asset a record is denominated in.
func symbolOf(intent Intent) string {
	switch i := intent.(type) {
	case NativeTransfer:
		return i.Asset.Symbol
	case TokenTransfer:
		return i.Asset.Symbol
	case Approve:
		return i.Asset.Symbol
	case Swap:
		return fmt.Sprintf("%s→%s", i.In.Symbol, i.Out.Symbol)
	default:
		return ""
	}
}
