// Package erc20 packs and unpacks the handful of ERC-20 and swap-router
// calls the core issues. ABIs are declared inline the same way the
// contracts publish them; nothing here is generated.
package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const tokenABIJSON = `
[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [ { "name": "", "type": "bool" } ]
  },
  {
    "name": "approve",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "spender", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [ { "name": "", "type": "bool" } ]
  },
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [ { "name": "owner", "type": "address" } ],
    "outputs": [ { "name": "", "type": "uint256" } ]
  },
  {
    "name": "allowance",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "owner", "type": "address" },
      { "name": "spender", "type": "address" }
    ],
    "outputs": [ { "name": "", "type": "uint256" } ]
  },
  {
    "name": "decimals",
    "type": "function",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [ { "name": "", "type": "uint8" } ]
  }
]
`

var tokenABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(tokenABIJSON))
	if err != nil {
		panic(fmt.Sprintf("erc20: bad token ABI: %v", err))
	}
	tokenABI = parsed
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transfer", to, amount)
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("approve", spender, amount)
}

// PackBalanceOf encodes balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return tokenABI.Pack("balanceOf", owner)
}

// PackAllowance encodes allowance(owner, spender).
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return tokenABI.Pack("allowance", owner, spender)
}

// PackDecimals encodes decimals().
func PackDecimals() ([]byte, error) {
	return tokenABI.Pack("decimals")
}

// UnpackUint256 decodes the single uint256 return of balanceOf or
// allowance.
func UnpackUint256(method string, data []byte) (*big.Int, error) {
	out, err := tokenABI.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected %s output arity %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return v, nil
}

// UnpackDecimals decodes the uint8 return of decimals().
func UnpackDecimals(data []byte) (uint8, error) {
	out, err := tokenABI.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected decimals output arity %d", len(out))
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals output type %T", out[0])
	}
	return v, nil
}
