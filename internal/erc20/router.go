package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Route is one hop through a Solidly-style router. Stable selects the
// stable-pair curve instead of the constant-product one.
type Route struct {
	From   common.Address `abi:"from"`
	To     common.Address `abi:"to"`
	Stable bool           `abi:"stable"`
}

const routerABIJSON = `
[
  {
    "name": "getAmountsOut",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "amountIn", "type": "uint256" },
      { "name": "routes", "type": "tuple[]", "components": [
        { "name": "from", "type": "address" },
        { "name": "to", "type": "address" },
        { "name": "stable", "type": "bool" }
      ] }
    ],
    "outputs": [ { "name": "amounts", "type": "uint256[]" } ]
  },
  {
    "name": "swapExactTokensForTokens",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "amountIn", "type": "uint256" },
      { "name": "amountOutMin", "type": "uint256" },
      { "name": "routes", "type": "tuple[]", "components": [
        { "name": "from", "type": "address" },
        { "name": "to", "type": "address" },
        { "name": "stable", "type": "bool" }
      ] },
      { "name": "to", "type": "address" },
      { "name": "deadline", "type": "uint256" }
    ],
    "outputs": [ { "name": "amounts", "type": "uint256[]" } ]
  },
  {
    "name": "swapExactETHForTokens",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      { "name": "amountOutMin", "type": "uint256" },
      { "name": "routes", "type": "tuple[]", "components": [
        { "name": "from", "type": "address" },
        { "name": "to", "type": "address" },
        { "name": "stable", "type": "bool" }
      ] },
      { "name": "to", "type": "address" },
      { "name": "deadline", "type": "uint256" }
    ],
    "outputs": [ { "name": "amounts", "type": "uint256[]" } ]
  },
  {
    "name": "swapExactTokensForETH",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "amountIn", "type": "uint256" },
      { "name": "amountOutMin", "type": "uint256" },
      { "name": "routes", "type": "tuple[]", "components": [
        { "name": "from", "type": "address" },
        { "name": "to", "type": "address" },
        { "name": "stable", "type": "bool" }
      ] },
      { "name": "to", "type": "address" },
      { "name": "deadline", "type": "uint256" }
    ],
    "outputs": [ { "name": "amounts", "type": "uint256[]" } ]
  }
]
`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic(fmt.Sprintf("erc20: bad router ABI: %v", err))
	}
	routerABI = parsed
}

// PackGetAmountsOut encodes getAmountsOut(amountIn, routes).
func PackGetAmountsOut(amountIn *big.Int, routes []Route) ([]byte, error) {
	return routerABI.Pack("getAmountsOut", amountIn, routes)
}

// UnpackAmountsOut decodes the uint256[] return of getAmountsOut and
// yields the final hop's output amount.
func UnpackAmountsOut(data []byte) (*big.Int, error) {
	out, err := routerABI.Unpack("getAmountsOut", data)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected getAmountsOut output arity %d", len(out))
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getAmountsOut output type %T", out[0])
	}
	if len(amounts) == 0 {
		return nil, fmt.Errorf("empty amounts from router")
	}
	return amounts[len(amounts)-1], nil
}

// PackSwapExactTokensForTokens encodes the token-to-token swap call.
func PackSwapExactTokensForTokens(amountIn, minOut *big.Int, routes []Route, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForTokens", amountIn, minOut, routes, to, deadline)
}

// PackSwapExactETHForTokens encodes the native-to-token swap call; the
// input amount travels as the transaction value.
func PackSwapExactETHForTokens(minOut *big.Int, routes []Route, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactETHForTokens", minOut, routes, to, deadline)
}

// PackSwapExactTokensForETH encodes the token-to-native swap call.
func PackSwapExactTokensForETH(amountIn, minOut *big.Int, routes []Route, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForETH", amountIn, minOut, routes, to, deadline)
}
