// Package gas computes transaction gas parameters with a documented
// fallback: when estimation fails, the submitter retries without
// explicit parameters and lets the wallet's provider decide.
package gas

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"

	"github.com/coinflow/chainpay/clients"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
	"github.com/coinflow/chainpay/types"
)

// limitMarginNum/Den apply a 20% safety margin to the estimated limit.
const (
	limitMarginNum = 120
	limitMarginDen = 100
)

// Params are the explicit gas parameters for one submission.
type Params struct {
	Price *big.Int
	Limit uint64
}

// Estimator queries current price and per-call limit from the RPC.
type Estimator struct {
	client  clients.EVM
	network string
	log     logger.Logger
	metrics metrics.Recorder
}

func New(client clients.EVM, network string, log logger.Logger, rec metrics.Recorder) *Estimator {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Estimator{client: client, network: network, log: log, metrics: rec}
}

// Estimate returns gas parameters for msg with the 20% limit margin
// applied. Any RPC failure (including calls that would revert under
// simulation) surfaces as a gas-estimation error; callers recover by
// submitting without explicit parameters.
func (e *Estimator) Estimate(ctx context.Context, msg ethereum.CallMsg) (Params, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveLatency("gas_estimate", time.Since(start), map[string]string{"network": e.network})
	}()

	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return Params{}, &types.Error{
			Code:    types.ErrCodeGasEstimation,
			Message: "gas price query failed",
			Err:     err,
		}
	}

	limit, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return Params{}, &types.Error{
			Code:    types.ErrCodeGasEstimation,
			Message: "gas limit estimation failed",
			Err:     err,
		}
	}

	return Params{
		Price: price,
		Limit: limit * limitMarginNum / limitMarginDen,
	}, nil
}
