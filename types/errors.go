package types

import "errors"

// Error is the typed failure returned across the chainpay API. Code is
// one of the constants below; Message is a human-readable cause. The
// provider's raw error, when it is the best available explanation, is
// kept in Err and reachable through Unwrap.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes.
const (
	// Bad address or amount; detected before any network call.
	ErrCodeValidation = "validation_error"

	// The symbol has no mapping on the requested chain.
	ErrCodeUnsupportedAsset = "unsupported_asset_on_chain"

	// The requested chain has no configured client.
	ErrCodeUnsupportedNetwork = "unsupported_network"

	// Allowance below the required spend. Recovered automatically via
	// an approve transaction; surfaced only if approval itself fails.
	ErrCodeInsufficientAllowance = "insufficient_allowance"

	// Gas estimation failed. Recovered by re-submitting without
	// explicit gas parameters.
	ErrCodeGasEstimation = "gas_estimation_failed"

	// The wallet or provider declined the submission. Fatal for the
	// attempt.
	ErrCodeSubmissionRejected = "submission_rejected"

	// No receipt arrived within the timeout schedule. Indeterminate,
	// not failed.
	ErrCodeConfirmationTimeout = "confirmation_timeout"

	// The receipt reports an on-chain revert. Terminal failure.
	ErrCodeOnChainRevert = "on_chain_revert"

	// Quote errors, surfaced to the caller without retry.
	ErrCodeQuoteNoLiquidity   = "quote_no_liquidity"
	ErrCodeQuoteInvalidAmount = "quote_invalid_amount"
	ErrCodeQuoteStale         = "quote_stale"

	// A newer quote request for the same identity replaced this one.
	ErrCodeQuoteSuperseded = "quote_superseded"
)

// ErrCode extracts the chainpay error code from err, or "" when err is
// not a *types.Error.
func ErrCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
