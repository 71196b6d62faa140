package chainpay

import (
	"time"

	"github.com/coinflow/chainpay/confirm"
	"github.com/coinflow/chainpay/logger"
	"github.com/coinflow/chainpay/metrics"
)

type Option func(*ChainPay)

// WithLogger injects a structured logger; the default is silent.
func WithLogger(l logger.Logger) Option {
	return func(p *ChainPay) {
		p.log = l
	}
}

// WithMetrics injects an instrumentation recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *ChainPay) {
		p.metrics = r
	}
}

// WithSubmitTimeout bounds the submission phase (validation, gas,
// broadcast). Confirmation waits are governed by the confirm policy,
// not by this timeout.
func WithSubmitTimeout(t time.Duration) Option {
	return func(p *ChainPay) {
		p.submitTimeout = t
	}
}

// WithConfirmPolicy overrides receipt-polling windows and the retry
// delay for all networks added afterwards.
func WithConfirmPolicy(policy confirm.Policy) Option {
	return func(p *ChainPay) {
		p.confirmPolicy = policy
	}
}

// WithQuoteDebounce overrides the quote debounce window.
func WithQuoteDebounce(d time.Duration) Option {
	return func(p *ChainPay) {
		p.quoteDebounce = d
	}
}

// WithBalanceTTL overrides the balance cache time-to-live.
func WithBalanceTTL(d time.Duration) Option {
	return func(p *ChainPay) {
		p.balanceTTL = d
	}
}
