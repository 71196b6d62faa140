// Package metrics defines the instrumentation facade for chainpay.
package metrics

import "time"

// Recorder counts domain events and observes operation latencies.
// Event and operation names used by the core:
//
//	submissions, rejections, confirmations, failures, timeouts,
//	quote_fetches, balance_cache_hit, balance_cache_miss
//	(counters, labeled by network)
//
//	submit, confirm, quote, balance_fetch, gas_estimate
//	(latencies, labeled by network)
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
