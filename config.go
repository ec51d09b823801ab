package x402

import "time"

// TimeoutConfig bounds the three network operations a facilitator client
// performs: verifying a payload, settling it on-chain, and the outer
// request-level deadline that wraps retries of either.
type TimeoutConfig struct {
	VerifyTimeout  time.Duration
	SettleTimeout  time.Duration
	RequestTimeout time.Duration
}

// DefaultTimeouts matches the facilitator's own documented SLAs: a fast
// verify, a settle bound generous enough to cover Solana confirmation
// under congestion, and a request timeout loose enough to cover one retry
// of either.
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  5 * time.Second,
	SettleTimeout:  60 * time.Second,
	RequestTimeout: 120 * time.Second,
}

// Validate rejects a non-positive verify or settle timeout and a settle
// timeout shorter than the verify timeout, since settlement always does at
// least as much work as verification. RequestTimeout is not checked.
func (c TimeoutConfig) Validate() error {
	if c.VerifyTimeout <= 0 {
		return NewPaymentError(ErrCodeInvalidRequirements, "verify timeout must be positive", nil)
	}
	if c.SettleTimeout <= 0 {
		return NewPaymentError(ErrCodeInvalidRequirements, "settle timeout must be positive", nil)
	}
	if c.SettleTimeout < c.VerifyTimeout {
		return NewPaymentError(ErrCodeInvalidRequirements, "settle timeout must be at least the verify timeout", nil)
	}
	return nil
}

// WithVerifyTimeout returns a copy of c with VerifyTimeout replaced.
func (c TimeoutConfig) WithVerifyTimeout(d time.Duration) TimeoutConfig {
	c.VerifyTimeout = d
	return c
}

// WithSettleTimeout returns a copy of c with SettleTimeout replaced.
func (c TimeoutConfig) WithSettleTimeout(d time.Duration) TimeoutConfig {
	c.SettleTimeout = d
	return c
}

// WithRequestTimeout returns a copy of c with RequestTimeout replaced.
func (c TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	c.RequestTimeout = d
	return c
}
