package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/x402-go"
	"github.com/mark3labs/x402-go/facilitator"
	"github.com/mark3labs/x402-go/retry"
)

// AuthorizationProvider returns an Authorization header value for a
// facilitator request. Implementations may refresh a token on each call;
// the returned error aborts the request.
type AuthorizationProvider func(ctx context.Context) (string, error)

// OnBeforeFunc runs immediately before a verify or settle call is sent.
type OnBeforeFunc func(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement)

// OnAfterVerifyFunc runs after a verify call completes, successfully or not.
type OnAfterVerifyFunc func(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement, resp *facilitator.VerifyResponse, err error)

// OnAfterSettleFunc runs after a settle call completes, successfully or not.
type OnAfterSettleFunc func(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement, resp *x402.SettlementResponse, err error)

// VerifyResponse is an alias for facilitator.VerifyResponse, kept so callers
// that only import the http package can still name the verification result
// type returned by FacilitatorClient.Verify.
type VerifyResponse = facilitator.VerifyResponse

// FacilitatorClient is an HTTP client for the facilitator's /verify, /settle,
// and /supported endpoints. It satisfies facilitator.Interface.
type FacilitatorClient struct {
	BaseURL string
	Client  *http.Client

	// Timeouts bounds verify/settle/request durations. Zero value falls
	// back to x402.DefaultTimeouts.
	Timeouts x402.TimeoutConfig

	// VerifyTimeout and SettleTimeout, when non-zero, override the
	// corresponding field in Timeouts for this client only.
	VerifyTimeout time.Duration
	SettleTimeout time.Duration

	// MaxRetries bounds retry.WithRetry attempts for verify/settle calls;
	// any failed attempt, including a non-200 status, is retried. Zero
	// disables retries (a single attempt is made).
	MaxRetries int

	Authorization         string
	AuthorizationProvider AuthorizationProvider

	OnBeforeVerify OnBeforeFunc
	OnAfterVerify  OnAfterVerifyFunc
	OnBeforeSettle OnBeforeFunc
	OnAfterSettle  OnAfterSettleFunc
}

// facilitatorRequest is the request payload sent to /verify and /settle.
type facilitatorRequest struct {
	X402Version         int                     `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirement `json:"paymentRequirements"`
}

func (c *FacilitatorClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *FacilitatorClient) verifyTimeout() time.Duration {
	if c.VerifyTimeout > 0 {
		return c.VerifyTimeout
	}
	if c.Timeouts.VerifyTimeout > 0 {
		return c.Timeouts.VerifyTimeout
	}
	return x402.DefaultTimeouts.VerifyTimeout
}

func (c *FacilitatorClient) settleTimeout() time.Duration {
	if c.SettleTimeout > 0 {
		return c.SettleTimeout
	}
	if c.Timeouts.SettleTimeout > 0 {
		return c.Timeouts.SettleTimeout
	}
	return x402.DefaultTimeouts.SettleTimeout
}

func (c *FacilitatorClient) authorize(ctx context.Context, req *http.Request) error {
	if c.AuthorizationProvider != nil {
		value, err := c.AuthorizationProvider(ctx)
		if err != nil {
			return fmt.Errorf("authorization provider: %w", err)
		}
		req.Header.Set("Authorization", value)
		return nil
	}
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
	return nil
}

func isRetryableStatus(err error) bool {
	return err != nil
}

func (c *FacilitatorClient) retryConfig() retry.Config {
	cfg := retry.DefaultConfig
	if c.MaxRetries > 0 {
		cfg.MaxAttempts = c.MaxRetries + 1
	} else {
		cfg.MaxAttempts = 1
	}
	return cfg
}

func (c *FacilitatorClient) post(ctx context.Context, path string, body []byte, out interface{}) error {
	_, err := retry.WithRetry(ctx, c.retryConfig(), isRetryableStatus, func() (struct{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if err := c.authorize(ctx, httpReq); err != nil {
			return struct{}{}, err
		}

		resp, err := c.httpClient().Do(httpReq)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("%w: status %d", x402.ErrFacilitatorUnavailable, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("decode response: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Verify implements facilitator.Interface.
func (c *FacilitatorClient) Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*facilitator.VerifyResponse, error) {
	if c.OnBeforeVerify != nil {
		c.OnBeforeVerify(ctx, payment, requirement)
	}

	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout())
	defer cancel()

	data, err := json.Marshal(facilitatorRequest{X402Version: 1, PaymentPayload: payment, PaymentRequirements: requirement})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	var resp facilitator.VerifyResponse
	err = c.post(ctx, "/verify", data, &resp)
	if c.OnAfterVerify != nil {
		if err != nil {
			c.OnAfterVerify(ctx, payment, requirement, nil, err)
		} else {
			c.OnAfterVerify(ctx, payment, requirement, &resp, nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrVerificationFailed, err)
	}
	return &resp, nil
}

// Settle implements facilitator.Interface.
func (c *FacilitatorClient) Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	if c.OnBeforeSettle != nil {
		c.OnBeforeSettle(ctx, payment, requirement)
	}

	ctx, cancel := context.WithTimeout(ctx, c.settleTimeout())
	defer cancel()

	data, err := json.Marshal(facilitatorRequest{X402Version: 1, PaymentPayload: payment, PaymentRequirements: requirement})
	if err != nil {
		return nil, fmt.Errorf("marshal settle request: %w", err)
	}

	var resp x402.SettlementResponse
	err = c.post(ctx, "/settle", data, &resp)
	if c.OnAfterSettle != nil {
		if err != nil {
			c.OnAfterSettle(ctx, payment, requirement, nil, err)
		} else {
			c.OnAfterSettle(ctx, payment, requirement, &resp, nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrSettlementFailed, err)
	}
	return &resp, nil
}

// Supported implements facilitator.Interface.
func (c *FacilitatorClient) Supported(ctx context.Context) (*facilitator.SupportedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: supported endpoint status %d", x402.ErrFacilitatorUnavailable, resp.StatusCode)
	}

	var supportedResp facilitator.SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&supportedResp); err != nil {
		return nil, fmt.Errorf("decode supported response: %w", err)
	}
	return &supportedResp, nil
}

// EnrichRequirements fetches supported payment types from the facilitator and
// merges network-specific extras (such as a Solana feePayer) into each
// requirement, without overwriting fields the caller already set.
func (c *FacilitatorClient) EnrichRequirements(ctx context.Context, requirements []x402.PaymentRequirement) ([]x402.PaymentRequirement, error) {
	supported, err := c.Supported(ctx)
	if err != nil {
		return requirements, fmt.Errorf("fetch supported payment types: %w", err)
	}

	supportedMap := make(map[string]facilitator.SupportedKind, len(supported.Kinds))
	for _, kind := range supported.Kinds {
		supportedMap[kind.Network+"-"+kind.Scheme] = kind
	}

	enriched := make([]x402.PaymentRequirement, len(requirements))
	for i, req := range requirements {
		enriched[i] = req
		kind, ok := supportedMap[req.Network+"-"+req.Scheme]
		if !ok || kind.Extra == nil {
			continue
		}
		if enriched[i].Extra == nil {
			enriched[i].Extra = make(map[string]interface{}, len(kind.Extra))
		}
		for k, v := range kind.Extra {
			if _, exists := enriched[i].Extra[k]; !exists {
				enriched[i].Extra[k] = v
			}
		}
	}
	return enriched, nil
}
