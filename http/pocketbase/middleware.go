// Package pocketbase provides PocketBase-compatible middleware for x402
// payment gating. Unlike the chi and gin adapters, PocketBase's router does
// not speak stdlib http.Handler directly, so this package bridges
// core.RequestEvent to the same facilitator.Interface-backed verify/settle
// flow the other adapters share.
package pocketbase

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/mark3labs/x402-go"
	httpx402 "github.com/mark3labs/x402-go/http"
	"github.com/mark3labs/x402-go/http/internal/helpers"
)

// PaymentContextKey is the core.RequestEvent store key verified payment
// information is published under, mirroring httpx402.PaymentContextKey.
const PaymentContextKey = "x402_payment"

// NewPocketBaseX402Middleware creates a PocketBase route/group middleware
// that gates access behind an x402 payment, bound via (*core.RouterGroup).BindFunc
// or (*core.Route).BindFunc.
func NewPocketBaseX402Middleware(config *httpx402.Config) func(e *core.RequestEvent) error {
	facilitator := &httpx402.FacilitatorClient{
		BaseURL:       config.FacilitatorURL,
		Client:        &http.Client{},
		VerifyTimeout: 5 * time.Second,
		SettleTimeout: 60 * time.Second,
	}

	var fallbackFacilitator *httpx402.FacilitatorClient
	if config.FallbackFacilitatorURL != "" {
		fallbackFacilitator = &httpx402.FacilitatorClient{
			BaseURL:       config.FallbackFacilitatorURL,
			Client:        &http.Client{},
			VerifyTimeout: 5 * time.Second,
			SettleTimeout: 60 * time.Second,
		}
	}

	enrichedRequirements, err := facilitator.EnrichRequirements(context.Background(), config.PaymentRequirements)
	if err != nil {
		slog.Default().Warn("failed to enrich payment requirements from facilitator", "error", err)
		enrichedRequirements = config.PaymentRequirements
	} else {
		slog.Default().Info("payment requirements enriched from facilitator", "count", len(enrichedRequirements))
	}

	return func(e *core.RequestEvent) error {
		logger := slog.Default()
		r := e.Request

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		resourceURL := scheme + "://" + r.Host + r.RequestURI

		requirementsWithResource := make([]x402.PaymentRequirement, len(enrichedRequirements))
		for i, req := range enrichedRequirements {
			requirementsWithResource[i] = req
			requirementsWithResource[i].Resource = resourceURL
			if requirementsWithResource[i].Description == "" {
				requirementsWithResource[i].Description = "Payment required for " + r.URL.Path
			}
		}

		if r.Header.Get("X-PAYMENT") == "" {
			logger.Warn("no payment header provided", "path", r.URL.Path)
			helpers.SendPaymentRequired(e.Response, requirementsWithResource)
			return nil
		}

		payment, err := parsePaymentHeaderFromRequest(r)
		if err != nil {
			logger.Warn("invalid payment header", "error", err)
			return e.JSON(http.StatusBadRequest, map[string]any{"x402Version": 1, "error": "Invalid payment header"})
		}

		requirement, err := findMatchingRequirementPocketBase(payment, requirementsWithResource)
		if err != nil {
			logger.Warn("no matching requirement", "error", err)
			helpers.SendPaymentRequired(e.Response, requirementsWithResource)
			return nil
		}

		logger.Info("verifying payment", "scheme", payment.Scheme, "network", payment.Network)
		verifyResp, err := facilitator.Verify(r.Context(), payment, requirement)
		if err != nil && fallbackFacilitator != nil {
			logger.Warn("primary facilitator failed, trying fallback", "error", err)
			verifyResp, err = fallbackFacilitator.Verify(r.Context(), payment, requirement)
		}
		if err != nil {
			logger.Error("facilitator verification failed", "error", err)
			return e.JSON(http.StatusServiceUnavailable, map[string]any{"x402Version": 1, "error": "Payment verification failed"})
		}

		if !verifyResp.IsValid {
			logger.Warn("payment verification failed", "reason", verifyResp.InvalidReason)
			helpers.SendPaymentRequired(e.Response, requirementsWithResource)
			return nil
		}

		logger.Info("payment verified", "payer", verifyResp.Payer)

		if !config.VerifyOnly {
			logger.Info("settling payment", "payer", verifyResp.Payer)
			settlementResp, err := facilitator.Settle(r.Context(), payment, requirement)
			if err != nil && fallbackFacilitator != nil {
				logger.Warn("primary facilitator settlement failed, trying fallback", "error", err)
				settlementResp, err = fallbackFacilitator.Settle(r.Context(), payment, requirement)
			}
			if err != nil {
				logger.Error("settlement failed", "error", err)
				return e.JSON(http.StatusServiceUnavailable, map[string]any{"x402Version": 1, "error": "Payment settlement failed"})
			}

			if !settlementResp.Success {
				logger.Warn("settlement unsuccessful", "reason", settlementResp.ErrorReason)
				helpers.SendPaymentRequired(e.Response, requirementsWithResource)
				return nil
			}

			logger.Info("payment settled", "transaction", settlementResp.Transaction)
			if err := helpers.AddPaymentResponseHeader(e.Response, settlementResp); err != nil {
				logger.Warn("failed to add payment response header", "error", err)
			}
		}

		e.Set(PaymentContextKey, verifyResp)
		return e.Next()
	}
}

// parsePaymentHeaderFromRequest decodes the X-PAYMENT header, delegating to
// the shared helper so PocketBase's adapter stays byte-for-byte consistent
// with chi/gin on malformed-header handling.
func parsePaymentHeaderFromRequest(r *http.Request) (x402.PaymentPayload, error) {
	return helpers.ParsePaymentHeaderFromRequest(r)
}

// findMatchingRequirementPocketBase delegates to the shared helper, kept as
// a named wrapper so call sites in this package read consistently with
// parsePaymentHeaderFromRequest above.
func findMatchingRequirementPocketBase(payment x402.PaymentPayload, requirements []x402.PaymentRequirement) (x402.PaymentRequirement, error) {
	return helpers.FindMatchingRequirement(payment, requirements)
}
