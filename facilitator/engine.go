package facilitator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mark3labs/x402-go"
	"github.com/mark3labs/x402-go/retry"
)

// MaxConfirmAttempts bounds how many times Settle polls GetSignatureStatuses
// before giving up on a submitted transaction.
const MaxConfirmAttempts = 30

// ConfirmRetryDelay is the wait between confirmation polls.
const ConfirmRetryDelay = 1 * time.Second

// Engine is the on-chain half of a facilitator: it introspects a client's
// partially signed SVM transaction, simulates it, and, on Settle, co-signs as
// fee payer and submits it, polling for confirmation. It implements Interface.
type Engine struct {
	client   *rpc.Client
	feePayer solana.PrivateKey
	network  string
	retryCfg retry.Config
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineRPCEndpoint sets the Solana RPC endpoint the engine simulates and
// submits transactions against.
func WithEngineRPCEndpoint(endpoint string) EngineOption {
	return func(e *Engine) { e.client = rpc.New(endpoint) }
}

// WithEngineFeePayer sets the key the engine signs settlements with. Its
// public key must match the feePayer named in every PaymentRequirement the
// engine is asked to verify or settle.
func WithEngineFeePayer(base58Key string) EngineOption {
	return func(e *Engine) {
		key, err := solana.PrivateKeyFromBase58(base58Key)
		if err == nil {
			e.feePayer = key
		}
	}
}

// WithEngineNetwork sets the x402 network name (e.g. "solana",
// "solana-devnet") this engine serves.
func WithEngineNetwork(network string) EngineOption {
	return func(e *Engine) { e.network = network }
}

// WithEngineRetryConfig overrides the default retry backoff used for
// transient RPC failures while Settle polls for confirmation. Submission
// itself is never retried.
func WithEngineRetryConfig(cfg retry.Config) EngineOption {
	return func(e *Engine) { e.retryCfg = cfg }
}

// NewEngine builds an Engine from options. Without both an RPC endpoint and
// a fee payer, Settle returns an error on every call and Verify runs the
// introspection checks only, skipping simulation.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		network:  "solana",
		retryCfg: retry.DefaultConfig,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func isRetryableRPCError(err error) bool {
	return err != nil
}

// Verify runs the instruction-level introspection pipeline against
// payment's transaction, then — when the engine has both an RPC client and
// a fee payer configured — signs a throwaway copy as fee payer and
// dry-runs it through SimulateTransaction (sigVerify=true,
// replaceRecentBlockhash=false) so a structurally valid but unexecutable
// transaction (insufficient balance, stale blockhash) is still rejected
// before settlement is attempted.
func (e *Engine) Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*VerifyResponse, error) {
	intro, err := IntrospectTransaction(ctx, e.client, payment, requirement)
	if err != nil {
		return &VerifyResponse{IsValid: false, InvalidReason: string(UnexpectedVerifyError)}, nil
	}
	if !intro.Valid {
		return &VerifyResponse{IsValid: false, InvalidReason: string(intro.InvalidReason), Payer: intro.Payer}, nil
	}

	if e.client != nil && len(e.feePayer) > 0 {
		simTx := *intro.Transaction
		if _, err := simTx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(e.feePayer.PublicKey()) {
				return &e.feePayer
			}
			return nil
		}); err != nil {
			return &VerifyResponse{IsValid: false, InvalidReason: string(InvalidReasonSimulationFailed), Payer: intro.Payer}, nil
		}

		result, err := e.client.SimulateTransactionWithOpts(ctx, &simTx, &rpc.SimulateTransactionOpts{
			SigVerify:              true,
			ReplaceRecentBlockhash: false,
			Commitment:             rpc.CommitmentConfirmed,
		})
		if err != nil || result.Value.Err != nil {
			return &VerifyResponse{IsValid: false, InvalidReason: string(InvalidReasonSimulationFailed), Payer: intro.Payer}, nil
		}
	}

	return &VerifyResponse{IsValid: true, Payer: intro.Payer}, nil
}

// Settle re-verifies payment, signs its transaction as fee payer, submits it,
// and polls for confirmation up to MaxConfirmAttempts, returning the
// signature, once it reaches confirmed or finalized commitment, as the
// settlement's transaction hash.
func (e *Engine) Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	if e.client == nil {
		return nil, x402.NewPaymentError(x402.ErrCodeNetworkError, "engine has no rpc client configured", nil)
	}
	if len(e.feePayer) == 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "engine has no fee payer configured", nil)
	}

	verified, err := e.Verify(ctx, payment, requirement)
	if err != nil {
		return nil, err
	}
	if !verified.IsValid {
		return &x402.SettlementResponse{
			Success:     false,
			ErrorReason: verified.InvalidReason,
			Network:     payment.Network,
			Payer:       verified.Payer,
		}, nil
	}

	intro, err := IntrospectTransaction(ctx, e.client, payment, requirement)
	if err != nil || intro.Transaction == nil {
		return nil, fmt.Errorf("re-introspect transaction for settlement: %w", err)
	}
	tx := intro.Transaction

	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(e.feePayer.PublicKey()) {
			return &e.feePayer
		}
		return nil
	}); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "fee payer signing failed", err)
	}

	// The engine never retries submission: each signed transaction is bound
	// to one blockhash, so a retry is the caller's responsibility after
	// producing a new payload.
	sig, err := e.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeNetworkError, "submit transaction", err)
	}

	if err := e.confirmSignature(ctx, tx, sig); err != nil {
		return &x402.SettlementResponse{
			Success:     false,
			ErrorReason: settleErrorReason(err),
			Transaction: sig.String(),
			Network:     payment.Network,
			Payer:       intro.Payer,
		}, nil
	}

	return &x402.SettlementResponse{
		Success:     true,
		Transaction: sig.String(),
		Network:     payment.Network,
		Payer:       intro.Payer,
	}, nil
}

var (
	errBlockHeightExceeded  = errors.New("settle_exact_svm_block_height_exceeded")
	errConfirmationTimedOut = errors.New("settle_exact_svm_transaction_confirmation_timed_out")
)

// settleErrorReason maps confirmSignature's sentinel errors to the string
// a SettlementResponse.ErrorReason reports; any other error is an
// unexpected_settle_error.
func settleErrorReason(err error) string {
	switch {
	case errors.Is(err, errBlockHeightExceeded):
		return errBlockHeightExceeded.Error()
	case errors.Is(err, errConfirmationTimedOut):
		return errConfirmationTimedOut.Error()
	default:
		return "unexpected_settle_error"
	}
}

// confirmSignature polls GetSignatureStatuses every ConfirmRetryDelay until
// the transaction reaches at least confirmed commitment, fails on-chain, or
// its blockhash expires — the polling fallback from §4.5, used here
// directly rather than behind the subscription path since this engine
// doesn't hold a websocket client.
func (e *Engine) confirmSignature(ctx context.Context, tx *solana.Transaction, sig solana.Signature) error {
	for attempt := 0; attempt < MaxConfirmAttempts; attempt++ {
		statuses, err := retry.WithRetry(ctx, e.retryCfg, isRetryableRPCError, func() (*rpc.GetSignatureStatusesResult, error) {
			return e.client.GetSignatureStatuses(ctx, true, sig)
		})
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed on-chain: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		valid, err := e.client.IsBlockhashValid(ctx, tx.Message.RecentBlockhash, rpc.CommitmentConfirmed)
		if err == nil && valid != nil && !valid.Value {
			return errBlockHeightExceeded
		}

		select {
		case <-time.After(ConfirmRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errConfirmationTimedOut
}

// Supported reports the single exact/solana payment kind this engine serves.
func (e *Engine) Supported(ctx context.Context) (*SupportedResponse, error) {
	return &SupportedResponse{
		Kinds: []SupportedKind{
			{X402Version: 1, Scheme: "exact", Network: e.network},
		},
	}, nil
}
