// Package svm provides a Solana Virtual Machine (SVM) signer for x402 payments.
// This package implements the x402.Signer interface for Solana blockchain,
// enabling SPL token and Token-2022 transfers as payment for protected
// resources.
//
// # Quick Start
//
// Create a signer for Solana payments:
//
//	signer, err := svm.NewSigner(
//		svm.WithPrivateKey("base58PrivateKey"),
//		svm.WithNetwork("solana"),
//		svm.WithToken(
//			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC on Solana
//			"USDC",
//			6,
//		),
//	)
//
//	// Or derive the signing key from a BIP-39 mnemonic:
//	signer, err := svm.NewSigner(
//		svm.WithMnemonic("abandon abandon ... abandon art"),
//		svm.WithNetwork("solana-devnet"),
//		svm.WithToken(
//			"4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", // USDC on devnet
//			"USDC",
//			6,
//		),
//	)
//
// # Payment Protocol
//
// This signer builds a partially signed SPL token (or Token-2022) transfer:
// it resolves the mint's owning token program, creates the destination's
// associated token account when one does not yet exist, attaches
// compute-budget instructions sized from a simulation dry run, and signs
// with the client key only. The facilitator adds the fee payer signature
// and submits.
//
// # RPC Endpoints
//
// The signer requires access to a Solana RPC endpoint to resolve the token
// program, simulate the transaction, and fetch a recent blockhash. Set the
// endpoint via WithRPCEndpoint(); it otherwise defaults per network to the
// public cluster endpoints, which are rate-limited.
//
// # Security
//
// Private keys should be loaded from secure sources (env vars, key
// management systems). Never hardcode private keys in source code.
package svm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/mark3labs/x402-go"
)

// ComputeBudgetProgramID is the Solana Compute Budget program ID.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Token2022ProgramID is the SPL Token-2022 program ID.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

const (
	// DefaultComputeUnitLimit is used when a simulation dry run fails or
	// reports no consumption, so the transfer still has headroom.
	DefaultComputeUnitLimit uint32 = 8000

	// DefaultComputeUnitPriceMicrolamports keeps the transfer's priority
	// fee negligible by default; callers needing faster inclusion under
	// congestion should set a higher price via WithComputeUnitPrice.
	DefaultComputeUnitPriceMicrolamports uint64 = 1

	// computeUnitHeadroomPercent is added on top of the simulated unit
	// consumption, since the live transaction carries a real blockhash
	// and signature that the simulation's unsigned probe does not.
	computeUnitHeadroomPercent = 20
)

// Signer implements the x402.Signer interface for Solana (SVM).
type Signer struct {
	privateKey       solana.PrivateKey
	publicKey        solana.PublicKey
	network          string
	rpcEndpoint      string
	tokens           []x402.TokenConfig
	priority         int
	maxAmount        *big.Int
	computeUnitPrice uint64
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new Solana signer with the given options.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{
		priority:         0,
		computeUnitPrice: DefaultComputeUnitPriceMicrolamports,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.privateKey) == 0 {
		return nil, x402.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}

	for _, tok := range s.tokens {
		if err := x402.ValidateTokenAddress(s.network, tok.Address); err != nil {
			return nil, err
		}
	}

	s.publicKey = s.privateKey.PublicKey()

	return s, nil
}

// WithPrivateKey sets the private key from a base58 string.
func WithPrivateKey(base58Key string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithKeygenFile loads a private key from a Solana keygen JSON file.
func WithKeygenFile(path string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidKeystore, err)
		}

		var keyBytes []byte
		if err := json.Unmarshal(data, &keyBytes); err != nil {
			return fmt.Errorf("%w: invalid JSON format", x402.ErrInvalidKeystore)
		}

		if len(keyBytes) != 64 {
			return fmt.Errorf("%w: invalid key length", x402.ErrInvalidKeystore)
		}

		s.privateKey = solana.PrivateKey(keyBytes)
		return nil
	}
}

// solanaDerivationPath is BIP-44 path m/44'/501'/0'/0' for Solana account 0.
var solanaDerivationPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 501,
	bip32.FirstHardenedChild + 0,
	bip32.FirstHardenedChild + 0,
}

// WithMnemonic derives the signing key from a BIP-39 mnemonic phrase using
// the standard Solana derivation path m/44'/501'/0'/0'. This is an
// alternative to WithPrivateKey/WithKeygenFile for wallets that store only
// a seed phrase.
func WithMnemonic(mnemonic string) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return x402.ErrInvalidMnemonic
		}

		seed := bip39.NewSeed(mnemonic, "")
		key, err := bip32.NewMasterKey(seed)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}

		for _, index := range solanaDerivationPath {
			key, err = key.NewChildKey(index)
			if err != nil {
				return fmt.Errorf("%w: derive child key: %v", x402.ErrInvalidMnemonic, err)
			}
		}

		// Solana keypairs are ed25519, seeded directly from the BIP-32
		// derived key material rather than its secp256k1 interpretation.
		privateKey, err := solana.NewPrivateKeyFromSeed(key.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithNetwork sets the blockchain network.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithRPCEndpoint overrides the default public RPC endpoint for the
// configured network.
func WithRPCEndpoint(endpoint string) SignerOption {
	return func(s *Signer) error {
		s.rpcEndpoint = endpoint
		return nil
	}
}

// WithToken adds a token configuration.
func WithToken(mintAddress, symbol string, decimals int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  mintAddress,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: 0,
		})
		return nil
	}
}

// WithTokenPriority adds a token configuration with a priority.
func WithTokenPriority(mintAddress, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  mintAddress,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: priority,
		})
		return nil
	}
}

// WithPriority sets the signer priority.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmountPerCall sets the maximum amount per payment call.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		maxAmount, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402.ErrInvalidAmount
		}
		s.maxAmount = maxAmount
		return nil
	}
}

// WithComputeUnitPrice overrides DefaultComputeUnitPriceMicrolamports.
func WithComputeUnitPrice(microlamports uint64) SignerOption {
	return func(s *Signer) error {
		s.computeUnitPrice = microlamports
		return nil
	}
}

// Network implements x402.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402.Signer.
func (s *Signer) Scheme() string {
	return "exact"
}

// CanSign implements x402.Signer.
func (s *Signer) CanSign(requirements *x402.PaymentRequirement) bool {
	if requirements.Network != s.network {
		return false
	}
	if requirements.Scheme != "exact" {
		return false
	}
	for _, tok := range s.tokens {
		if strings.EqualFold(tok.Address, requirements.Asset) {
			return true
		}
	}
	return false
}

// Sign implements x402.Signer.
func (s *Signer) Sign(requirements *x402.PaymentRequirement) (*x402.PaymentPayload, error) {
	if !s.CanSign(requirements) {
		return nil, x402.ErrNoValidSigner
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(requirements.MaxAmountRequired, 10); !ok {
		return nil, x402.ErrInvalidAmount
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402.ErrAmountExceeded
	}

	mintAddress, err := solana.PublicKeyFromBase58(requirements.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	var decimals uint8
	for _, tok := range s.tokens {
		if strings.EqualFold(tok.Address, requirements.Asset) {
			decimals = uint8(tok.Decimals)
			break
		}
	}

	feePayer, err := extractFeePayer(requirements)
	if err != nil {
		return nil, fmt.Errorf("invalid fee payer: %w", err)
	}

	rpcURL := s.rpcEndpoint
	if rpcURL == "" {
		rpcURL, err = getRPCURL(s.network)
		if err != nil {
			return nil, err
		}
	}
	client := rpc.New(rpcURL)
	ctx := context.Background()

	tokenProgram, err := resolveTokenProgram(ctx, client, mintAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve token program: %w", err)
	}

	recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash from %s: %w", rpcURL, err)
	}

	txBase64, err := s.buildPartiallySignedTransfer(ctx, client, buildTransferParams{
		mint:         mintAddress,
		recipient:    recipient,
		amount:       amount.Uint64(),
		decimals:     decimals,
		feePayer:     feePayer,
		blockhash:    recent.Value.Blockhash,
		tokenProgram: tokenProgram,
	})
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build transaction", err)
	}

	payload := &x402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     s.network,
		Payload: x402.SVMPayload{
			Transaction: txBase64,
		},
	}

	return payload, nil
}

// GetPriority implements x402.Signer.
func (s *Signer) GetPriority() int {
	return s.priority
}

// GetTokens implements x402.Signer.
func (s *Signer) GetTokens() []x402.TokenConfig {
	return s.tokens
}

// GetMaxAmount implements x402.Signer.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// Address returns the signer's public key as a base58 string.
func (s *Signer) Address() string {
	return s.publicKey.String()
}

// getRPCURL returns the default public RPC URL for the given network.
func getRPCURL(network string) (string, error) {
	switch strings.ToLower(network) {
	case "solana", "mainnet-beta":
		return rpc.MainNetBeta_RPC, nil
	case "solana-devnet", "devnet":
		return rpc.DevNet_RPC, nil
	case "solana-testnet", "testnet":
		return rpc.TestNet_RPC, nil
	default:
		return "", fmt.Errorf("%w: %s", x402.ErrUnsupportedNetwork, network)
	}
}

// extractFeePayer extracts the feePayer address from the payment
// requirements. The feePayer is specified in requirements.Extra["feePayer"]
// per the exact_svm scheme.
func extractFeePayer(requirements *x402.PaymentRequirement) (solana.PublicKey, error) {
	if requirements.Extra == nil {
		return solana.PublicKey{}, fmt.Errorf("missing extra field in requirements")
	}

	feePayerStr, ok := requirements.Extra["feePayer"].(string)
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("feePayer not found or not a string in extra field")
	}

	feePayer, err := solana.PublicKeyFromBase58(feePayerStr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid feePayer address: %w", err)
	}

	return feePayer, nil
}

// resolveTokenProgram inspects the mint account's owner to decide whether
// the transfer must go through the classic SPL Token program or
// Token-2022. Unlike the network identifier, this cannot be inferred from
// config: a mint on any SVM network may use either program.
func resolveTokenProgram(ctx context.Context, client *rpc.Client, mint solana.PublicKey) (solana.PublicKey, error) {
	info, err := client.GetAccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if info == nil || info.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("mint account %s not found", mint)
	}

	owner := info.Value.Owner
	switch {
	case owner.Equals(solana.TokenProgramID):
		return solana.TokenProgramID, nil
	case owner.Equals(Token2022ProgramID):
		return Token2022ProgramID, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("mint %s is owned by unexpected program %s", mint, owner)
	}
}

type buildTransferParams struct {
	mint         solana.PublicKey
	recipient    solana.PublicKey
	amount       uint64
	decimals     uint8
	feePayer     solana.PublicKey
	blockhash    solana.Hash
	tokenProgram solana.PublicKey
}

// buildPartiallySignedTransfer creates a partially signed SPL token (or
// Token-2022) transfer. The client signs with their private key; the
// facilitator adds the fee payer signature and submits.
func (s *Signer) buildPartiallySignedTransfer(ctx context.Context, client *rpc.Client, p buildTransferParams) (string, error) {
	sourceATA, _, err := solana.FindProgramAddress([][]byte{s.publicKey[:], p.tokenProgram[:], p.mint[:]}, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return "", fmt.Errorf("failed to find source ATA: %w", err)
	}
	destATA, _, err := solana.FindProgramAddress([][]byte{p.recipient[:], p.tokenProgram[:], p.mint[:]}, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return "", fmt.Errorf("failed to find destination ATA: %w", err)
	}

	instructions := []solana.Instruction{}

	destInfo, err := client.GetAccountInfo(ctx, destATA)
	if err != nil || destInfo == nil || destInfo.Value == nil {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(p.feePayer, p.recipient, p.mint).Build(),
		)
	}

	transferInst := token.NewTransferCheckedInstructionBuilder().
		SetAmount(p.amount).
		SetDecimals(p.decimals).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(p.mint).
		SetOwnerAccount(s.publicKey).
		Build()
	transferInst.ProgramID = p.tokenProgram

	unitLimit := s.simulateComputeUnits(ctx, client, append(instructions, transferInst), p.feePayer, p.blockhash)

	allInstructions := make([]solana.Instruction, 0, len(instructions)+3)
	allInstructions = append(allInstructions,
		buildSetComputeUnitLimitInstruction(unitLimit),
		buildSetComputeUnitPriceInstruction(s.computeUnitPrice),
	)
	allInstructions = append(allInstructions, instructions...)
	allInstructions = append(allInstructions, transferInst)

	tx, err := solana.NewTransaction(
		allInstructions,
		p.blockhash,
		solana.TransactionPayer(p.feePayer),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(txBytes), nil
}

// simulateComputeUnits dry-runs the transfer to size the compute unit
// limit tightly. A dry run that errors or reports no usage falls back to
// DefaultComputeUnitLimit, since the facilitator still rejects an
// under-provisioned limit at submission time.
func (s *Signer) simulateComputeUnits(ctx context.Context, client *rpc.Client, instructions []solana.Instruction, feePayer solana.PublicKey, blockhash solana.Hash) uint32 {
	probe, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return DefaultComputeUnitLimit
	}

	result, err := client.SimulateTransaction(ctx, probe)
	if err != nil || result == nil || result.Value == nil || result.Value.UnitsConsumed == nil {
		return DefaultComputeUnitLimit
	}

	consumed := *result.Value.UnitsConsumed
	withHeadroom := consumed + (consumed * computeUnitHeadroomPercent / 100)
	if withHeadroom == 0 || withHeadroom > uint64(^uint32(0)) {
		return DefaultComputeUnitLimit
	}
	return uint32(withHeadroom)
}

// buildSetComputeUnitLimitInstruction creates a SetComputeUnitLimit instruction.
// Format: [2, units (u32 little-endian)]
func buildSetComputeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	data[1] = byte(units)
	data[2] = byte(units >> 8)
	data[3] = byte(units >> 16)
	data[4] = byte(units >> 24)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildSetComputeUnitPriceInstruction creates a SetComputeUnitPrice instruction.
// Format: [3, microlamports (u64 little-endian)]
func buildSetComputeUnitPriceInstruction(microlamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	data[1] = byte(microlamports)
	data[2] = byte(microlamports >> 8)
	data[3] = byte(microlamports >> 16)
	data[4] = byte(microlamports >> 24)
	data[5] = byte(microlamports >> 32)
	data[6] = byte(microlamports >> 40)
	data[7] = byte(microlamports >> 48)
	data[8] = byte(microlamports >> 56)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
