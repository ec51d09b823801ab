package facilitator

import (
	"context"
	"encoding/base64"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mark3labs/x402-go"
)

// InvalidReason is the closed string-enum a Verify/Settle call returns in
// VerifyResponse.InvalidReason / SettlementResponse.ErrorReason, so a
// client can branch on the reason without parsing free text.
type InvalidReason string

const (
	// Checked before the SVM-specific pipeline runs at all.
	InvalidReasonUnsupportedScheme InvalidReason = "unsupported_scheme"
	InvalidReasonInvalidNetwork    InvalidReason = "invalid_network"

	InvalidReasonDecodeFailed                InvalidReason = "invalid_exact_svm_payload_transaction"
	InvalidReasonInstructionsLength          InvalidReason = "invalid_exact_svm_payload_transaction_instructions_length"
	InvalidReasonComputeLimitInstruction     InvalidReason = "invalid_exact_svm_payload_transaction_instructions_compute_limit_instruction"
	InvalidReasonComputePriceInstruction     InvalidReason = "invalid_exact_svm_payload_transaction_instructions_compute_price_instruction"
	InvalidReasonComputePriceTooHigh         InvalidReason = "invalid_exact_svm_payload_transaction_instructions_compute_price_instruction_too_high"
	InvalidReasonNotSPLTokenTransferChecked  InvalidReason = "invalid_exact_svm_payload_transaction_instruction_not_spl_token_transfer_checked"
	InvalidReasonNotToken2022TransferChecked InvalidReason = "invalid_exact_svm_payload_transaction_instruction_not_token_2022_transfer_checked"
	InvalidReasonNotATransferInstruction     InvalidReason = "invalid_exact_svm_payload_transaction_not_a_transfer_instruction"
	InvalidReasonCreateATAInstruction        InvalidReason = "invalid_exact_svm_payload_transaction_create_ata_instruction"
	InvalidReasonCreateATAIncorrectPayee     InvalidReason = "invalid_exact_svm_payload_transaction_create_ata_instruction_incorrect_payee"
	InvalidReasonCreateATAIncorrectAsset     InvalidReason = "invalid_exact_svm_payload_transaction_create_ata_instruction_incorrect_asset"
	InvalidReasonTransferToIncorrectATA      InvalidReason = "invalid_exact_svm_payload_transaction_transfer_to_incorrect_ata"
	InvalidReasonSenderATANotFound           InvalidReason = "invalid_exact_svm_payload_transaction_sender_ata_not_found"
	InvalidReasonReceiverATANotFound         InvalidReason = "invalid_exact_svm_payload_transaction_receiver_ata_not_found"
	InvalidReasonAmountMismatch              InvalidReason = "invalid_exact_svm_payload_transaction_amount_mismatch"
	InvalidReasonSimulationFailed            InvalidReason = "invalid_exact_svm_payload_transaction_simulation_failed"

	// UnexpectedVerifyError covers a failure mode outside the known set above.
	UnexpectedVerifyError InvalidReason = "unexpected_verify_error"
)

// ComputeBudgetProgramID is the Solana Compute Budget program.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Token2022ProgramID is the SPL Token-2022 program.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// MaxComputeUnitPriceMicrolamports hard-caps the priority fee a client's
// transaction may request, so a malicious payload can't drain the fee
// payer through an inflated compute-unit price.
const MaxComputeUnitPriceMicrolamports = 5_000_000

// Introspection is the result of validating a client's transaction against
// a PaymentRequirement. On success Transaction holds the decoded
// *solana.Transaction, ready for the facilitator to co-sign and submit.
type Introspection struct {
	Valid         bool
	InvalidReason InvalidReason
	Payer         string
	Transaction   *solana.Transaction
}

func invalid(reason InvalidReason, payer ...string) (*Introspection, error) {
	result := &Introspection{Valid: false, InvalidReason: reason}
	if len(payer) > 0 {
		result.Payer = payer[0]
	}
	return result, nil
}

// IntrospectTransaction runs the instruction-level validation pipeline:
// decode, check instruction count and exact positional ordering, decode
// each instruction against its strict template, check the transfer's
// destination against requirement, when client is non-nil confirm the
// source and destination associated token accounts exist, and finally
// check the transfer amount. Checks abort at the first failure, in the
// order above.
func IntrospectTransaction(ctx context.Context, client *rpc.Client, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*Introspection, error) {
	if payment.Scheme != "exact" || requirement.Scheme != "exact" {
		return invalid(InvalidReasonUnsupportedScheme)
	}
	if payment.Network != requirement.Network {
		return invalid(InvalidReasonInvalidNetwork)
	}

	svmPayload, ok := payment.Payload.(x402.SVMPayload)
	if !ok {
		return invalid(InvalidReasonDecodeFailed)
	}

	raw, err := base64.StdEncoding.DecodeString(svmPayload.Transaction)
	if err != nil {
		return invalid(InvalidReasonDecodeFailed)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return invalid(InvalidReasonDecodeFailed)
	}

	instructions := tx.Message.Instructions
	if len(instructions) != 3 && len(instructions) != 4 {
		return invalid(InvalidReasonInstructionsLength)
	}

	if _, ok := decodeComputeUnitLimit(&tx.Message, instructions[0]); !ok {
		return invalid(InvalidReasonComputeLimitInstruction)
	}

	price, ok := decodeComputeUnitPrice(&tx.Message, instructions[1])
	if !ok {
		return invalid(InvalidReasonComputePriceInstruction)
	}
	if price > MaxComputeUnitPriceMicrolamports {
		return invalid(InvalidReasonComputePriceTooHigh)
	}

	mint, err := solana.PublicKeyFromBase58(requirement.Asset)
	if err != nil {
		return invalid(InvalidReasonDecodeFailed)
	}
	payTo, err := solana.PublicKeyFromBase58(requirement.PayTo)
	if err != nil {
		return invalid(InvalidReasonDecodeFailed)
	}

	transferIdx := 2
	hasCreateATA := len(instructions) == 4
	if hasCreateATA {
		owner, createMint, ok := decodeCreateATA(&tx.Message, instructions[2])
		if !ok {
			return invalid(InvalidReasonCreateATAInstruction)
		}
		if !owner.Equals(payTo) {
			return invalid(InvalidReasonCreateATAIncorrectPayee)
		}
		if !createMint.Equals(mint) {
			return invalid(InvalidReasonCreateATAIncorrectAsset)
		}
		transferIdx = 3
	}

	transferInst := instructions[transferIdx]
	prog, err := tx.Message.ResolveProgramIDIndex(transferInst.ProgramIDIndex)
	if err != nil {
		return invalid(InvalidReasonNotATransferInstruction)
	}

	var reasonIfNotTransfer InvalidReason
	switch {
	case prog.Equals(solana.TokenProgramID):
		reasonIfNotTransfer = InvalidReasonNotSPLTokenTransferChecked
	case prog.Equals(Token2022ProgramID):
		reasonIfNotTransfer = InvalidReasonNotToken2022TransferChecked
	default:
		return invalid(InvalidReasonNotATransferInstruction)
	}

	transfer, ok := decodeTransferChecked(&tx.Message, transferInst)
	if !ok {
		return invalid(reasonIfNotTransfer)
	}

	payer := transfer.GetOwnerAccount().PublicKey.String()

	destATA, _, err := solana.FindProgramAddress([][]byte{payTo[:], prog[:], mint[:]}, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return invalid(InvalidReasonDecodeFailed)
	}
	sourceATA := transfer.GetSourceAccount().PublicKey

	if !transfer.GetDestinationAccount().PublicKey.Equals(destATA) {
		return invalid(InvalidReasonTransferToIncorrectATA, payer)
	}

	if client != nil {
		exists, err := accountExists(ctx, client, sourceATA)
		if err != nil || !exists {
			return invalid(InvalidReasonSenderATANotFound, payer)
		}
		if !hasCreateATA {
			exists, err := accountExists(ctx, client, destATA)
			if err != nil || !exists {
				return invalid(InvalidReasonReceiverATANotFound, payer)
			}
		}
	}

	wantAmount, ok := parseAmount(requirement.MaxAmountRequired)
	if !ok || transfer.Amount == nil || *transfer.Amount != wantAmount {
		return invalid(InvalidReasonAmountMismatch, payer)
	}

	return &Introspection{Valid: true, Payer: payer, Transaction: tx}, nil
}

func parseAmount(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var amount uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		amount = amount*10 + uint64(c-'0')
	}
	return amount, true
}

func accountExists(ctx context.Context, client *rpc.Client, account solana.PublicKey) (bool, error) {
	info, err := client.GetAccountInfo(ctx, account)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Value != nil, nil
}

// decodeComputeUnitLimit validates instruction[0]: compute-budget program,
// discriminator 2, 4-byte little-endian unit count.
func decodeComputeUnitLimit(msg *solana.Message, inst solana.CompiledInstruction) (uint32, bool) {
	prog, err := msg.ResolveProgramIDIndex(inst.ProgramIDIndex)
	if err != nil || !prog.Equals(ComputeBudgetProgramID) {
		return 0, false
	}
	if len(inst.Data) != 5 || inst.Data[0] != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(inst.Data[1:5]), true
}

// decodeComputeUnitPrice validates instruction[1]: compute-budget program,
// discriminator 3, 8-byte little-endian microlamport price.
func decodeComputeUnitPrice(msg *solana.Message, inst solana.CompiledInstruction) (uint64, bool) {
	prog, err := msg.ResolveProgramIDIndex(inst.ProgramIDIndex)
	if err != nil || !prog.Equals(ComputeBudgetProgramID) {
		return 0, false
	}
	if len(inst.Data) != 9 || inst.Data[0] != 3 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(inst.Data[1:9]), true
}

// decodeCreateATA validates an optional instruction[2]: the associated
// token account program's CreateAssociatedToken instruction, returning the
// owner and mint accounts it names. Account layout matches
// associatedtokenaccount.NewCreateInstruction's builder order: payer, ata,
// owner, mint.
func decodeCreateATA(msg *solana.Message, inst solana.CompiledInstruction) (owner, mint solana.PublicKey, ok bool) {
	prog, err := msg.ResolveProgramIDIndex(inst.ProgramIDIndex)
	if err != nil || !prog.Equals(solana.SPLAssociatedTokenAccountProgramID) {
		return solana.PublicKey{}, solana.PublicKey{}, false
	}
	accounts := inst.ResolveInstructionAccounts(msg)
	if len(accounts) < 4 {
		return solana.PublicKey{}, solana.PublicKey{}, false
	}
	return accounts[2].PublicKey, accounts[3].PublicKey, true
}

// decodeTransferChecked decodes the transfer instruction using the SPL
// Token instruction layout, which Token-2022 shares for TransferChecked.
func decodeTransferChecked(msg *solana.Message, inst solana.CompiledInstruction) (*token.TransferChecked, bool) {
	accounts := inst.ResolveInstructionAccounts(msg)
	decoded, err := token.DecodeInstruction(accounts, inst.Data)
	if err != nil {
		return nil, false
	}
	transfer, ok := decoded.Impl.(*token.TransferChecked)
	if !ok {
		return nil, false
	}
	return transfer, true
}
