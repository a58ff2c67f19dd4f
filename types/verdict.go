package types

import "github.com/shopspring/decimal"

// Reason classifies why a payment proof was rejected. Reasons are stable
// client-facing codes: clients branch on them to decide whether to retry,
// wait, or pay again
type Reason string

const (
	// ReasonReplay means the proof was already consumed by a prior purchase
	ReasonReplay Reason = "REPLAY"

	// ReasonNotFound means the ledger has no transaction for the proof at
	// the required confirmation level
	ReasonNotFound Reason = "NOT_FOUND"

	// ReasonFailedOrUnconfirmed means the transaction exists but either
	// failed on the ledger or carries no execution metadata yet
	ReasonFailedOrUnconfirmed Reason = "FAILED_OR_UNCONFIRMED"

	// ReasonWrongRecipient means no transfer in the transaction pays the
	// derived receiving account
	ReasonWrongRecipient Reason = "WRONG_RECIPIENT"

	// ReasonInsufficientAmount means a transfer reached the receiving
	// account but for less than the tolerated minimum
	ReasonInsufficientAmount Reason = "INSUFFICIENT_AMOUNT"

	// ReasonVerificationError means verification could not complete:
	// ledger unreachable, proof store unavailable, malformed record.
	// It never implies anything about the payment itself
	ReasonVerificationError Reason = "VERIFICATION_ERROR"
)

// Retryable reports whether resubmitting the same proof can ever succeed.
// Only transient conditions qualify; a replayed or wrong payment stays
// rejected no matter how often it is retried.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonNotFound, ReasonFailedOrUnconfirmed, ReasonVerificationError:
		return true
	default:
		return false
	}
}

// Verdict is the outcome of verifying one payment proof against one
// expected charge
type Verdict struct {
	// Accepted is true only when every verification step passed and the
	// proof was consumed exactly once
	Accepted bool `json:"accepted"`

	// ProofID is the proof the verdict is about
	ProofID string `json:"proof_id"`

	// AmountReceived is the matched transfer amount in display units,
	// zero unless a transfer to the receiving account was found
	AmountReceived decimal.Decimal `json:"amount_received"`

	// Reason is set on rejection, empty on acceptance
	Reason Reason `json:"reason,omitempty"`

	// Message is a human-readable description of the rejection
	Message string `json:"message,omitempty"`

	// Remediation tells the payer what to do next
	Remediation string `json:"remediation,omitempty"`

	// Fields carries reason-specific details (expected/received amounts,
	// the receiving account checked, the ledger error string)
	Fields map[string]any `json:"fields,omitempty"`

	// VerificationID correlates the verdict with the attempt's log lines
	VerificationID string `json:"verification_id,omitempty"`
}

// Accept builds the verdict for a proof that settled the charge.
func Accept(proofID string, amountReceived decimal.Decimal) Verdict {
	return Verdict{
		Accepted:       true,
		ProofID:        proofID,
		AmountReceived: amountReceived,
	}
}

// Reject builds a rejection verdict with the given reason and guidance.
func Reject(proofID string, reason Reason, message, remediation string) Verdict {
	return Verdict{
		ProofID:     proofID,
		Reason:      reason,
		Message:     message,
		Remediation: remediation,
	}
}

// WithFields attaches reason-specific details and returns the verdict.
func (v Verdict) WithFields(fields map[string]any) Verdict {
	v.Fields = fields
	return v
}
