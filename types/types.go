package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a single purchasable catalog entry
type Item struct {
	// ID uniquely identifies the item and is the key used on /buy/{item}
	ID string `json:"id" validate:"required"`

	// Name is an optional human-readable title
	Name string `json:"name,omitempty"`

	// Price is the charge in the settlement currency's display unit
	// (e.g. 0.001 USDC)
	Price decimal.Decimal `json:"price"`

	// Currency is the settlement asset symbol (e.g. "USDC", "SOL")
	Currency string `json:"currency" validate:"required"`

	// Content is the payload released once payment verifies
	Content string `json:"content" validate:"required"`
}

// Validate checks that the Item is well-formed and priceable.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item.id is required")
	}

	if i.Currency == "" {
		return fmt.Errorf("item %q: currency is required", i.ID)
	}

	if !i.Price.IsPositive() {
		return fmt.Errorf("item %q: price must be greater than 0", i.ID)
	}

	if i.Content == "" {
		return fmt.Errorf("item %q: content is required", i.ID)
	}

	return nil
}

// TransferInstruction is one decoded transfer from a ledger transaction,
// kept in the order the ledger recorded it
type TransferInstruction struct {
	// Source is the account the funds moved out of
	Source string `json:"source"`

	// Destination is the account the funds moved into
	Destination string `json:"destination"`

	// Mint identifies the transferred asset. Empty for untyped transfers:
	// native moves, or token transfers whose instruction does not name a mint
	Mint string `json:"mint,omitempty"`

	// Amount is the transferred quantity in the asset's base units
	Amount uint64 `json:"amount"`
}

// Typed reports whether the instruction names the asset it moves.
func (t TransferInstruction) Typed() bool {
	return t.Mint != ""
}

// TransactionRecord is the ledger's view of a transaction fetched at a
// finality-safe confirmation level
type TransactionRecord struct {
	// Signature is the transaction identifier the record was fetched by
	Signature string `json:"signature"`

	// Slot is the ledger slot the transaction landed in
	Slot uint64 `json:"slot"`

	// BlockTime is the ledger-reported block time, zero when unknown
	BlockTime time.Time `json:"blockTime,omitempty"`

	// HasMeta reports whether the ledger returned execution metadata.
	// A record without metadata cannot be treated as settled
	HasMeta bool `json:"hasMeta"`

	// Err is the ledger-recorded execution error, empty on success
	Err string `json:"err,omitempty"`

	// Transfers are the decoded transfer instructions in recorded order
	Transfers []TransferInstruction `json:"transfers"`
}

// Succeeded reports whether the ledger confirmed the transaction and
// recorded no execution error.
func (r *TransactionRecord) Succeeded() bool {
	return r.HasMeta && r.Err == ""
}

// VerificationInfo is attached to a request that passed the payment gate.
// It echoes what was actually received so callers can reconcile over- and
// under-payments inside the tolerance band
type VerificationInfo struct {
	// AmountReceived is the verified transfer amount in display units
	AmountReceived decimal.Decimal `json:"amount_received"`

	// ProofID is the consumed payment proof (ledger transaction signature)
	ProofID string `json:"proof_id"`

	// VerificationID correlates this attempt across logs and responses
	VerificationID string `json:"verification_id"`
}

// PaymentDetails tells a client where and how much to pay. It is embedded
// in every 402 challenge and in rejection responses
type PaymentDetails struct {
	// WalletAddress is the merchant wallet payments are derived against
	WalletAddress string `json:"wallet_address"`

	// ReceivingAccount is the derived account that must appear as the
	// transfer destination on the ledger
	ReceivingAccount string `json:"receiving_account"`

	// AssetIdentifier is the mint of the settlement asset, empty for the
	// native asset
	AssetIdentifier string `json:"asset_identifier,omitempty"`

	// AmountBaseUnits is the expected charge in the asset's base units
	AmountBaseUnits uint64 `json:"amount_base_units"`
}

// Pricing is the display-unit price of an item as shown in challenges
type Pricing struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Network  string          `json:"network"`
}
