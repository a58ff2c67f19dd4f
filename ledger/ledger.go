// Package ledger provides read-only access to the settlement ledger:
// fetching transaction records at a finality-safe confirmation level and
// deriving the account a payment must arrive on. It never submits
// transactions and never holds keys.
package ledger

import (
	"context"
	"errors"

	"github.com/vitwit/paygate/types"
)

// ErrNotFound reports that the ledger cannot resolve a proof to any
// transaction at the required confirmation level. Proofs that do not even
// parse as transaction signatures map here too
var ErrNotFound = errors.New("ledger: transaction not found")

// Client is the read-only ledger contract the verifier depends on
type Client interface {
	// FetchTransaction returns the ledger's record for the given proof.
	// It returns ErrNotFound when the ledger does not know the proof and
	// a transport error when the ledger cannot be asked.
	FetchTransaction(ctx context.Context, proofID string) (*types.TransactionRecord, error)

	// ReceivingAccount derives the account that must appear as a transfer
	// destination for a payment of the given asset to the wallet. The
	// derivation is deterministic and performs no network access.
	ReceivingAccount(wallet string, asset types.Asset) (string, error)
}
