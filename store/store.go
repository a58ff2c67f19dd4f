// Package store tracks consumed payment proofs so each proof settles at
// most one purchase. Implementations must make Consume an atomic
// check-and-insert: under concurrent calls with the same proof exactly one
// caller wins.
package store

import "context"

// ProofStore is the consumed-proof set behind replay protection
type ProofStore interface {
	// IsConsumed reports whether the proof was already used. It is a
	// cheap pre-check; only Consume decides races.
	IsConsumed(ctx context.Context, proofID string) (bool, error)

	// Consume atomically records the proof as used. It returns false when
	// the proof was already present. An error means the store could not
	// answer, not that the proof was consumed.
	Consume(ctx context.Context, proofID string) (bool, error)
}
