// Package verify implements payment proof verification: one proof, one
// expected charge, one verdict. It owns the order of the checks and the
// exactly-once consumption of accepted proofs.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitwit/paygate/ledger"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/store"
	"github.com/vitwit/paygate/types"
)

// Verifier is the contract the access gate verifies proofs through
type Verifier interface {
	Verify(ctx context.Context, proofID string, price decimal.Decimal, asset types.Asset) types.Verdict
}

// DefaultTimeout bounds a single ledger lookup unless configured otherwise
const DefaultTimeout = 30 * time.Second

// Config carries the verification service dependencies that are not
// collaborators: wallet, network and the ambient instrumentation
type Config struct {
	// Wallet is the merchant wallet payments are derived against. An empty
	// wallet rejects every proof with VERIFICATION_ERROR instead of crashing
	Wallet string

	// Network is the ledger cluster proofs settle on
	Network types.Network

	// Timeout bounds each ledger lookup; zero means DefaultTimeout
	Timeout time.Duration

	Logger  logger.Logger
	Metrics metrics.Recorder
}

// Service verifies payment proofs against a ledger and consumes accepted
// ones through the proof store
type Service struct {
	ledger  ledger.Client
	proofs  store.ProofStore
	wallet  string
	network types.Network
	timeout time.Duration
	log     logger.Logger
	rec     metrics.Recorder
}

var _ Verifier = (*Service)(nil)

// NewService creates a verification service over the given ledger client
// and proof store.
func NewService(ledgerClient ledger.Client, proofs store.ProofStore, cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &Service{
		ledger:  ledgerClient,
		proofs:  proofs,
		wallet:  cfg.Wallet,
		network: cfg.Network,
		timeout: timeout,
		log:     log,
		rec:     rec,
	}
}

// Verify checks a proof against the expected price and consumes it exactly
// once on acceptance. Every outcome is a verdict; infrastructure failures
// surface as VERIFICATION_ERROR, never as acceptance.
func (s *Service) Verify(ctx context.Context, proofID string, price decimal.Decimal, asset types.Asset) types.Verdict {
	attemptID := uuid.NewString()
	log := s.log.With(map[string]any{
		"verification_id": attemptID,
		"proof_id":        proofID,
	})

	start := time.Now()
	verdict := s.run(ctx, log, proofID, price, asset)
	verdict.VerificationID = attemptID

	outcome := "accepted"
	reason := ""
	if !verdict.Accepted {
		outcome = "rejected"
		reason = string(verdict.Reason)
	}
	s.rec.IncCounter("verification_"+outcome, map[string]string{"reason": reason})
	s.rec.ObserveLatency("verify", time.Since(start), map[string]string{"outcome": outcome})

	if verdict.Accepted {
		log.Info("payment accepted", map[string]any{
			"amount_received": verdict.AmountReceived.String(),
			"currency":        asset.Symbol,
		})
	} else {
		log.Info("payment rejected", map[string]any{
			"reason":  string(verdict.Reason),
			"message": verdict.Message,
		})
	}

	return verdict
}

func (s *Service) run(ctx context.Context, log logger.Logger, proofID string, price decimal.Decimal, asset types.Asset) types.Verdict {
	if proofID == "" {
		return types.Reject(proofID, types.ReasonVerificationError,
			"no payment proof was supplied",
			"retry with a transaction signature as the payment proof")
	}

	// Step 1: cheap replay pre-check before touching the ledger
	consumed, err := s.proofs.IsConsumed(ctx, proofID)
	if err != nil {
		log.Error("proof store lookup failed", map[string]any{"error": err.Error()})
		return s.storeUnavailable(proofID)
	}
	if consumed {
		return s.replay(proofID)
	}

	// Step 2: fetch the transaction at confirmed finality
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fetchStart := time.Now()
	record, err := s.ledger.FetchTransaction(fetchCtx, proofID)
	fetchOutcome := "ok"
	if err != nil {
		fetchOutcome = "error"
	}
	s.rec.ObserveLatency("ledger_fetch", time.Since(fetchStart), map[string]string{"outcome": fetchOutcome})

	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return types.Reject(proofID, types.ReasonNotFound,
				fmt.Sprintf("transaction not found on %s at confirmed finality", s.network),
				"confirm the transaction landed, then retry in about 30 seconds").
				WithFields(map[string]any{
					"network":      s.network.String(),
					"explorer_url": types.ExplorerTxURL(s.network, proofID),
				})
		}

		log.Error("ledger lookup failed", map[string]any{"error": err.Error()})
		return types.Reject(proofID, types.ReasonVerificationError,
			"the ledger could not be queried",
			"retry shortly; the payment itself is unaffected").
			WithFields(map[string]any{"network": s.network.String()})
	}

	if !record.Succeeded() {
		message := "transaction is not confirmed yet"
		fields := map[string]any{
			"explorer_url": types.ExplorerTxURL(s.network, proofID),
		}
		if record.HasMeta && record.Err != "" {
			message = "transaction failed on the ledger"
			fields["ledger_error"] = record.Err
		}
		return types.Reject(proofID, types.ReasonFailedOrUnconfirmed, message,
			"wait for confirmation, or submit a new payment if the transaction failed").
			WithFields(fields)
	}

	// Step 3: find the first transfer paying the receiving account
	if s.wallet == "" {
		return types.Reject(proofID, types.ReasonVerificationError,
			"no receiving wallet is configured",
			"contact the operator; payments cannot be verified right now")
	}

	receiving, err := s.ledger.ReceivingAccount(s.wallet, asset)
	if err != nil {
		log.Error("receiving account derivation failed", map[string]any{
			"wallet": s.wallet,
			"error":  err.Error(),
		})
		return types.Reject(proofID, types.ReasonVerificationError,
			"the receiving account could not be derived",
			"contact the operator; payments cannot be verified right now")
	}

	transfer, found := matchTransfer(record.Transfers, receiving, asset)
	if !found {
		return types.Reject(proofID, types.ReasonWrongRecipient,
			"no transfer in the transaction pays the expected receiving account",
			"send the payment to the receiving account below, then retry with the new transaction").
			WithFields(map[string]any{
				"receiving_account": receiving,
				"wallet_address":    s.wallet,
			})
	}

	// Step 4: amount within the tolerance band
	expected, err := types.ToBaseUnits(price, asset.Decimals)
	if err != nil {
		log.Error("price not representable in base units", map[string]any{
			"price":    price.String(),
			"decimals": asset.Decimals,
			"error":    err.Error(),
		})
		return types.Reject(proofID, types.ReasonVerificationError,
			"the item price could not be converted to ledger units",
			"contact the operator")
	}

	minAccepted := types.MinAcceptedBaseUnits(expected)
	if transfer.Amount < minAccepted {
		required := types.FromBaseUnits(expected, asset.Decimals)
		received := types.FromBaseUnits(transfer.Amount, asset.Decimals)
		return types.Reject(proofID, types.ReasonInsufficientAmount,
			fmt.Sprintf("received %s %s, at least %s %s required",
				received, asset.Symbol, types.FromBaseUnits(minAccepted, asset.Decimals), asset.Symbol),
			"send a new payment covering the full price; partial payments are not accumulated").
			WithFields(map[string]any{
				"amount_required":  required.String(),
				"amount_received":  received.String(),
				"minimum_accepted": types.FromBaseUnits(minAccepted, asset.Decimals).String(),
				"shortfall":        required.Sub(received).String(),
				"currency":         asset.Symbol,
			})
	}

	// Step 5: consume exactly once; losing the race is a replay
	ok, err := s.proofs.Consume(ctx, proofID)
	if err != nil {
		log.Error("proof store consume failed", map[string]any{"error": err.Error()})
		return s.storeUnavailable(proofID)
	}
	if !ok {
		return s.replay(proofID)
	}

	return types.Accept(proofID, types.FromBaseUnits(transfer.Amount, asset.Decimals))
}

// matchTransfer returns the first transfer in recorded order whose
// destination is the receiving account and whose asset is compatible with
// the expected one. Typed transfers must name the expected mint; untyped
// transfers match on destination alone.
func matchTransfer(transfers []types.TransferInstruction, receiving string, asset types.Asset) (types.TransferInstruction, bool) {
	for _, t := range transfers {
		if t.Destination != receiving {
			continue
		}
		if t.Typed() && t.Mint != asset.Mint {
			continue
		}
		return t, true
	}
	return types.TransferInstruction{}, false
}

func (s *Service) replay(proofID string) types.Verdict {
	return types.Reject(proofID, types.ReasonReplay,
		"this payment proof was already used for a purchase",
		"each purchase needs its own payment; submit a new transaction").
		WithFields(map[string]any{
			"explorer_url": types.ExplorerTxURL(s.network, proofID),
		})
}

func (s *Service) storeUnavailable(proofID string) types.Verdict {
	return types.Reject(proofID, types.ReasonVerificationError,
		"the proof store is unavailable",
		"retry shortly; the payment itself is unaffected")
}
