// Package paygate gates access to priced content behind verified ledger
// micropayments. A request without a payment proof receives an HTTP 402
// challenge describing how to pay; a request with a proof has it verified
// against the ledger and consumed exactly once before content is released.
package paygate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitwit/paygate/catalog"
	"github.com/vitwit/paygate/ledger"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/verify"
)

const (
	// DevBypassProof is the sentinel proof that skips verification when
	// the gate was built with the development bypass enabled. Production
	// deployments never enable the bypass, so there the sentinel is just
	// an invalid proof
	DevBypassProof = "dev-bypass"

	// DefaultProofHeader is the header clients send transaction
	// signatures in. Challenges advertise it
	DefaultProofHeader = "X-Payment-Proof"
)

// Gate classifies item requests into challenge, deny or allow. It holds no
// mutable state; every decision is derived from the request alone
type Gate struct {
	catalog     catalog.Catalog
	verifier    verify.Verifier
	ledger      ledger.Client
	wallet      string
	network     types.Network
	proofHeader string
	devBypass   bool
	log         logger.Logger
	rec         metrics.Recorder
}

// New builds an access gate over a catalog and a payment verifier.
func New(cat catalog.Catalog, verifier verify.Verifier, opts ...Option) *Gate {
	g := &Gate{
		catalog:     cat,
		verifier:    verifier,
		network:     types.NetworkSolanaMainnet,
		proofHeader: DefaultProofHeader,
		log:         logger.NoopLogger{},
		rec:         metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Decision is the gate's classification of one request
type Decision struct {
	// Status is the HTTP status the decision renders with
	Status int

	// Body is the ready-to-serialize payload for challenge, rejection and
	// not-found outcomes. It is nil when access is allowed; the caller
	// renders the content itself
	Body any

	// Item is the requested item when it exists
	Item *types.Item

	// Verification is set when access is allowed
	Verification *types.VerificationInfo
}

// Allowed reports whether the request may receive the content.
func (d Decision) Allowed() bool {
	return d.Status == http.StatusOK
}

// NotFoundBody is returned for unknown items, listing what exists instead
type NotFoundBody struct {
	Error          string   `json:"error"`
	Item           string   `json:"item"`
	AvailableItems []string `json:"available_items"`
}

// ChallengeBody tells a client how to pay for an item
type ChallengeBody struct {
	Error          string             `json:"error"`
	Item           string             `json:"item"`
	Pricing        types.Pricing      `json:"pricing"`
	PaymentDetails PaymentDetailsBody `json:"payment_details"`
	PaymentHeader  string             `json:"payment_header"`
}

// FailureBody explains a rejected proof and repeats the payment details so
// the client can retry correctly
type FailureBody struct {
	Code           string             `json:"code"`
	Reason         string             `json:"reason"`
	Details        map[string]any     `json:"details,omitempty"`
	ActionRequired string             `json:"action_required"`
	PaymentDetails PaymentDetailsBody `json:"payment_details"`
}

// PaymentDetailsBody is PaymentDetails plus an explicit unavailable marker
// for when the gate runs without a usable wallet
type PaymentDetailsBody struct {
	types.PaymentDetails
	Unavailable bool   `json:"unavailable,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// AssetInfo describes one settlement asset in payment info
type AssetInfo struct {
	Symbol           string `json:"symbol"`
	Mint             string `json:"mint,omitempty"`
	Decimals         int    `json:"decimals"`
	ReceivingAccount string `json:"receiving_account,omitempty"`
	Unavailable      bool   `json:"unavailable,omitempty"`
}

// PaymentInfoBody is the static how-to-pay description
type PaymentInfoBody struct {
	Network           string      `json:"network"`
	WalletAddress     string      `json:"wallet_address,omitempty"`
	Assets            []AssetInfo `json:"assets"`
	ProofHeader       string      `json:"proof_header"`
	TolerancePolicy   string      `json:"tolerance_policy"`
	ReplayPolicy      string      `json:"replay_policy"`
	ConfirmationLevel string      `json:"confirmation_level"`
}

// CatalogEntry is one item in the discovery listing, without its content
type CatalogEntry struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// CatalogBody lists the purchasable items
type CatalogBody struct {
	Items []CatalogEntry `json:"items"`
}

// Handle classifies a request for an item carrying an optional proof.
func (g *Gate) Handle(ctx context.Context, itemID, proof string) Decision {
	item, ok := g.catalog.Lookup(itemID)
	if !ok {
		g.rec.IncCounter("item_not_found", nil)
		return Decision{
			Status: http.StatusNotFound,
			Body: NotFoundBody{
				Error:          fmt.Sprintf("item %q does not exist", itemID),
				Item:           itemID,
				AvailableItems: g.catalog.IDs(),
			},
		}
	}

	if proof == "" {
		g.rec.IncCounter("challenge_issued", nil)
		g.log.Debug("challenge issued", map[string]any{"item": item.ID})
		return Decision{
			Status: http.StatusPaymentRequired,
			Item:   &item,
			Body:   g.challenge(item),
		}
	}

	if g.devBypass && proof == DevBypassProof {
		g.rec.IncCounter("bypass_used", nil)
		g.log.Warn("development bypass used", map[string]any{"item": item.ID})
		return Decision{
			Status: http.StatusOK,
			Item:   &item,
			Verification: &types.VerificationInfo{
				AmountReceived: decimal.Zero,
				ProofID:        DevBypassProof,
				VerificationID: uuid.NewString(),
			},
		}
	}

	asset, err := types.AssetForCurrency(g.network, item.Currency)
	if err != nil {
		g.log.Error("item not priceable on network", map[string]any{
			"item":     item.ID,
			"currency": item.Currency,
			"network":  g.network.String(),
		})
		verdict := types.Reject(proof, types.ReasonVerificationError,
			fmt.Sprintf("item %q cannot be settled on %s", item.ID, g.network),
			"contact the operator")
		return g.deny(item, verdict)
	}

	verdict := g.verifier.Verify(ctx, proof, item.Price, asset)
	if !verdict.Accepted {
		return g.deny(item, verdict)
	}

	return Decision{
		Status: http.StatusOK,
		Item:   &item,
		Verification: &types.VerificationInfo{
			AmountReceived: verdict.AmountReceived,
			ProofID:        verdict.ProofID,
			VerificationID: verdict.VerificationID,
		},
	}
}

// ProofHeader returns the header name challenges advertise.
func (g *Gate) ProofHeader() string {
	return g.proofHeader
}

// Network returns the settlement network the gate charges on.
func (g *Gate) Network() types.Network {
	return g.network
}

// PaymentInfo describes how to pay, covering every currency the catalog
// prices items in.
func (g *Gate) PaymentInfo() PaymentInfoBody {
	info := PaymentInfoBody{
		Network:           g.network.String(),
		WalletAddress:     g.wallet,
		ProofHeader:       g.proofHeader,
		TolerancePolicy:   "under-payments within 1% of the listed price are accepted",
		ReplayPolicy:      "each transaction signature is redeemable exactly once",
		ConfirmationLevel: "confirmed",
	}

	seen := make(map[string]bool)
	for _, id := range g.catalog.IDs() {
		item, _ := g.catalog.Lookup(id)
		if seen[item.Currency] {
			continue
		}
		seen[item.Currency] = true

		asset, err := types.AssetForCurrency(g.network, item.Currency)
		if err != nil {
			info.Assets = append(info.Assets, AssetInfo{Symbol: item.Currency, Unavailable: true})
			continue
		}

		entry := AssetInfo{Symbol: asset.Symbol, Mint: asset.Mint, Decimals: asset.Decimals}
		if g.wallet != "" && g.ledger != nil {
			if receiving, err := g.ledger.ReceivingAccount(g.wallet, asset); err == nil {
				entry.ReceivingAccount = receiving
			}
		}
		info.Assets = append(info.Assets, entry)
	}

	return info
}

// CatalogSummary lists the items for discovery, without content payloads.
func (g *Gate) CatalogSummary() CatalogBody {
	body := CatalogBody{Items: make([]CatalogEntry, 0)}
	for _, id := range g.catalog.IDs() {
		item, _ := g.catalog.Lookup(id)
		body.Items = append(body.Items, CatalogEntry{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Currency: item.Currency,
		})
	}
	return body
}

func (g *Gate) challenge(item types.Item) ChallengeBody {
	return ChallengeBody{
		Error: "payment required",
		Item:  item.ID,
		Pricing: types.Pricing{
			Amount:   item.Price,
			Currency: item.Currency,
			Network:  g.network.String(),
		},
		PaymentDetails: g.paymentDetails(item),
		PaymentHeader:  g.proofHeader,
	}
}

func (g *Gate) deny(item types.Item, verdict types.Verdict) Decision {
	return Decision{
		Status: http.StatusPaymentRequired,
		Item:   &item,
		Body: FailureBody{
			Code:           string(verdict.Reason),
			Reason:         verdict.Message,
			Details:        verdict.Fields,
			ActionRequired: verdict.Remediation,
			PaymentDetails: g.paymentDetails(item),
		},
	}
}

// paymentDetails derives where and how much to pay for an item. When the
// wallet is missing or unusable it reports unavailable rather than failing
// the request.
func (g *Gate) paymentDetails(item types.Item) PaymentDetailsBody {
	if g.wallet == "" {
		return PaymentDetailsBody{
			Unavailable: true,
			Detail:      "no receiving wallet is configured",
		}
	}

	asset, err := types.AssetForCurrency(g.network, item.Currency)
	if err != nil {
		return PaymentDetailsBody{
			Unavailable: true,
			Detail:      fmt.Sprintf("currency %s is not supported on %s", item.Currency, g.network),
		}
	}

	if g.ledger == nil {
		return PaymentDetailsBody{
			Unavailable: true,
			Detail:      "payment details are temporarily unavailable",
		}
	}

	receiving, err := g.ledger.ReceivingAccount(g.wallet, asset)
	if err != nil {
		g.log.Error("receiving account derivation failed", map[string]any{
			"wallet": g.wallet,
			"error":  err.Error(),
		})
		return PaymentDetailsBody{
			Unavailable: true,
			Detail:      "payment details are temporarily unavailable",
		}
	}

	units, err := types.ToBaseUnits(item.Price, asset.Decimals)
	if err != nil {
		g.log.Error("price not representable in base units", map[string]any{
			"item":  item.ID,
			"price": item.Price.String(),
		})
		return PaymentDetailsBody{
			Unavailable: true,
			Detail:      "payment details are temporarily unavailable",
		}
	}

	return PaymentDetailsBody{
		PaymentDetails: types.PaymentDetails{
			WalletAddress:    g.wallet,
			ReceivingAccount: receiving,
			AssetIdentifier:  asset.Mint,
			AmountBaseUnits:  units,
		},
	}
}
