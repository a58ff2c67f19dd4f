package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paygate "github.com/vitwit/paygate"
	"github.com/vitwit/paygate/catalog"
	"github.com/vitwit/paygate/ledger"
	"github.com/vitwit/paygate/store"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/verify"
)

const merchantWallet = "MerchantWa11et1111111111111111111111111111111"

const articleContent = "Full text of the paid article."

// fakeLedger is an in-memory ledger shared by the gate and the verifier,
// so challenge and verification see the same receiving accounts
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*types.TransactionRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*types.TransactionRecord{}}
}

func (f *fakeLedger) add(record *types.TransactionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.Signature] = record
}

func (f *fakeLedger) FetchTransaction(ctx context.Context, proofID string) (*types.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[proofID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return record, nil
}

func (f *fakeLedger) ReceivingAccount(wallet string, asset types.Asset) (string, error) {
	if asset.Native() {
		return wallet, nil
	}
	return wallet + "/" + asset.Mint, nil
}

// capturingVerifier records every proof it is asked about and rejects it
type capturingVerifier struct {
	mu     sync.Mutex
	proofs []string
}

func (v *capturingVerifier) Verify(ctx context.Context, proofID string, price decimal.Decimal, asset types.Asset) types.Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.proofs = append(v.proofs, proofID)
	return types.Reject(proofID, types.ReasonNotFound, "transaction not found", "retry in about 30 seconds")
}

func testCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	cat, err := catalog.Static(
		types.Item{ID: "article", Name: "Article", Price: decimal.RequireFromString("0.001"), Currency: "USDC", Content: articleContent},
		types.Item{ID: "report", Name: "Quarterly report", Price: decimal.RequireFromString("0.25"), Currency: "USDC", Content: "Report body."},
	)
	require.NoError(t, err)
	return cat
}

func usdcDevnet(t *testing.T) types.Asset {
	t.Helper()
	asset, err := types.AssetForCurrency(types.NetworkSolanaDevnet, "USDC")
	require.NoError(t, err)
	return asset
}

// newTestServer wires the real verifier and gate around a fake ledger.
func newTestServer(t *testing.T, fl *fakeLedger, opts ...paygate.Option) *Server {
	t.Helper()

	svc := verify.NewService(fl, store.NewMemoryStore(), verify.Config{
		Wallet:  merchantWallet,
		Network: types.NetworkSolanaDevnet,
	})

	gateOpts := append([]paygate.Option{
		paygate.WithWallet(merchantWallet),
		paygate.WithNetwork(types.NetworkSolanaDevnet),
		paygate.WithLedger(fl),
	}, opts...)

	return New(paygate.New(testCatalog(t), svc, gateOpts...), Config{})
}

// newCaptureServer swaps the verifier for a capturing fake.
func newCaptureServer(t *testing.T, v verify.Verifier, opts ...paygate.Option) *Server {
	t.Helper()

	gateOpts := append([]paygate.Option{
		paygate.WithWallet(merchantWallet),
		paygate.WithNetwork(types.NetworkSolanaDevnet),
		paygate.WithLedger(newFakeLedger()),
	}, opts...)

	return New(paygate.New(testCatalog(t), v, gateOpts...), Config{})
}

func doGet(h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestPurchaseLifecycle(t *testing.T) {
	fl := newFakeLedger()
	srv := newTestServer(t, fl)
	h := srv.Handler()

	asset := usdcDevnet(t)
	receiving := merchantWallet + "/" + asset.Mint
	const proof = "5ujWmrzLT8xTWm3Dbp6ZyoCCKEPQE5qxNhGknAyiBne7wnyzPVDGZTsvvfJqWxCBTGaHCCAA2WVtSehpWDbsKP6b"

	// Without a proof the gate issues a challenge
	rec := doGet(h, "/buy/article", nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var challenge paygate.ChallengeBody
	decodeBody(t, rec, &challenge)
	assert.Equal(t, "article", challenge.Item)
	assert.Equal(t, "0.001", challenge.Pricing.Amount.String())
	assert.Equal(t, "USDC", challenge.Pricing.Currency)
	assert.Equal(t, "solana-devnet", challenge.Pricing.Network)
	assert.Equal(t, paygate.DefaultProofHeader, challenge.PaymentHeader)
	assert.Equal(t, merchantWallet, challenge.PaymentDetails.WalletAddress)
	assert.Equal(t, receiving, challenge.PaymentDetails.ReceivingAccount)
	assert.Equal(t, uint64(1000), challenge.PaymentDetails.AmountBaseUnits)

	// The transaction has not landed on the ledger yet
	rec = doGet(h, "/buy/article", map[string]string{paygate.DefaultProofHeader: proof})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var failure paygate.FailureBody
	decodeBody(t, rec, &failure)
	assert.Equal(t, string(types.ReasonNotFound), failure.Code)
	assert.NotEmpty(t, failure.ActionRequired)
	assert.Contains(t, failure.Details, "explorer_url")
	assert.Equal(t, uint64(1000), failure.PaymentDetails.AmountBaseUnits)

	// The transaction confirms, overpaying slightly
	fl.add(&types.TransactionRecord{
		Signature: proof,
		Slot:      1200,
		HasMeta:   true,
		Transfers: []types.TransferInstruction{{
			Source:      "PayerAccount",
			Destination: receiving,
			Mint:        asset.Mint,
			Amount:      1100,
		}},
	})

	rec = doGet(h, "/buy/article", map[string]string{paygate.DefaultProofHeader: proof})
	require.Equal(t, http.StatusOK, rec.Code)

	var success SuccessBody
	decodeBody(t, rec, &success)
	assert.True(t, success.Success)
	assert.Equal(t, "article", success.Item)
	assert.Equal(t, "0.001", success.Charged.String())
	assert.Equal(t, "USDC", success.Currency)
	assert.Equal(t, "0.0011", success.Verification.AmountReceived.String())
	assert.Equal(t, proof, success.Verification.ProofID)
	assert.NotEmpty(t, success.Verification.VerificationID)
	assert.Equal(t, articleContent, success.Content)

	// The spent proof buys nothing else, not even a different item
	rec = doGet(h, "/buy/report", map[string]string{paygate.DefaultProofHeader: proof})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	decodeBody(t, rec, &failure)
	assert.Equal(t, string(types.ReasonReplay), failure.Code)
}

func TestProofExtraction(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		headers map[string]string
		want    string
	}{
		{
			name:    "proof header",
			target:  "/buy/article",
			headers: map[string]string{"X-Payment-Proof": "sig-from-header"},
			want:    "sig-from-header",
		},
		{
			name:    "authorization payment scheme",
			target:  "/buy/article",
			headers: map[string]string{"Authorization": "Payment sig-from-auth"},
			want:    "sig-from-auth",
		},
		{
			name:   "query parameter",
			target: "/buy/article?payment_proof=sig-from-query",
			want:   "sig-from-query",
		},
		{
			name:    "header wins over query",
			target:  "/buy/article?payment_proof=sig-from-query",
			headers: map[string]string{"X-Payment-Proof": "sig-from-header"},
			want:    "sig-from-header",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &capturingVerifier{}
			srv := newCaptureServer(t, v)

			rec := doGet(srv.Handler(), tc.target, tc.headers)

			assert.Equal(t, http.StatusPaymentRequired, rec.Code)
			require.Len(t, v.proofs, 1)
			assert.Equal(t, tc.want, v.proofs[0])
		})
	}
}

func TestUnrecognizedAuthorizationScheme(t *testing.T) {
	v := &capturingVerifier{}
	srv := newCaptureServer(t, v)

	rec := doGet(srv.Handler(), "/buy/article", map[string]string{"Authorization": "Bearer some-api-token"})

	// A Bearer token is not a payment proof, so the gate challenges
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Empty(t, v.proofs)

	var challenge paygate.ChallengeBody
	decodeBody(t, rec, &challenge)
	assert.Equal(t, "article", challenge.Item)
}

func TestUnknownItem(t *testing.T) {
	srv := newTestServer(t, newFakeLedger())

	rec := doGet(srv.Handler(), "/buy/podcast", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body paygate.NotFoundBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "podcast", body.Item)
	assert.Equal(t, []string{"article", "report"}, body.AvailableItems)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeLedger())

	rec := doGet(srv.Handler(), "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCatalogEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeLedger())

	rec := doGet(srv.Handler(), "/catalog", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body paygate.CatalogBody
	decodeBody(t, rec, &body)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "article", body.Items[0].ID)
	assert.Equal(t, "0.001", body.Items[0].Price.String())

	// The listing never leaks paid content
	assert.NotContains(t, rec.Body.String(), articleContent)
}

func TestPaymentInfoEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeLedger())

	rec := doGet(srv.Handler(), "/payment-info", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body paygate.PaymentInfoBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "solana-devnet", body.Network)
	assert.Equal(t, merchantWallet, body.WalletAddress)
	assert.Equal(t, paygate.DefaultProofHeader, body.ProofHeader)
	require.Len(t, body.Assets, 1)
	assert.Equal(t, "USDC", body.Assets[0].Symbol)
}

func TestMetricsEndpoint(t *testing.T) {
	gate := paygate.New(testCatalog(t), &capturingVerifier{})

	enabled := New(gate, Config{EnableMetrics: true})
	rec := doGet(enabled.Handler(), "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())

	disabled := New(gate, Config{})
	rec = doGet(disabled.Handler(), "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevBypass(t *testing.T) {
	v := &capturingVerifier{}
	srv := newCaptureServer(t, v, paygate.WithDevBypass(true))

	rec := doGet(srv.Handler(), "/buy/article", map[string]string{"X-Payment-Proof": paygate.DevBypassProof})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, v.proofs)

	var success SuccessBody
	decodeBody(t, rec, &success)
	assert.Equal(t, paygate.DevBypassProof, success.Verification.ProofID)
	assert.Equal(t, articleContent, success.Content)
}
