package paygate

import (
	"github.com/vitwit/paygate/ledger"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/types"
)

type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

// WithMetrics sets the gate's metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gate) {
		g.rec = r
	}
}

// WithNetwork sets the settlement network shown in challenges.
func WithNetwork(n types.Network) Option {
	return func(g *Gate) {
		g.network = n
	}
}

// WithWallet sets the merchant wallet payment details derive from. Without
// it the gate still serves challenges, marked payment-details-unavailable.
func WithWallet(address string) Option {
	return func(g *Gate) {
		g.wallet = address
	}
}

// WithLedger provides the ledger client used to derive receiving accounts
// for challenge bodies.
func WithLedger(c ledger.Client) Option {
	return func(g *Gate) {
		g.ledger = c
	}
}

// WithDevBypass enables the development bypass sentinel. Never enable it
// in production.
func WithDevBypass(enabled bool) Option {
	return func(g *Gate) {
		g.devBypass = enabled
	}
}

// WithProofHeader overrides the header name challenges advertise.
func WithProofHeader(name string) Option {
	return func(g *Gate) {
		if name != "" {
			g.proofHeader = name
		}
	}
}
