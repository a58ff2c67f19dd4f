// Command paygate serves a paid item catalog behind an HTTP 402 gate.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	paygate "github.com/vitwit/paygate"
	"github.com/vitwit/paygate/catalog"
	"github.com/vitwit/paygate/config"
	"github.com/vitwit/paygate/ledger"
	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
	"github.com/vitwit/paygate/server"
	"github.com/vitwit/paygate/store"
	"github.com/vitwit/paygate/types"
	"github.com/vitwit/paygate/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "paygate:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var log logger.Logger
	if cfg.Production {
		log = logger.NewZapLogger(cfg.LogLevel)
	} else {
		log = logger.NewDevelopmentLogger(cfg.LogLevel)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if err := catalog.ValidateForNetwork(cat, cfg.LedgerNetwork()); err != nil {
		return err
	}

	ledgerClient, err := ledger.NewSolanaClient(cfg.LedgerNetwork(), cfg.RPCURL)
	if err != nil {
		return err
	}
	defer ledgerClient.Close()

	checkAssets(cat, cfg.LedgerNetwork(), ledgerClient, log)

	proofs, err := newProofStore(cfg)
	if err != nil {
		return err
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		rec = metrics.NewPrometheusRecorder()
	}

	verifier := verify.NewService(ledgerClient, proofs, verify.Config{
		Wallet:  cfg.WalletAddress,
		Network: cfg.LedgerNetwork(),
		Timeout: cfg.LedgerTimeout,
		Logger:  log,
		Metrics: rec,
	})

	gate := paygate.New(cat, verifier,
		paygate.WithWallet(cfg.WalletAddress),
		paygate.WithNetwork(cfg.LedgerNetwork()),
		paygate.WithLedger(ledgerClient),
		paygate.WithLogger(log),
		paygate.WithMetrics(rec),
		paygate.WithDevBypass(cfg.BypassEnabled()),
	)

	if cfg.WalletAddress == "" {
		log.Warn("no wallet configured, items are listed but cannot be bought", nil)
	}
	if cfg.BypassEnabled() {
		log.Warn("development bypass proof is enabled", nil)
	}
	if cfg.Production && cfg.ProofStore == "memory" {
		log.Warn("memory proof store forgets consumed proofs on restart, use redis in production", nil)
	}

	srv := server.New(gate, server.Config{
		EnableMetrics: cfg.EnableMetrics,
		Logger:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	log.Info("gateway listening", map[string]any{
		"addr":        cfg.ListenAddr,
		"network":     cfg.Network,
		"items":       len(cat.IDs()),
		"proof_store": cfg.ProofStore,
		"production":  cfg.Production,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newProofStore builds the configured replay store.
func newProofStore(cfg config.Config) (store.ProofStore, error) {
	switch cfg.ProofStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedisStore(client), nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// checkAssets confirms on chain that every catalog currency uses the
// decimals the gateway assumes. The ledger may be unreachable at boot,
// so a failed check only warns.
func checkAssets(cat catalog.Catalog, network types.Network, client *ledger.SolanaClient, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := map[string]bool{}
	for _, id := range cat.IDs() {
		item, ok := cat.Lookup(id)
		if !ok {
			continue
		}
		asset, err := types.AssetForCurrency(network, item.Currency)
		if err != nil || asset.Native() || seen[asset.Symbol] {
			continue
		}
		seen[asset.Symbol] = true

		if err := client.VerifyAssetDecimals(ctx, asset); err != nil {
			log.Warn("asset check failed", map[string]any{
				"asset": asset.Symbol,
				"mint":  asset.Mint,
				"error": err.Error(),
			})
		}
	}
}
