package types

import "fmt"

// Network identifies a supported ledger cluster
type Network string

const (
	NetworkSolanaMainnet Network = "solana-mainnet"
	NetworkSolanaDevnet  Network = "solana-devnet" // testnet
)

// Valid reports whether the network is one paygate can verify against.
func (n Network) Valid() bool {
	return n == NetworkSolanaMainnet || n == NetworkSolanaDevnet
}

// IsTestnet reports whether the network settles test-value assets.
func (n Network) IsTestnet() bool {
	return n == NetworkSolanaDevnet
}

func (n Network) String() string {
	return string(n)
}

// DefaultRPCURL returns the public RPC endpoint for the network. Production
// deployments should point at a dedicated endpoint instead.
func (n Network) DefaultRPCURL() string {
	switch n {
	case NetworkSolanaMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkSolanaDevnet:
		return "https://api.devnet.solana.com"
	default:
		return ""
	}
}

// Asset describes a settlement asset on a specific network
type Asset struct {
	// Symbol is the display symbol items are priced in
	Symbol string `json:"symbol"`

	// Mint is the asset's on-ledger identifier, empty for the native asset
	Mint string `json:"mint,omitempty"`

	// Decimals is the fixed base-unit precision of the asset
	Decimals int `json:"decimals"`
}

// Native reports whether the asset is the network's native token.
func (a Asset) Native() bool {
	return a.Mint == ""
}

// solAsset is the native asset on every cluster
var solAsset = Asset{Symbol: "SOL", Decimals: 9}

// usdcByNetwork maps clusters to their canonical USDC mint
var usdcByNetwork = map[Network]Asset{
	NetworkSolanaMainnet: {
		Symbol:   "USDC",
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
	},
	NetworkSolanaDevnet: {
		Symbol:   "USDC",
		Mint:     "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals: 6,
	},
}

// AssetForCurrency resolves a priced currency symbol to the concrete asset
// on the given network.
func AssetForCurrency(n Network, currency string) (Asset, error) {
	if !n.Valid() {
		return Asset{}, fmt.Errorf("unsupported network: %s", n)
	}

	switch currency {
	case "SOL", "sol":
		return solAsset, nil
	case "USDC", "usdc":
		return usdcByNetwork[n], nil
	default:
		return Asset{}, fmt.Errorf("unsupported currency %q on network %s", currency, n)
	}
}

// ExplorerTxURL returns a block-explorer link for a transaction signature.
func ExplorerTxURL(n Network, signature string) string {
	switch n {
	case NetworkSolanaDevnet:
		return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=devnet", signature)
	default:
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
}
