package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// WalletMode distinguishes single-wallet and dual-wallet dashboards.
type WalletMode int

const (
	SingleWallet WalletMode = iota
	DualWallet
)

// DashboardConfig is the persisted per-dashboard configuration.
//
// Current schema keeps the primary address in Wallet. Dual-wallet dashboards
// (and entries written by older versions) carry the full list in Wallets;
// legacy entries lacking Wallet are migrated on load by taking Wallets[0].
type DashboardConfig struct {
	Wallet        string   `json:"wallet,omitempty"`
	Wallets       []string `json:"wallets,omitempty"`
	VolumeStartTS int64    `json:"volume_start_ts"`
	StartTotal    float64  `json:"start_total"`
}

// Mode reports whether the dashboard tracks one or two wallets.
func (c DashboardConfig) Mode() WalletMode {
	if len(c.Wallets) >= 2 {
		return DualWallet
	}
	return SingleWallet
}

// TrackedWallets returns the wallet addresses this dashboard polls.
func (c DashboardConfig) TrackedWallets() []string {
	if len(c.Wallets) >= 2 {
		return c.Wallets
	}
	if c.Wallet != "" {
		return []string{c.Wallet}
	}
	return c.Wallets
}

// DisplayAddress renders an EVM address in checksummed form for logs and API
// responses. Addresses stay opaque to the rest of the system: anything that is
// not a hex address is returned unchanged, never rejected.
func DisplayAddress(wallet string) string {
	if common.IsHexAddress(wallet) {
		return common.HexToAddress(wallet).Hex()
	}
	return wallet
}
