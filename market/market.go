// Package market holds the governance-configured, per-market and per-asset
// parameters the rest of the engine treats as read-mostly configuration.
package market

import (
	"fmt"
	"math/big"
)

// ID is the fixed 10-byte market tag, e.g. "ETH-USD\0\0\0".
type ID [10]byte

// NewID pads or truncates name into a 10-byte market tag.
func NewID(name string) ID {
	var id ID
	copy(id[:], name)
	return id
}

func (id ID) String() string {
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	return string(id[:n])
}

// AssetID identifies a collateral asset. AssetNative is the sentinel for the
// chain-native coin.
type AssetID string

// AssetNative is the reserved asset id ("A0") denoting the chain-native coin,
// used wherever the spec requires combining execution-fee transfers with the
// asset transfer itself.
const AssetNative AssetID = "A0"

// OrderKind enumerates the trigger discipline of an order.
type OrderKind uint8

const (
	KindMarket OrderKind = iota
	KindLimit
	KindStop
	KindTrailingStop
)

func (k OrderKind) Valid() bool { return k <= KindTrailingStop }

// Market captures the immutable-per-id (except via governance) parameters of
// a tradable pair.
type Market struct {
	ID                     ID
	Name                   string
	Category               string
	ReferenceFeedID        string
	OracleFeedID           string
	MaxLeverage            uint64
	MaxDeviationBps        uint64
	FeeBps                 uint64
	LiqThresholdBps        uint64
	FundingFactorBps       uint64
	MinOrderAgeSeconds     int64
	OracleMaxAgeSeconds    int64
	IsReduceOnly           bool
	PriceConfThresholdBps  uint64
	PriceConfMultiplierBps uint64
}

// Clone returns a value copy; Market has no pointer/slice fields, so this
// exists for symmetry with the rest of the engine's Clone convention.
func (m Market) Clone() Market { return m }

// Asset captures per-collateral-asset configuration.
type Asset struct {
	ID              AssetID
	Decimals        uint8
	MinSize         string // decimal string parsed by callers into *big.Int
	ReferenceFeedID string
}

func (a Asset) Clone() Asset { return a }

// MinSizeInt parses the asset's decimal-string minimum size into a *big.Int,
// defaulting to zero for an empty or malformed string.
func (a Asset) MinSizeInt() *big.Int {
	if a.MinSize == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(a.MinSize, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// Configuration bounds from the external interface table. Governance setters
// validate against these before accepting a change.
const (
	MaxFeeBps             = 1000
	MaxDeviationBpsCeil   = 1000
	MaxLiqThresholdBps    = 9800
	MaxMinOrderAgeSeconds = 30
	MinOracleMaxAge       = 3
)

// ErrInvalidInput is returned by governance setters when a proposed value
// violates a configuration bound.
type ErrInvalidInput struct {
	Field string
	Value any
	Bound string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("market: invalid %s=%v, must satisfy %s", e.Field, e.Value, e.Bound)
}

// Validate checks the market's fields against the configuration bounds table
// in the external interfaces section.
func (m Market) Validate() error {
	if m.MaxLeverage < 1 {
		return &ErrInvalidInput{"max_leverage", m.MaxLeverage, "max_leverage >= 1"}
	}
	if m.MaxDeviationBps > MaxDeviationBpsCeil {
		return &ErrInvalidInput{"max_deviation_bps", m.MaxDeviationBps, "<= 1000"}
	}
	if m.FeeBps > MaxFeeBps {
		return &ErrInvalidInput{"fee_bps", m.FeeBps, "<= 1000"}
	}
	if m.LiqThresholdBps > MaxLiqThresholdBps {
		return &ErrInvalidInput{"liq_threshold_bps", m.LiqThresholdBps, "<= 9800"}
	}
	if m.MinOrderAgeSeconds > MaxMinOrderAgeSeconds || m.MinOrderAgeSeconds < 0 {
		return &ErrInvalidInput{"min_order_age_s", m.MinOrderAgeSeconds, "<= 30"}
	}
	if m.OracleMaxAgeSeconds < MinOracleMaxAge {
		return &ErrInvalidInput{"oracle_max_age_s", m.OracleMaxAgeSeconds, ">= 3"}
	}
	return nil
}

// Registry stores Market and Asset configuration, exposing governance
// setters that validate against the configuration bounds before accepting a
// change. It is the home for the spec's "set_market" / "set_asset" governance
// commands.
type Registry struct {
	markets map[ID]Market
	assets  map[AssetID]Asset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[ID]Market), assets: make(map[AssetID]Asset)}
}

// Market returns the market for id and whether it is configured.
func (r *Registry) Market(id ID) (Market, bool) {
	m, ok := r.markets[id]
	return m, ok
}

// Asset returns the asset for id and whether it is configured.
func (r *Registry) Asset(id AssetID) (Asset, bool) {
	a, ok := r.assets[id]
	return a, ok
}

// SetMarket validates and installs or updates a market. This is the
// governance entry point named "set_market" in the command table.
func (r *Registry) SetMarket(m Market) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.markets[m.ID] = m
	return nil
}

// SetAsset installs or updates an asset's configuration ("set_asset").
func (r *Registry) SetAsset(a Asset) error {
	if a.ID == "" {
		return &ErrInvalidInput{"id", a.ID, "non-empty"}
	}
	r.assets[a.ID] = a
	return nil
}
