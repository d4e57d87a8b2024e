package market

import "math/big"

// Config is the toml-loadable bootstrap configuration for markets and
// assets, read once at startup and applied to a Registry via Apply.
type Config struct {
	Markets []MarketConfig `toml:"markets"`
	Assets  []AssetConfig  `toml:"assets"`
}

// MarketConfig mirrors Market with string-friendly fields for toml decoding.
type MarketConfig struct {
	Name                   string `toml:"name"`
	Category               string `toml:"category"`
	ReferenceFeedID        string `toml:"reference_feed_id"`
	OracleFeedID           string `toml:"oracle_feed_id"`
	MaxLeverage            uint64 `toml:"max_leverage"`
	MaxDeviationBps        uint64 `toml:"max_deviation_bps"`
	FeeBps                 uint64 `toml:"fee_bps"`
	LiqThresholdBps        uint64 `toml:"liq_threshold_bps"`
	FundingFactorBps       uint64 `toml:"funding_factor_bps"`
	MinOrderAgeSeconds     int64  `toml:"min_order_age_s"`
	OracleMaxAgeSeconds    int64  `toml:"oracle_max_age_s"`
	IsReduceOnly           bool   `toml:"is_reduce_only"`
	PriceConfThresholdBps  uint64 `toml:"price_conf_threshold_bps"`
	PriceConfMultiplierBps uint64 `toml:"price_conf_multiplier_bps"`
}

// AssetConfig mirrors Asset for toml decoding.
type AssetConfig struct {
	ID              string   `toml:"id"`
	Decimals        uint8    `toml:"decimals"`
	MinSize         *big.Int `toml:"min_size"`
	ReferenceFeedID string   `toml:"reference_feed_id"`
}

// EnsureDefaults backfills nil big.Int fields so a partially specified config
// file does not produce a nil pointer deep inside the registry.
func (c *Config) EnsureDefaults() {
	for i := range c.Assets {
		if c.Assets[i].MinSize == nil {
			c.Assets[i].MinSize = big.NewInt(0)
		}
	}
}

// Apply installs every configured market and asset into r, returning the
// first validation failure encountered.
func (c *Config) Apply(r *Registry) error {
	for _, mc := range c.Markets {
		m := Market{
			ID:                     NewID(mc.Name),
			Name:                   mc.Name,
			Category:               mc.Category,
			ReferenceFeedID:        mc.ReferenceFeedID,
			OracleFeedID:           mc.OracleFeedID,
			MaxLeverage:            mc.MaxLeverage,
			MaxDeviationBps:        mc.MaxDeviationBps,
			FeeBps:                 mc.FeeBps,
			LiqThresholdBps:        mc.LiqThresholdBps,
			FundingFactorBps:       mc.FundingFactorBps,
			MinOrderAgeSeconds:     mc.MinOrderAgeSeconds,
			OracleMaxAgeSeconds:    mc.OracleMaxAgeSeconds,
			IsReduceOnly:           mc.IsReduceOnly,
			PriceConfThresholdBps:  mc.PriceConfThresholdBps,
			PriceConfMultiplierBps: mc.PriceConfMultiplierBps,
		}
		if err := r.SetMarket(m); err != nil {
			return err
		}
	}
	for _, ac := range c.Assets {
		a := Asset{
			ID:              AssetID(ac.ID),
			Decimals:        ac.Decimals,
			ReferenceFeedID: ac.ReferenceFeedID,
		}
		if ac.MinSize != nil {
			a.MinSize = ac.MinSize.String()
		}
		if err := r.SetAsset(a); err != nil {
			return err
		}
	}
	return nil
}
