package domain

// Pair is the static configuration of one tradable product.
type Pair struct {
	ProductID          string  // e.g. "BTC-USDC"
	BaselineUSD        float64 // quote amount spent per run before multipliers
	PriceAdjustmentPct float64 // fraction below market for the limit, e.g. 0.05
	PostOnly           bool

	// PriceCeiling skips the pair when the current price is above it. Zero
	// disables the check.
	PriceCeiling float64

	// PriceDecimals is the number of decimals kept when flooring the limit
	// price. Zero gives a whole-unit limit.
	PriceDecimals int32
}

// StrategyParams are the sizing knobs shared read-only by every pair in a run.
type StrategyParams struct {
	Short  Horizon
	Medium Horizon
	Long   Horizon

	LowerPercentile float64
	UpperPercentile float64

	K float64 // trend sensitivity

	MinShrink float64
	MaxBoost  float64

	WindowBoost float64 // applied when the long series sits in the cheap band
	WindowCut   float64 // applied when it sits in the expensive band

	ReserveFraction         float64
	DeepDipReleaseThreshold float64
	ReserveReleaseBoost     float64

	PerRunCapUSD float64
	MinOrderUSD  float64
}
