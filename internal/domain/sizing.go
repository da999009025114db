package domain

// Sizing skip reason codes.
const (
	SkipNonPositiveKelly = "non_positive_kelly"
	SkipNoSlots          = "no_slots"
	SkipNoExposureBudget = "no_exposure_budget"
	SkipBelowMinNotional = "below_min_notional"
	SkipBelowMinScore    = "below_min_score"
	SkipModelInvalid     = "model_output_invalid"
)

// Clamp codes identifying which constraint bounded the sized fraction.
const (
	ClampPerTrade = "per_trade_cap"
	ClampExposure = "exposure_budget"
)

// SizingDecision is the sizing output for one candidate. Either Skip is
// true with a Reason, or NotionalUSD is a positive clamped notional.
type SizingDecision struct {
	Skip        bool
	Reason      string  // skip reason code, empty when sized
	NotionalUSD float64 // final notional, 0 when Skip

	// Audit trail of the formula
	KellyRaw    float64 // (p_win*b - p_lose) / b
	KellyDamped float64 // KellyRaw * kelly_fraction
	Fraction    float64 // final fraction of equity after clamps
	Clamp       string  // binding clamp code, empty if the damped Kelly was binding

	ConfigRev string // sizing config revision in effect (payoff source)
}
