package domain

// Candidate represents a graduated token launch pushed by a detector.
// Address is the dedup key for the whole admission pipeline.
type Candidate struct {
	Address      string // token mint address (base58)
	Symbol       string // token symbol (may be empty)
	Name         string // token name (may be empty)
	Source       string // detector identity, e.g. "pumpfun_graduation"
	ObservedAt   int64  // detector-side observation timestamp (ms)
	LastPriceUSD float64

	Signals SafetySignals // raw safety signals for gating
	Factors FactorInputs  // raw factor inputs for scoring
}

// SafetySignals carries raw safety signals for gate evaluation.
// Nil means the signal was unavailable; gates fail closed on nil.
type SafetySignals struct {
	Sellable         *bool    // sell path verified by a probe
	AuthorityRevoked *bool    // mint and freeze authority both revoked
	LockerID         string   // LP locker identity (may be empty)
	LockerRep        *float64 // locker reputation score 0..100
	SniperPct        *float64 // supply % held by snipers
	Top10Pct         *float64 // supply % held by top-10 holders
	LPLockDays       *float64 // LP lock duration in days
	CreatorAgeDays   *float64 // creator wallet age in days
	CreatorRugCount  *int     // prior rugs attributed to the creator wallet
}

// FactorInputs carries raw scoring factor inputs.
// Nil means unavailable; scoring treats nil as zero and marks the score partial.
type FactorInputs struct {
	VolumeUSD     *float64 // trailing volume since graduation
	LiquidityUSD  *float64 // pool liquidity
	HolderQuality *float64 // holder distribution quality 0..1
	PriceMomentum *float64 // short-window price change fraction
	SmartMoneyPct *float64 // supply % held by tracked smart wallets
}
