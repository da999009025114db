package domain

// Scoring factor names.
const (
	FactorVolume     = "volume"
	FactorLiquidity  = "liquidity"
	FactorHolders    = "holder_quality"
	FactorMomentum   = "momentum"
	FactorSmartMoney = "smart_money"
)

// ProbSumTolerance is the allowed deviation of a class probability vector from 1.
const ProbSumTolerance = 1e-6

// ClassProbs is the predicted outcome distribution for a candidate.
// Must sum to 1 within ProbSumTolerance.
type ClassProbs struct {
	Loser  float64 // graduation fails to hold, price dies
	Winner float64 // moderate sustained run
	Mega   float64 // outsized run
}

// Sum returns the total probability mass.
func (p ClassProbs) Sum() float64 {
	return p.Loser + p.Winner + p.Mega
}

// Valid reports whether the vector is a probability distribution
// within ProbSumTolerance.
func (p ClassProbs) Valid() bool {
	if p.Loser < 0 || p.Winner < 0 || p.Mega < 0 {
		return false
	}
	diff := p.Sum() - 1
	if diff < 0 {
		diff = -diff
	}
	return diff <= ProbSumTolerance
}

// FactorScore is one factor's contribution to the graduation score.
type FactorScore struct {
	Name       string
	Raw        float64 // input value, 0 when missing
	Normalized float64 // saturated to [0,1]
	Weight     float64
	Weighted   float64 // normalized * weight
	Missing    bool    // input was unavailable
}

// Score is the scoring output for a candidate: a graduation score in
// [0,100] plus the class probability vector.
type Score struct {
	Value   float64       // graduation score 0..100
	Partial bool          // at least one factor input was unavailable
	Factors []FactorScore // full breakdown, always every factor
	Probs   ClassProbs
	ModelID string // versioned identity of the producing model
}
