package scoring

import (
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/config"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// WeightedModel is the baseline model: a weighted sum of five linearly
// normalized factors, with a deterministic probability mapping derived
// from the score and the smart-money factor. Missing factor inputs count
// as zero and mark the score partial.
type WeightedModel struct {
	cfg config.ScoringConfig
}

// NewWeightedModel creates the baseline weighted model.
func NewWeightedModel(cfg config.ScoringConfig) *WeightedModel {
	return &WeightedModel{cfg: cfg}
}

// ID returns the configured model identity.
func (m *WeightedModel) ID() string {
	return m.cfg.ModelID
}

// Score computes the graduation score for a candidate.
func (m *WeightedModel) Score(c domain.Candidate, _ domain.GateResult) (domain.Score, error) {
	f := c.Factors
	w := m.cfg.Weights
	b := m.cfg.Bounds

	factors := []domain.FactorScore{
		factorScore(domain.FactorVolume, w.Volume, b.Volume, f.VolumeUSD),
		factorScore(domain.FactorLiquidity, w.Liquidity, b.Liquidity, f.LiquidityUSD),
		factorScore(domain.FactorHolders, w.Holders, b.Holders, f.HolderQuality),
		factorScore(domain.FactorMomentum, w.Momentum, b.Momentum, f.PriceMomentum),
		factorScore(domain.FactorSmartMoney, w.SmartMoney, b.SmartMoney, f.SmartMoneyPct),
	}

	var total float64
	partial := false
	smartNorm := 0.0
	for _, fs := range factors {
		total += fs.Weighted
		if fs.Missing {
			partial = true
		}
		if fs.Name == domain.FactorSmartMoney {
			smartNorm = fs.Normalized
		}
	}

	value := 100 * total
	return domain.Score{
		Value:   value,
		Partial: partial,
		Factors: factors,
		Probs:   classProbs(value, smartNorm),
		ModelID: m.cfg.ModelID,
	}, nil
}

// factorScore normalizes one raw input into its weighted contribution.
func factorScore(name string, weight float64, bound config.Bound, v *float64) domain.FactorScore {
	fs := domain.FactorScore{Name: name, Weight: weight}
	if v == nil {
		fs.Missing = true
		return fs
	}
	fs.Raw = *v
	fs.Normalized = normalize(bound, *v)
	fs.Weighted = fs.Normalized * weight
	return fs
}

// normalize saturates v linearly into [0,1] between the bound's Lo and Hi.
func normalize(b config.Bound, v float64) float64 {
	if v <= b.Lo {
		return 0
	}
	if v >= b.Hi {
		return 1
	}
	return (v - b.Lo) / (b.Hi - b.Lo)
}

// classProbs maps the score and smart-money participation onto the
// {loser, winner, mega} distribution.
//
// Mass on the positive classes grows linearly with the score from 0.15
// to 0.70; the mega share of that mass grows with smart-money
// participation from 0.05 to 0.20. The vector sums to 1 by construction.
func classProbs(value, smartNorm float64) domain.ClassProbs {
	positive := 0.15 + 0.55*(value/100)
	megaShare := 0.05 + 0.15*smartNorm

	mega := positive * megaShare
	winner := positive - mega
	return domain.ClassProbs{
		Loser:  1 - positive,
		Winner: winner,
		Mega:   mega,
	}
}
