package sizing

import (
	"fmt"
	"math"
	"sync"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/config"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
)

// Sizer turns a validated score into a position notional using a damped
// fractional Kelly under hard caps. Size is a pure function of the score,
// the sizing config, and a ledger snapshot; it never mutates the ledger.
type Sizer struct {
	mu            sync.RWMutex
	kellyFraction float64
	perTradeCap   float64
	minNotional   float64
	payoffWinner  float64
	payoffMega    float64
	configRev     string
}

// New creates a Sizer from the sizing config.
func New(cfg config.SizingConfig) *Sizer {
	return &Sizer{
		kellyFraction: cfg.KellyFraction,
		perTradeCap:   cfg.PerTradeCap,
		minNotional:   cfg.MinNotionalUSD,
		payoffWinner:  cfg.PayoffWinner,
		payoffMega:    cfg.PayoffMega,
		configRev:     cfg.ConfigRev,
	}
}

// Size computes the sizing decision for a scored candidate.
//
// f* = (p_win*b - p_lose) / b, damped by the Kelly fraction, then
// clamped by the per-trade cap, the remaining exposure budget, and the
// remaining slot count. A non-positive result at any stage is a SKIP,
// never an error.
func (s *Sizer) Size(score domain.Score, snap ledger.Snapshot) domain.SizingDecision {
	s.mu.RLock()
	kellyFraction := s.kellyFraction
	perTradeCap := s.perTradeCap
	minNotional := s.minNotional
	payoffWinner := s.payoffWinner
	payoffMega := s.payoffMega
	configRev := s.configRev
	s.mu.RUnlock()

	dec := domain.SizingDecision{ConfigRev: configRev}
	skip := func(reason string) domain.SizingDecision {
		dec.Skip = true
		dec.Reason = reason
		return dec
	}

	pWin := score.Probs.Winner + score.Probs.Mega
	pLose := score.Probs.Loser
	if pWin <= 0 {
		return skip(domain.SkipNonPositiveKelly)
	}

	// Payoff ratio b: probability-weighted expected return of the
	// winning classes, from versioned config.
	b := (score.Probs.Winner*payoffWinner + score.Probs.Mega*payoffMega) / pWin
	if b <= 0 {
		return skip(domain.SkipNonPositiveKelly)
	}

	dec.KellyRaw = (pWin*b - pLose) / b
	if dec.KellyRaw <= 0 {
		return skip(domain.SkipNonPositiveKelly)
	}
	dec.KellyDamped = dec.KellyRaw * kellyFraction

	if snap.SlotsUsed() >= snap.MaxConcurrent {
		return skip(domain.SkipNoSlots)
	}
	if snap.EquityUSD <= 0 {
		return skip(domain.SkipNoExposureBudget)
	}

	fraction := dec.KellyDamped
	if fraction > perTradeCap {
		fraction = perTradeCap
		dec.Clamp = domain.ClampPerTrade
	}

	budgetFrac := snap.AvailableUSD / snap.EquityUSD
	if budgetFrac <= 0 {
		return skip(domain.SkipNoExposureBudget)
	}
	if fraction > budgetFrac {
		fraction = budgetFrac
		dec.Clamp = domain.ClampExposure
	}

	notional := roundCents(fraction * snap.EquityUSD)
	if notional < minNotional {
		return skip(domain.SkipBelowMinNotional)
	}

	dec.Fraction = fraction
	dec.NotionalUSD = notional
	return dec
}

// PerTradeCap returns the current per-trade cap fraction.
func (s *Sizer) PerTradeCap() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perTradeCap
}

// SetPerTradeCap updates the per-trade cap fraction at runtime.
func (s *Sizer) SetPerTradeCap(frac float64) error {
	if frac <= 0 || frac >= 1 {
		return fmt.Errorf("per-trade cap must be in (0,1), got %g", frac)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perTradeCap = frac
	return nil
}

// ConfigRev returns the sizing config revision tag.
func (s *Sizer) ConfigRev() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configRev
}

func roundCents(usd float64) float64 {
	return math.Round(usd*100) / 100
}
