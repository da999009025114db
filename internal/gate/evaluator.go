package gate

import (
	"fmt"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/config"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// actualUnavailable marks a check whose signal was missing. Missing data
// fails closed: the check cannot pass without an observed value.
const actualUnavailable = "unavailable"

// Evaluator runs the named safety checks for a candidate.
// Every check is always evaluated so the full vector gets journaled.
type Evaluator struct {
	cfg config.GatesConfig
}

// NewEvaluator creates a gate evaluator with the given thresholds.
func NewEvaluator(cfg config.GatesConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate produces the gate vector for a candidate.
// The candidate passes only if every check passed.
func (e *Evaluator) Evaluate(c domain.Candidate) domain.GateResult {
	s := c.Signals
	checks := make([]domain.CheckResult, 6)

	checks[0] = boolCheck(domain.CheckSellable, s.Sellable)
	checks[1] = boolCheck(domain.CheckAuthority, s.AuthorityRevoked)
	checks[2] = minCheck(domain.CheckLockerRep, e.cfg.LockerRepMin, s.LockerRep)
	checks[3] = maxCheck(domain.CheckSniperPct, e.cfg.SniperPctMax, s.SniperPct)
	checks[4] = maxCheck(domain.CheckTop10Pct, e.cfg.Top10PctMax, s.Top10Pct)
	checks[5] = minCheck(domain.CheckLPLockDays, e.cfg.LPLockMinDays, s.LPLockDays)

	result := domain.GateResult{
		Checks:      checks,
		Passed:      true,
		EvaluatedAt: time.Now().UnixMilli(),
	}
	for _, check := range checks {
		if !check.Passed {
			result.Passed = false
			result.FailedCheck = check.Name
			break
		}
	}
	return result
}

// boolCheck requires the signal to be present and true.
func boolCheck(name string, v *bool) domain.CheckResult {
	r := domain.CheckResult{
		Name:      name,
		Threshold: "true",
		Actual:    actualUnavailable,
	}
	if v != nil {
		r.Actual = fmt.Sprintf("%t", *v)
		r.Passed = *v
	}
	return r
}

// minCheck requires the signal to be present and >= bound.
func minCheck(name string, bound float64, v *float64) domain.CheckResult {
	r := domain.CheckResult{
		Name:      name,
		Threshold: fmt.Sprintf(">= %g", bound),
		Actual:    actualUnavailable,
	}
	if v != nil {
		r.Actual = fmt.Sprintf("%.2f", *v)
		r.Passed = *v >= bound
	}
	return r
}

// maxCheck requires the signal to be present and <= bound.
func maxCheck(name string, bound float64, v *float64) domain.CheckResult {
	r := domain.CheckResult{
		Name:      name,
		Threshold: fmt.Sprintf("<= %g", bound),
		Actual:    actualUnavailable,
	}
	if v != nil {
		r.Actual = fmt.Sprintf("%.2f", *v)
		r.Passed = *v <= bound
	}
	return r
}
