package domain

// Gate check names. Every GateResult contains exactly these checks, in order.
const (
	CheckSellable   = "sellable"
	CheckAuthority  = "authority"
	CheckLockerRep  = "locker_rep"
	CheckSniperPct  = "sniper_pct"
	CheckTop10Pct   = "top10_pct"
	CheckLPLockDays = "lp_lock_days"
)

// CheckResult is the outcome of a single named safety check.
type CheckResult struct {
	Name      string // check identifier
	Threshold string // configured bound, human-readable
	Actual    string // observed value, "unavailable" when the signal was nil
	Passed    bool
}

// GateResult is the full gate vector for one candidate.
// A candidate passes only if every check passed; unavailable data fails closed.
type GateResult struct {
	Checks      []CheckResult // ordered, always the full set
	Passed      bool          // conjunction of all checks
	FailedCheck string        // name of the first failing check, empty if passed
	EvaluatedAt int64         // evaluation timestamp (ms)
}
