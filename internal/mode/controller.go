package mode

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
)

// ErrLiveLocked is returned when entering LIVE while the daily loss cap
// latch is engaged. Cleared by an explicit override or the next UTC day.
var ErrLiveLocked = errors.New("LIVE entry locked by daily loss cap")

// Transition is one mode change, reported through the OnTransition hook
// so the engine can journal and notify it.
type Transition struct {
	From  domain.Mode
	To    domain.Mode
	Cause string // admin | admin_override | kill | kill_expired | loss_cap
	By    string // actor for admin-driven changes, empty for automatic
	At    time.Time
}

// Status is a point-in-time controller summary.
type Status struct {
	Mode        domain.Mode `json:"mode"`
	Killed      bool        `json:"killed"`
	KilledUntil time.Time   `json:"killed_until,omitempty"`
	PriorMode   domain.Mode `json:"prior_mode,omitempty"`
	Locked      bool        `json:"locked"`
	LockedDay   string      `json:"locked_day,omitempty"`
}

// Options contains configuration for creating a Controller.
type Options struct {
	Initial         domain.Mode
	KillDuration    time.Duration // ALERTS_ONLY window after a kill
	DailyLossCapPct float64       // negative fraction, e.g. -0.02
	Clock           func() time.Time
	// OnTransition runs synchronously under the controller lock and
	// must not call back into the controller.
	OnTransition func(Transition)
}

// Controller owns the PAPER/LIVE/ALERTS_ONLY state machine, the kill
// switch window, and the daily loss-cap latch. All transitions flow
// through one place and fire the transition hook.
type Controller struct {
	mu           sync.Mutex
	mode         domain.Mode
	killDuration time.Duration
	lossCapPct   float64
	killedUntil  time.Time // zero when no kill window is active
	preKill      domain.Mode
	locked       bool   // loss-cap latch
	lockedDay    string // UTC day the latch engaged
	clock        func() time.Time
	onTransition func(Transition)
}

// New creates a Controller.
func New(opts Options) *Controller {
	if !opts.Initial.IsValid() {
		opts.Initial = domain.ModePaper
	}
	if opts.KillDuration <= 0 {
		opts.KillDuration = 2 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Controller{
		mode:         opts.Initial,
		killDuration: opts.KillDuration,
		lossCapPct:   opts.DailyLossCapPct,
		clock:        opts.Clock,
		onTransition: opts.OnTransition,
	}
}

// Mode returns the current mode, resolving an expired kill window first.
func (c *Controller) Mode() domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveKillLocked(c.clock())
	return c.mode
}

// Set transitions to the target mode on an admin's behalf. Entering LIVE
// while the loss-cap latch is engaged fails; use Override for that. A
// manual transition cancels any active kill window.
func (c *Controller) Set(target domain.Mode, by string) error {
	return c.set(target, by, false)
}

// Override is Set with the loss-cap latch cleared first. Backs the
// explicit admin override the latch demands.
func (c *Controller) Override(target domain.Mode, by string) error {
	return c.set(target, by, true)
}

func (c *Controller) set(target domain.Mode, by string, override bool) error {
	if !target.IsValid() {
		return fmt.Errorf("unknown mode %q", target)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	c.resolveKillLocked(now)

	if target == domain.ModeLive && c.locked && !override {
		return ErrLiveLocked
	}
	if override {
		c.locked = false
		c.lockedDay = ""
	}
	if target == c.mode {
		c.killedUntil = time.Time{}
		return nil
	}

	cause := "admin"
	if override {
		cause = "admin_override"
	}
	c.killedUntil = time.Time{}
	c.transitionLocked(target, cause, by, now)
	return nil
}

// Kill latches ALERTS_ONLY for the kill duration. The prior mode is
// restored automatically when the window elapses. Repeated kills extend
// the window from now.
func (c *Controller) Kill(by string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	c.resolveKillLocked(now)

	if c.killedUntil.IsZero() {
		c.preKill = c.mode
	}
	c.killedUntil = now.Add(c.killDuration)
	if c.mode != domain.ModeAlertsOnly {
		c.transitionLocked(domain.ModeAlertsOnly, "kill", by, now)
	}
	return c.killedUntil
}

// Tick resolves the kill window and evaluates the loss cap against a
// fresh ledger snapshot. Called by the engine guard loop and after every
// position close.
func (c *Controller) Tick(now time.Time, snap ledger.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveKillLocked(now)

	if c.mode != domain.ModeLive || c.locked {
		return
	}
	if snap.EquityUSD <= 0 {
		return
	}
	if snap.RealizedTodayUSD/snap.EquityUSD <= c.lossCapPct {
		c.locked = true
		c.lockedDay = snap.Day
		c.transitionLocked(domain.ModePaper, "loss_cap", "", now)
	}
}

// UnlockDaily releases the loss-cap latch at the UTC day rollover.
// Returns true if a latch was released; the mode itself stays PAPER
// until an admin re-enters LIVE.
func (c *Controller) UnlockDaily() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.locked {
		return false
	}
	c.locked = false
	c.lockedDay = ""
	return true
}

// Locked reports whether the loss-cap latch is engaged.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Status returns a point-in-time summary.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveKillLocked(c.clock())

	s := Status{
		Mode:      c.mode,
		Locked:    c.locked,
		LockedDay: c.lockedDay,
	}
	if !c.killedUntil.IsZero() {
		s.Killed = true
		s.KilledUntil = c.killedUntil
		s.PriorMode = c.preKill
	}
	return s
}

// resolveKillLocked restores the pre-kill mode once the window elapses.
func (c *Controller) resolveKillLocked(now time.Time) {
	if c.killedUntil.IsZero() || now.Before(c.killedUntil) {
		return
	}
	c.killedUntil = time.Time{}
	if c.mode != c.preKill {
		c.transitionLocked(c.preKill, "kill_expired", "", now)
	}
}

func (c *Controller) transitionLocked(to domain.Mode, cause, by string, at time.Time) {
	tr := Transition{From: c.mode, To: to, Cause: cause, By: by, At: at}
	c.mode = to
	if c.onTransition != nil {
		c.onTransition(tr)
	}
}
