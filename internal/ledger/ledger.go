package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger errors.
var (
	// ErrExposureExceeded is returned when a reservation would push open
	// exposure above the global cap.
	ErrExposureExceeded = errors.New("exposure cap exceeded")

	// ErrSlotsExhausted is returned when all concurrent position slots
	// are taken.
	ErrSlotsExhausted = errors.New("concurrent position slots exhausted")

	// ErrDuplicateID is returned when a position id is already reserved.
	ErrDuplicateID = errors.New("position already reserved")

	// ErrHalted is returned by Reserve after an invariant violation
	// halted the ledger. Admission fails closed until restart.
	ErrHalted = errors.New("ledger halted")

	// ErrInvalidAmount is returned for non-positive amounts or empty ids.
	ErrInvalidAmount = errors.New("invalid reservation")

	// ErrInvariant is returned when accounting state is corrupt. The
	// ledger halts itself when this happens; it should be unreachable.
	ErrInvariant = errors.New("ledger invariant violation")
)

type reservation struct {
	amount    decimal.Decimal
	committed bool
}

// Options contains configuration for creating a Ledger.
type Options struct {
	EquityUSD       float64
	ExposureCapFrac float64          // global cap as a fraction of equity
	MaxConcurrent   int              // open + reserved position slots
	Clock           func() time.Time // defaults to time.Now
	HaltHook        func(reason string)
}

// Ledger is the single serialization point for risk accounting: exposure
// reservations, open slots, equity, and realized daily PnL. Every method
// is atomic under one mutex; monetary arithmetic is decimal so cap
// comparisons are exact.
type Ledger struct {
	mu            sync.Mutex
	equity        decimal.Decimal
	capFrac       decimal.Decimal
	maxConcurrent int
	reservations  map[string]*reservation
	realizedToday decimal.Decimal
	day           string // UTC date of the current accounting day
	halted        bool
	haltReason    string
	clock         func() time.Time
	haltHook      func(reason string)
}

// Snapshot is a consistent point-in-time view of the ledger.
type Snapshot struct {
	EquityUSD        float64 `json:"equity_usd"`
	ExposureCapUSD   float64 `json:"exposure_cap_usd"`
	UsedUSD          float64 `json:"used_usd"`
	AvailableUSD     float64 `json:"available_usd"`
	OpenCount        int     `json:"open_count"`     // committed reservations
	ReservedCount    int     `json:"reserved_count"` // not yet committed
	MaxConcurrent    int     `json:"max_concurrent"`
	RealizedTodayUSD float64 `json:"realized_today_usd"`
	Day              string  `json:"day"`
	Halted           bool    `json:"halted"`
}

// SlotsUsed returns open plus pending reservations.
func (s Snapshot) SlotsUsed() int {
	return s.OpenCount + s.ReservedCount
}

// New creates a Ledger.
func New(opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Ledger{
		equity:        decimal.NewFromFloat(opts.EquityUSD),
		capFrac:       decimal.NewFromFloat(opts.ExposureCapFrac),
		maxConcurrent: opts.MaxConcurrent,
		reservations:  make(map[string]*reservation),
		day:           dayOf(opts.Clock()),
		clock:         opts.Clock,
		haltHook:      opts.HaltHook,
	}
}

// Reserve atomically claims exposure and a slot for a position. Checks
// and mutation happen under one lock so concurrent reservations can
// never jointly exceed the caps.
func (l *Ledger) Reserve(positionID string, usd float64) error {
	if positionID == "" || usd <= 0 {
		return ErrInvalidAmount
	}
	amount := decimal.NewFromFloat(usd)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return ErrHalted
	}
	if _, exists := l.reservations[positionID]; exists {
		return ErrDuplicateID
	}
	if len(l.reservations) >= l.maxConcurrent {
		return ErrSlotsExhausted
	}
	if l.usedLocked().Add(amount).GreaterThan(l.capLocked()) {
		return ErrExposureExceeded
	}

	l.reservations[positionID] = &reservation{amount: amount}
	return nil
}

// Commit marks a reserved position as open. Idempotent for already
// committed positions. Committing an unknown id means accounting state
// is corrupt: the ledger halts and admission fails closed.
func (l *Ledger) Commit(positionID string) error {
	l.mu.Lock()
	r, ok := l.reservations[positionID]
	if !ok {
		reason := fmt.Sprintf("commit of unknown position %s", positionID)
		l.haltLocked(reason)
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvariant, reason)
	}
	r.committed = true
	l.mu.Unlock()
	return nil
}

// Release drops a reservation after a failed execution. Idempotent:
// releasing an unknown id is a no-op.
func (l *Ledger) Release(positionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.reservations, positionID)
	return nil
}

// Close settles a committed position: frees its exposure and slot and
// applies realized PnL to the day's total and to equity. Idempotent:
// closing an unknown id is a no-op. Closing an uncommitted reservation
// means accounting state is corrupt and halts the ledger.
func (l *Ledger) Close(positionID string, realizedPnLUSD float64) error {
	l.mu.Lock()
	r, ok := l.reservations[positionID]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	if !r.committed {
		reason := fmt.Sprintf("close of uncommitted position %s", positionID)
		l.haltLocked(reason)
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvariant, reason)
	}

	delete(l.reservations, positionID)
	pnl := decimal.NewFromFloat(realizedPnLUSD)
	l.realizedToday = l.realizedToday.Add(pnl)
	l.equity = l.equity.Add(pnl)
	l.mu.Unlock()
	return nil
}

// Snapshot returns a consistent view of the ledger.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.usedLocked()
	capUSD := l.capLocked()
	open, pending := 0, 0
	for _, r := range l.reservations {
		if r.committed {
			open++
		} else {
			pending++
		}
	}

	return Snapshot{
		EquityUSD:        l.equity.InexactFloat64(),
		ExposureCapUSD:   capUSD.InexactFloat64(),
		UsedUSD:          used.InexactFloat64(),
		AvailableUSD:     capUSD.Sub(used).InexactFloat64(),
		OpenCount:        open,
		ReservedCount:    pending,
		MaxConcurrent:    l.maxConcurrent,
		RealizedTodayUSD: l.realizedToday.InexactFloat64(),
		Day:              l.day,
		Halted:           l.halted,
	}
}

// ResetDaily starts a new UTC accounting day, zeroing realized PnL.
// Open exposure and equity carry over.
func (l *Ledger) ResetDaily(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.day = dayOf(now)
	l.realizedToday = decimal.Zero
}

// Day returns the current UTC accounting day.
func (l *Ledger) Day() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.day
}

// SetExposureCap updates the global exposure cap fraction at runtime.
// An already-exceeded cap only blocks new reservations; nothing is
// force-closed.
func (l *Ledger) SetExposureCap(frac float64) error {
	if frac <= 0 || frac > 1 {
		return fmt.Errorf("exposure cap fraction must be in (0,1], got %g", frac)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capFrac = decimal.NewFromFloat(frac)
	return nil
}

// SetMaxConcurrent updates the slot budget at runtime.
func (l *Ledger) SetMaxConcurrent(n int) error {
	if n < 1 {
		return fmt.Errorf("max concurrent must be >= 1, got %d", n)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxConcurrent = n
	return nil
}

// Halt stops all further reservations. Used by the ledger itself on
// invariant violations and exposed for operator emergencies.
func (l *Ledger) Halt(reason string) {
	l.mu.Lock()
	l.haltLocked(reason)
	l.mu.Unlock()
}

// Halted reports whether the ledger has halted.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// HaltReason returns the first halt reason, empty while running.
func (l *Ledger) HaltReason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.haltReason
}

// haltLocked latches the halted state. The hook fires once, on its own
// goroutine so it may call back into the ledger.
func (l *Ledger) haltLocked(reason string) {
	if l.halted {
		return
	}
	l.halted = true
	l.haltReason = reason
	if l.haltHook != nil {
		go l.haltHook(reason)
	}
}

func (l *Ledger) usedLocked() decimal.Decimal {
	used := decimal.Zero
	for _, r := range l.reservations {
		used = used.Add(r.amount)
	}
	return used
}

func (l *Ledger) capLocked() decimal.Decimal {
	return l.equity.Mul(l.capFrac)
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
