// Package engine runs the graduation admission pipeline.
// It coordinates: intake → gates → scoring → sizing → reservation → execution,
// journaling every step and resolving intake at every terminal outcome.
package engine

import (
	"context"
	"errors"
	"log"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/gate"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/intake"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/mode"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/notify"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/scoring"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/sizing"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// ErrNotOpen is returned when resolving a position that is not OPEN.
var ErrNotOpen = errors.New("position is not open")

// hookTimeout bounds journaling and notification work triggered outside
// a request context (mode transitions, ledger halts).
const hookTimeout = 5 * time.Second

// Options contains configuration for creating an Engine.
type Options struct {
	Intake    *intake.Intake
	Gate      *gate.Evaluator
	Scorer    *scoring.Engine
	Sizer     *sizing.Sizer
	Ledger    *ledger.Ledger
	Modes     *mode.Controller
	Router    *execution.Router
	Journal   storage.JournalStore
	Positions storage.PositionStore
	Analytics storage.JournalAnalytics // optional ClickHouse mirror
	Notifier  notify.Notifier
	Logger    *log.Logger

	Workers       int           // admission worker pool size
	MinScore      float64       // graduation score floor for sizing
	NotifyRejects bool          // notify on gate/sizing rejections
	GuardInterval time.Duration // loss-cap / day-rollover tick
	Clock         func() time.Time
}

// Engine wires the admission pipeline together and owns its background
// loops: the worker pool, the guard tick, and the analytics mirror.
type Engine struct {
	intake    *intake.Intake
	gate      *gate.Evaluator
	scorer    *scoring.Engine
	sizer     *sizing.Sizer
	ledger    *ledger.Ledger
	modes     *mode.Controller
	router    *execution.Router
	journals  storage.JournalStore
	positions storage.PositionStore
	analytics storage.JournalAnalytics
	notifier  notify.Notifier
	logger    *log.Logger

	workers       int
	minScore      float64
	notifyRejects bool
	guardInterval time.Duration
	clock         func() time.Time

	mirrorCh chan *domain.JournalEntry

	decided  atomic.Int64
	admitted atomic.Int64
	rejected atomic.Int64
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.GuardInterval <= 0 {
		opts.GuardInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}

	e := &Engine{
		intake:        opts.Intake,
		gate:          opts.Gate,
		scorer:        opts.Scorer,
		sizer:         opts.Sizer,
		ledger:        opts.Ledger,
		modes:         opts.Modes,
		router:        opts.Router,
		journals:      opts.Journal,
		positions:     opts.Positions,
		analytics:     opts.Analytics,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		workers:       opts.Workers,
		minScore:      opts.MinScore,
		notifyRejects: opts.NotifyRejects,
		guardInterval: opts.GuardInterval,
		clock:         opts.Clock,
	}
	if e.analytics != nil {
		e.mirrorCh = make(chan *domain.JournalEntry, mirrorBuffer)
	}
	return e
}

// Run starts the admission workers, the guard loop, and the analytics
// mirror, then blocks until the context is cancelled or the intake
// queue closes.
func (e *Engine) Run(ctx context.Context) error {
	observability.SetCurrentMode(e.modes.Mode())

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			return e.admissionWorker(ctx)
		})
	}
	g.Go(func() error {
		return e.guardLoop(ctx)
	})
	if e.analytics != nil {
		g.Go(func() error {
			return e.mirrorLoop(ctx)
		})
	}

	return g.Wait()
}

// admissionWorker drains the intake queue until shutdown.
func (e *Engine) admissionWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-e.intake.Out():
			if !ok {
				return nil
			}
			e.admit(ctx, c)
		}
	}
}

// Submit feeds one candidate into intake. Every drop is journaled and
// counted; only accepted candidates reach the admission workers.
func (e *Engine) Submit(ctx context.Context, c domain.Candidate) error {
	observability.RecordCandidateReceived(e.clock().Unix())

	err := e.intake.Submit(ctx, c)
	if err != nil {
		reason := dropReason(err)
		observability.RecordCandidateDropped(reason)
		e.journal(ctx, domain.JournalIntakeDrop, c.Address, "", reason, dropDetail{
			Source: c.Source,
			Reason: reason,
		})
		return err
	}

	observability.RecordCandidateAccepted()
	return nil
}

// Resolve closes an OPEN position at the given exit reference price,
// settles the ledger, and re-evaluates the loss cap with a fresh
// snapshot so a breach reacts immediately.
func (e *Engine) Resolve(ctx context.Context, positionID string, exitPriceUSD float64) (*domain.Position, error) {
	pos, err := e.positions.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.Status != domain.StatusOpen {
		return nil, ErrNotOpen
	}

	fill, err := e.router.Close(ctx, execution.CloseRequest{
		PositionID:       pos.PositionID,
		Address:          pos.Address,
		TokenQty:         pos.TokenQty,
		ExpectedPriceUSD: exitPriceUSD,
	})
	if err != nil {
		e.journal(ctx, domain.JournalExecution, pos.Address, pos.PositionID, "close_failed", executionDetail{
			Side:  string(execution.SideSell),
			Error: err.Error(),
		})
		if !errors.Is(err, execution.ErrModeBlocked) {
			e.notify(notify.Warn("Close Failed", pos.Address+": "+err.Error()))
		}
		return nil, err
	}

	pnl := (fill.PriceUSD - pos.EntryPriceUSD) * pos.TokenQty
	if err := e.ledger.Close(pos.PositionID, pnl); err != nil {
		e.logger.Printf("ledger close %s: %v", pos.PositionID, err)
	}

	now := e.clock().UnixMilli()
	pos.Status = domain.StatusClosed
	pos.ExitPriceUSD = fill.PriceUSD
	pos.RealizedPnLUSD = pnl
	pos.ClosedAt = fill.FilledAt
	pos.UpdatedAt = now
	e.updatePosition(ctx, pos)

	e.journal(ctx, domain.JournalPositionClose, pos.Address, pos.PositionID, "closed", closeDetail{
		ExitPriceUSD:   fill.PriceUSD,
		TokenQty:       fill.TokenQty,
		RealizedPnLUSD: pnl,
		Simulated:      fill.Simulated,
		TxSignature:    fill.TxSignature,
	})

	snap := e.ledger.Snapshot()
	observability.RecordPositionClosed(snap.RealizedTodayUSD)
	observability.RecordOrder(pos.Mode, "closed", fill.Venue, 0)
	e.notify(notify.Info("Position Closed",
		pos.Address+" pnl "+formatUSD(pnl)))

	e.modes.Tick(e.clock(), snap)
	return pos, nil
}

// Status is the engine summary served by the status endpoint.
type Status struct {
	Mode   mode.Status     `json:"mode"`
	Ledger ledger.Snapshot `json:"ledger"`
	Intake intake.Stats    `json:"intake"`
	Counts Counts          `json:"counts"`
}

// Counts are pipeline totals since start.
type Counts struct {
	Decided  int64 `json:"decided"`
	Admitted int64 `json:"admitted"`
	Rejected int64 `json:"rejected"`
}

// Status returns a point-in-time engine summary.
func (e *Engine) Status() Status {
	return Status{
		Mode:   e.modes.Status(),
		Ledger: e.ledger.Snapshot(),
		Intake: e.intake.Stats(),
		Counts: Counts{
			Decided:  e.decided.Load(),
			Admitted: e.admitted.Load(),
			Rejected: e.rejected.Load(),
		},
	}
}

// OnModeTransition journals and notifies a controller transition. Wired
// as the controller's transition hook; the actual work runs off the
// caller's goroutine because the hook fires under the controller lock.
func (e *Engine) OnModeTransition(tr mode.Transition) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		e.journal(ctx, domain.JournalModeChange, "", "", tr.Cause, transitionDetail{
			From: string(tr.From),
			To:   string(tr.To),
			By:   tr.By,
		})
		observability.RecordModeTransition(tr.From, tr.To, tr.Cause)

		body := string(tr.From) + " -> " + string(tr.To) + " (" + tr.Cause + ")"
		sev := notify.Info
		if tr.Cause == "loss_cap" || tr.Cause == "kill" {
			sev = notify.Warn
		}
		e.notify(sev("Mode Transition", body))
		e.logger.Printf("mode transition %s", body)
	}()
}

// OnLedgerHalt pages the operator after a ledger invariant violation.
// Wired as the ledger halt hook, which already runs on its own goroutine.
func (e *Engine) OnLedgerHalt(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	e.journal(ctx, domain.JournalHalt, "", "", "ledger_halt", haltDetail{Reason: reason})
	observability.RecordLedgerViolation()
	e.notify(notify.Critical("Ledger Halted", reason))
	e.logger.Printf("CRITICAL: ledger halted: %s", reason)
}

// JournalAdmin records an operator command line and the reply it produced.
func (e *Engine) JournalAdmin(ctx context.Context, command, line, reply string) {
	e.journal(ctx, domain.JournalAdmin, "", "", command, adminDetail{Line: line, Reply: reply})
}

// guardLoop drives the day rollover and the loss-cap evaluation.
func (e *Engine) guardLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.guardInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.GuardTick()
		}
	}
}

// GuardTick runs one guard iteration: UTC day rollover, kill expiry,
// loss-cap check, and gauge refresh. Exported so tests can drive it
// with a fake clock instead of the ticker.
func (e *Engine) GuardTick() {
	now := e.clock()

	if day := now.UTC().Format("2006-01-02"); day != e.ledger.Day() {
		e.ledger.ResetDaily(now)
		if e.modes.UnlockDaily() {
			e.logger.Printf("daily loss guard released, new day %s", day)
			e.notify(notify.Info("Loss Guard Reset", "new UTC day "+day))
		}
	}

	snap := e.ledger.Snapshot()
	e.modes.Tick(now, snap)

	st := e.modes.Status()
	observability.SetKillEngaged(st.Killed)
	observability.SetCurrentMode(st.Mode)
	observability.UpdateExposure(snap.UsedUSD, snap.AvailableUSD, snap.SlotsUsed())
	observability.SetQueueDepth(e.intake.Depth())
	observability.AddUptime(e.guardInterval.Seconds())
}

// notify delivers an operator event, logging delivery failures.
func (e *Engine) notify(ev notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Printf("notify %q: %v", ev.Title, err)
	}
}

// dropReason maps an intake error to its journal reason code.
func dropReason(err error) string {
	switch {
	case errors.Is(err, intake.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, intake.ErrInvalidCandidate):
		return "invalid_candidate"
	case errors.Is(err, intake.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, intake.ErrPaused):
		return "paused"
	case errors.Is(err, intake.ErrBacklog):
		return "backlog"
	case errors.Is(err, intake.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}
