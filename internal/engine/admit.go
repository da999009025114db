package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/idhash"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/notify"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// Journal detail payloads, one per entry kind.
type (
	candidateDetail struct {
		Symbol     string  `json:"symbol,omitempty"`
		Source     string  `json:"source"`
		PriceUSD   float64 `json:"price_usd"`
		ObservedAt int64   `json:"observed_at"`
	}

	dropDetail struct {
		Source string `json:"source,omitempty"`
		Reason string `json:"reason"`
	}

	checkDetail struct {
		Name      string `json:"name"`
		Threshold string `json:"threshold"`
		Actual    string `json:"actual"`
		Passed    bool   `json:"passed"`
	}

	gateDetail struct {
		Passed      bool          `json:"passed"`
		FailedCheck string        `json:"failed_check,omitempty"`
		Checks      []checkDetail `json:"checks"`
	}

	factorDetail struct {
		Name       string  `json:"name"`
		Raw        float64 `json:"raw"`
		Normalized float64 `json:"normalized"`
		Weight     float64 `json:"weight"`
		Missing    bool    `json:"missing,omitempty"`
	}

	scoreDetail struct {
		Value   float64        `json:"value"`
		Partial bool           `json:"partial,omitempty"`
		ModelID string         `json:"model_id"`
		PLoser  float64        `json:"p_loser"`
		PWinner float64        `json:"p_winner"`
		PMega   float64        `json:"p_mega"`
		Factors []factorDetail `json:"factors,omitempty"`
		Error   string         `json:"error,omitempty"`
	}

	sizingDetail struct {
		Skip        bool    `json:"skip,omitempty"`
		Reason      string  `json:"reason,omitempty"`
		NotionalUSD float64 `json:"notional_usd,omitempty"`
		KellyRaw    float64 `json:"kelly_raw"`
		KellyDamped float64 `json:"kelly_damped"`
		Fraction    float64 `json:"fraction,omitempty"`
		Clamp       string  `json:"clamp,omitempty"`
		ConfigRev   string  `json:"config_rev"`
	}

	reservationDetail struct {
		NotionalUSD float64 `json:"notional_usd"`
		Outcome     string  `json:"outcome"`
	}

	executionDetail struct {
		Side        string  `json:"side"`
		PriceUSD    float64 `json:"price_usd,omitempty"`
		TokenQty    float64 `json:"token_qty,omitempty"`
		Venue       string  `json:"venue,omitempty"`
		TxSignature string  `json:"tx_signature,omitempty"`
		Simulated   bool    `json:"simulated,omitempty"`
		Error       string  `json:"error,omitempty"`
	}

	openDetail struct {
		NotionalUSD   float64 `json:"notional_usd"`
		EntryPriceUSD float64 `json:"entry_price_usd"`
		TokenQty      float64 `json:"token_qty"`
		Score         float64 `json:"score"`
		Mode          string  `json:"mode"`
		Simulated     bool    `json:"simulated,omitempty"`
	}

	closeDetail struct {
		ExitPriceUSD   float64 `json:"exit_price_usd"`
		TokenQty       float64 `json:"token_qty"`
		RealizedPnLUSD float64 `json:"realized_pnl_usd"`
		Simulated      bool    `json:"simulated,omitempty"`
		TxSignature    string  `json:"tx_signature,omitempty"`
	}

	transitionDetail struct {
		From string `json:"from"`
		To   string `json:"to"`
		By   string `json:"by,omitempty"`
	}

	haltDetail struct {
		Reason string `json:"reason"`
	}

	adminDetail struct {
		Line  string `json:"line"`
		Reply string `json:"reply"`
	}
)

// admit runs the full admission pipeline for one candidate. Every step
// is journaled; every path ends in a terminal position status and an
// intake resolve.
func (e *Engine) admit(ctx context.Context, c domain.Candidate) {
	start := e.clock()
	e.journal(ctx, domain.JournalCandidate, c.Address, "", "received", candidateDetail{
		Symbol:     c.Symbol,
		Source:     c.Source,
		PriceUSD:   c.LastPriceUSD,
		ObservedAt: c.ObservedAt,
	})

	// Gates: fail closed before anything is scored.
	g := e.gate.Evaluate(c)
	gd := gateDetail{Passed: g.Passed, FailedCheck: g.FailedCheck}
	for _, ch := range g.Checks {
		gd.Checks = append(gd.Checks, checkDetail(ch))
	}
	cause := "passed"
	if !g.Passed {
		cause = g.FailedCheck
	}
	e.journal(ctx, domain.JournalGate, c.Address, "", cause, gd)
	observability.RecordGateResult(g.FailedCheck)

	if !g.Passed {
		e.reject(ctx, c, domain.StatusRejectedGate, g.FailedCheck, 0, start)
		return
	}

	// Score. A model contract violation is a sizing rejection, not a crash.
	score, err := e.scorer.Score(c, g)
	if err != nil {
		e.journal(ctx, domain.JournalScore, c.Address, "", domain.SkipModelInvalid, scoreDetail{
			ModelID: e.scorer.ModelID(),
			Error:   err.Error(),
		})
		e.logger.Printf("score %s: %v", c.Address, err)
		e.reject(ctx, c, domain.StatusRejectedSizing, domain.SkipModelInvalid, 0, start)
		return
	}

	sd := scoreDetail{
		Value:   score.Value,
		Partial: score.Partial,
		ModelID: score.ModelID,
		PLoser:  score.Probs.Loser,
		PWinner: score.Probs.Winner,
		PMega:   score.Probs.Mega,
	}
	for _, f := range score.Factors {
		sd.Factors = append(sd.Factors, factorDetail{
			Name:       f.Name,
			Raw:        f.Raw,
			Normalized: f.Normalized,
			Weight:     f.Weight,
			Missing:    f.Missing,
		})
	}
	e.journal(ctx, domain.JournalScore, c.Address, "", "scored", sd)
	observability.RecordScore(score.Value)

	if score.Value < e.minScore {
		e.reject(ctx, c, domain.StatusRejectedSizing, domain.SkipBelowMinScore, score.Value, start)
		return
	}

	// Alerts-only evaluates and alerts but never reserves.
	if m := e.modes.Mode(); m == domain.ModeAlertsOnly {
		e.notify(notify.Warn("Would Admit",
			fmt.Sprintf("%s score %.1f blocked by ALERTS_ONLY", c.Address, score.Value)))
		e.reject(ctx, c, domain.StatusRejectedMode, "mode_blocked", score.Value, start)
		return
	}

	// Size against a fresh snapshot. The snapshot is advisory; the
	// reservation below re-checks the caps atomically.
	dec := e.sizer.Size(score, e.ledger.Snapshot())
	cause = "sized"
	if dec.Skip {
		cause = dec.Reason
	}
	e.journal(ctx, domain.JournalSizing, c.Address, "", cause, sizingDetail{
		Skip:        dec.Skip,
		Reason:      dec.Reason,
		NotionalUSD: dec.NotionalUSD,
		KellyRaw:    dec.KellyRaw,
		KellyDamped: dec.KellyDamped,
		Fraction:    dec.Fraction,
		Clamp:       dec.Clamp,
		ConfigRev:   dec.ConfigRev,
	})
	observability.RecordSizingDecision(cause, dec.NotionalUSD)

	if dec.Skip {
		e.reject(ctx, c, domain.StatusRejectedSizing, dec.Reason, score.Value, start)
		return
	}

	// Reserve, then execute without holding any ledger state.
	now := e.clock().UnixMilli()
	pos := &domain.Position{
		PositionID:  uuid.New().String(),
		Address:     c.Address,
		Symbol:      c.Symbol,
		Source:      c.Source,
		Mode:        e.modes.Mode(),
		Status:      domain.StatusPendingReserve,
		Score:       score.Value,
		NotionalUSD: dec.NotionalUSD,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.positions.Insert(ctx, pos); err != nil {
		e.logger.Printf("insert position %s: %v", pos.PositionID, err)
		e.finish(c.Address, start, false)
		return
	}

	if err := e.ledger.Reserve(pos.PositionID, dec.NotionalUSD); err != nil {
		reason := reserveReason(err)
		e.journal(ctx, domain.JournalReservation, c.Address, pos.PositionID, reason, reservationDetail{
			NotionalUSD: dec.NotionalUSD,
			Outcome:     reason,
		})
		pos.Status = domain.StatusRejectedSizing
		pos.Reason = reason
		pos.UpdatedAt = e.clock().UnixMilli()
		e.updatePosition(ctx, pos)
		e.finish(c.Address, start, false)
		return
	}
	e.journal(ctx, domain.JournalReservation, c.Address, pos.PositionID, "reserved", reservationDetail{
		NotionalUSD: dec.NotionalUSD,
		Outcome:     "reserved",
	})

	pos.Status = domain.StatusReserved
	pos.UpdatedAt = e.clock().UnixMilli()
	e.updatePosition(ctx, pos)

	routeStart := e.clock()
	fill, err := e.router.Open(ctx, execution.OpenRequest{
		PositionID:       pos.PositionID,
		Address:          c.Address,
		Symbol:           c.Symbol,
		NotionalUSD:      dec.NotionalUSD,
		ExpectedPriceUSD: c.LastPriceUSD,
	})
	if err != nil {
		e.failOpen(ctx, c, pos, err)
		e.finish(c.Address, start, false)
		return
	}
	routeSeconds := e.clock().Sub(routeStart).Seconds()

	if err := e.ledger.Commit(pos.PositionID); err != nil {
		// The ledger halted itself and the halt hook is paging the
		// operator; record the wreckage on the position.
		e.logger.Printf("commit %s: %v", pos.PositionID, err)
		pos.Status = domain.StatusReleased
		pos.Reason = "ledger_invariant"
		pos.UpdatedAt = e.clock().UnixMilli()
		e.updatePosition(ctx, pos)
		e.finish(c.Address, start, false)
		return
	}

	pos.Status = domain.StatusOpen
	pos.EntryPriceUSD = fill.PriceUSD
	pos.TokenQty = fill.TokenQty
	pos.TxSignature = fill.TxSignature
	pos.Simulated = fill.Simulated
	pos.OpenedAt = fill.FilledAt
	pos.UpdatedAt = e.clock().UnixMilli()
	e.updatePosition(ctx, pos)

	e.journal(ctx, domain.JournalExecution, c.Address, pos.PositionID, "filled", executionDetail{
		Side:        string(fill.Side),
		PriceUSD:    fill.PriceUSD,
		TokenQty:    fill.TokenQty,
		Venue:       fill.Venue,
		TxSignature: fill.TxSignature,
		Simulated:   fill.Simulated,
	})
	e.journal(ctx, domain.JournalPositionOpen, c.Address, pos.PositionID, "opened", openDetail{
		NotionalUSD:   pos.NotionalUSD,
		EntryPriceUSD: pos.EntryPriceUSD,
		TokenQty:      pos.TokenQty,
		Score:         pos.Score,
		Mode:          string(pos.Mode),
		Simulated:     pos.Simulated,
	})

	observability.RecordOrder(pos.Mode, "opened", fill.Venue, routeSeconds)
	observability.RecordPositionOpened(e.clock().Unix())
	e.notify(notify.Info("Position Opened", fmt.Sprintf(
		"%s %s @ %.6f (%s, score %.1f)",
		c.Address, formatUSD(pos.NotionalUSD), pos.EntryPriceUSD, pos.Mode, pos.Score)))

	e.finish(c.Address, start, true)
}

// failOpen settles a reserved position whose execution failed: release
// the reservation (idempotent) and record the terminal status.
func (e *Engine) failOpen(ctx context.Context, c domain.Candidate, pos *domain.Position, openErr error) {
	if err := e.ledger.Release(pos.PositionID); err != nil {
		e.logger.Printf("release %s: %v", pos.PositionID, err)
	}

	e.journal(ctx, domain.JournalExecution, c.Address, pos.PositionID, "open_failed", executionDetail{
		Side:  string(execution.SideBuy),
		Error: openErr.Error(),
	})

	if errors.Is(openErr, execution.ErrModeBlocked) {
		pos.Status = domain.StatusRejectedMode
		pos.Reason = "mode_blocked"
	} else {
		pos.Status = domain.StatusReleased
		pos.Reason = "execution_failed"
		e.notify(notify.Warn("Execution Failed", c.Address+": "+openErr.Error()))
	}
	pos.UpdatedAt = e.clock().UnixMilli()
	e.updatePosition(ctx, pos)
	observability.RecordOrder(pos.Mode, "failed", "", 0)
}

// reject records a terminal rejection before any reservation was made.
func (e *Engine) reject(ctx context.Context, c domain.Candidate, status domain.PositionStatus, reason string, score float64, start time.Time) {
	now := e.clock().UnixMilli()
	pos := &domain.Position{
		PositionID: uuid.New().String(),
		Address:    c.Address,
		Symbol:     c.Symbol,
		Source:     c.Source,
		Mode:       e.modes.Mode(),
		Status:     status,
		Reason:     reason,
		Score:      score,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.positions.Insert(ctx, pos); err != nil {
		e.logger.Printf("insert rejection %s: %v", pos.PositionID, err)
	}

	if e.notifyRejects {
		e.notify(notify.Info("Candidate Rejected",
			fmt.Sprintf("%s %s (%s)", c.Address, status, reason)))
	}
	e.finish(c.Address, start, false)
}

// finish resolves intake for the address and records the decision.
func (e *Engine) finish(address string, start time.Time, opened bool) {
	e.intake.Resolve(address)
	e.decided.Add(1)
	if opened {
		e.admitted.Add(1)
		observability.RecordAdmissionOutcome("admitted")
	} else {
		e.rejected.Add(1)
		observability.RecordAdmissionOutcome("rejected")
	}
	observability.RecordDecisionLatency(e.clock().Sub(start).Seconds())
}

// journal appends one entry, best-effort: append failures are logged
// and counted, never propagated into the pipeline. The entry is also
// offered to the analytics mirror without blocking.
func (e *Engine) journal(ctx context.Context, kind domain.JournalKind, address, positionID, cause string, detail any) {
	now := e.clock().UnixMilli()

	var detailJSON string
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			detailJSON = string(b)
		}
	}

	entry := &domain.JournalEntry{
		EntryID:    idhash.ComputeEntryID(kind, address, positionID, cause, now),
		Kind:       kind,
		Address:    address,
		PositionID: positionID,
		Cause:      cause,
		Detail:     detailJSON,
		CreatedAt:  now,
	}

	err := e.journals.Append(ctx, entry)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Identical logical event already recorded; the mirror has it too.
		observability.RecordJournalAppend(kind, nil)
		return
	}
	if err != nil {
		e.logger.Printf("journal %s/%s: %v", kind, cause, err)
	}
	observability.RecordJournalAppend(kind, err)

	if e.mirrorCh != nil {
		select {
		case e.mirrorCh <- entry:
		default:
		}
	}
}

// updatePosition persists a mutation, logging storage failures.
func (e *Engine) updatePosition(ctx context.Context, pos *domain.Position) {
	if err := e.positions.Update(ctx, pos); err != nil {
		e.logger.Printf("update position %s: %v", pos.PositionID, err)
	}
}

// reserveReason maps a ledger error to its journal reason code.
func reserveReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrExposureExceeded):
		return "exposure_exceeded"
	case errors.Is(err, ledger.ErrSlotsExhausted):
		return domain.SkipNoSlots
	case errors.Is(err, ledger.ErrHalted):
		return "halted"
	case errors.Is(err, ledger.ErrDuplicateID):
		return "duplicate_position"
	default:
		return "reserve_failed"
	}
}

func formatUSD(v float64) string {
	return fmt.Sprintf("%.2f USD", v)
}
