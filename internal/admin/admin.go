// Package admin executes operator text commands. One command per line,
// plain-text reply, transport agnostic: the feed server's /v1/admin
// endpoint and a messaging front-end both route lines here.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/engine"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/intake"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/ledger"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/mode"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/sizing"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

const usage = `commands:
  mode [PAPER|LIVE|ALERTS_ONLY [force]]
  pause | resume
  sizecap [<fraction>]
  exposure [<fraction>]
  positions
  risk
  stats
  kill
  help`

// recentLimit caps the decision history shown by the positions command.
const recentLimit = 10

// Options contains configuration for creating a Handler.
type Options struct {
	Engine    *engine.Engine
	Intake    *intake.Intake
	Sizer     *sizing.Sizer
	Ledger    *ledger.Ledger
	Modes     *mode.Controller
	Positions storage.PositionStore
	Analytics storage.JournalAnalytics // optional, nil disables the stats breakdown
	// LossCapPct is the configured daily loss cap as a negative fraction
	// of equity, shown by the risk command.
	LossCapPct float64
	Clock      func() time.Time // defaults to time.Now
}

// Handler parses operator commands and applies them to the engine's
// runtime controls.
type Handler struct {
	engine     *engine.Engine
	intake     *intake.Intake
	sizer      *sizing.Sizer
	ledger     *ledger.Ledger
	modes      *mode.Controller
	positions  storage.PositionStore
	analytics  storage.JournalAnalytics
	lossCapPct float64
	clock      func() time.Time
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Handler{
		engine:     opts.Engine,
		intake:     opts.Intake,
		sizer:      opts.Sizer,
		ledger:     opts.Ledger,
		modes:      opts.Modes,
		positions:  opts.Positions,
		analytics:  opts.Analytics,
		lossCapPct: opts.LossCapPct,
		clock:      opts.Clock,
	}
}

// Execute runs one command line and returns the plain-text reply. Every
// command is journaled with its reply summary.
func (h *Handler) Execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return usage
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	var reply string
	switch cmd {
	case "mode":
		reply = h.mode(args)
	case "pause":
		h.intake.Pause()
		reply = "intake paused"
	case "resume":
		h.intake.Resume()
		reply = "intake resumed"
	case "sizecap":
		reply = h.sizecap(args)
	case "exposure":
		reply = h.exposure(args)
	case "positions":
		reply = h.positionsTable(ctx)
	case "risk":
		reply = h.risk()
	case "stats":
		reply = h.stats(ctx)
	case "kill":
		until := h.modes.Kill("admin")
		reply = "kill engaged: ALERTS_ONLY until " + until.UTC().Format(time.RFC3339)
	case "help":
		reply = usage
	default:
		reply = fmt.Sprintf("unknown command %q\n%s", cmd, usage)
		cmd = "unknown" // bounded journal causes and metric labels
	}

	observability.RecordAdminCommand(cmd)
	h.engine.JournalAdmin(ctx, cmd, line, summarize(reply))
	return reply
}

func (h *Handler) mode(args []string) string {
	if len(args) == 0 {
		return h.modeStatus()
	}

	target, err := domain.ParseMode(strings.ToUpper(args[0]))
	if err != nil {
		return "usage: mode [PAPER|LIVE|ALERTS_ONLY] [force]"
	}
	force := len(args) > 1 && strings.EqualFold(args[1], "force")

	if force {
		err = h.modes.Override(target, "admin")
	} else {
		err = h.modes.Set(target, "admin")
	}
	if errors.Is(err, mode.ErrLiveLocked) {
		return "LIVE is locked by the daily loss cap; \"mode LIVE force\" overrides until the next UTC day"
	}
	if err != nil {
		return err.Error()
	}
	return "mode " + h.modes.Mode().String()
}

func (h *Handler) modeStatus() string {
	st := h.modes.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "mode %s", st.Mode)
	if st.Killed {
		fmt.Fprintf(&b, " (killed until %s, reverts to %s)",
			st.KilledUntil.UTC().Format(time.RFC3339), st.PriorMode)
	}
	if st.Locked {
		fmt.Fprintf(&b, " (LIVE locked since %s)", st.LockedDay)
	}
	return b.String()
}

func (h *Handler) sizecap(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("per-trade cap %.4f (rev %s)", h.sizer.PerTradeCap(), h.sizer.ConfigRev())
	}

	frac, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "usage: sizecap <fraction in (0,1)>"
	}
	if err := h.sizer.SetPerTradeCap(frac); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("per-trade cap set to %.4f", frac)
}

func (h *Handler) exposure(args []string) string {
	if len(args) == 0 {
		snap := h.ledger.Snapshot()
		return fmt.Sprintf("exposure cap %s, used %s, available %s",
			usd(snap.ExposureCapUSD), usd(snap.UsedUSD), usd(snap.AvailableUSD))
	}

	frac, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "usage: exposure <fraction in (0,1]>"
	}
	if err := h.ledger.SetExposureCap(frac); err != nil {
		return err.Error()
	}
	snap := h.ledger.Snapshot()
	return fmt.Sprintf("exposure cap set to %.4f (%s)", frac, usd(snap.ExposureCapUSD))
}

func (h *Handler) positionsTable(ctx context.Context) string {
	open, err := h.positions.ListOpen(ctx)
	if err != nil {
		return "list open positions: " + err.Error()
	}

	var b strings.Builder
	if len(open) == 0 {
		b.WriteString("no open positions\n")
	} else {
		fmt.Fprintf(&b, "%d open:\n", len(open))
		tbl := tablewriter.NewWriter(&b)
		tbl.Header("ID", "Token", "Mode", "Notional", "Entry", "Score", "Opened")
		for _, p := range open {
			tbl.Append(
				shortID(p.PositionID),
				tokenLabel(p),
				string(p.Mode),
				usd(p.NotionalUSD),
				fmt.Sprintf("%.6f", p.EntryPriceUSD),
				fmt.Sprintf("%.1f", p.Score),
				msTimeLabel(p.OpenedAt),
			)
		}
		tbl.Render()
	}

	recent, err := h.positions.ListRecent(ctx, recentLimit)
	if err != nil {
		return b.String() + "list recent positions: " + err.Error()
	}
	if len(recent) > 0 {
		b.WriteString("recent decisions:\n")
		tbl := tablewriter.NewWriter(&b)
		tbl.Header("ID", "Token", "Status", "Reason", "PnL")
		for _, p := range recent {
			tbl.Append(
				shortID(p.PositionID),
				tokenLabel(p),
				string(p.Status),
				orDash(p.Reason),
				pnlLabel(p),
			)
		}
		tbl.Render()
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (h *Handler) risk() string {
	snap := h.ledger.Snapshot()
	st := h.modes.Status()
	capUSD := snap.EquityUSD * h.lossCapPct

	var b strings.Builder
	fmt.Fprintf(&b, "equity    %s\n", usd(snap.EquityUSD))
	fmt.Fprintf(&b, "exposure  %s used, %s available (cap %s)\n",
		usd(snap.UsedUSD), usd(snap.AvailableUSD), usd(snap.ExposureCapUSD))
	fmt.Fprintf(&b, "slots     %d/%d (%d open, %d reserved)\n",
		snap.SlotsUsed(), snap.MaxConcurrent, snap.OpenCount, snap.ReservedCount)
	fmt.Fprintf(&b, "realized  %+.2f USD on %s (loss cap %.2f, room %.2f)\n",
		snap.RealizedTodayUSD, snap.Day, capUSD, snap.RealizedTodayUSD-capUSD)
	fmt.Fprintf(&b, "mode      %s", st.Mode)
	if st.Locked {
		b.WriteString(" [LIVE locked]")
	}
	if st.Killed {
		b.WriteString(" [killed]")
	}
	b.WriteString("\n")
	if h.intake.Paused() {
		b.WriteString("intake    paused\n")
	}
	if snap.Halted {
		fmt.Fprintf(&b, "HALTED    %s\n", h.ledger.HaltReason())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (h *Handler) stats(ctx context.Context) string {
	st := h.engine.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "decided %d: %d admitted, %d rejected\n",
		st.Counts.Decided, st.Counts.Admitted, st.Counts.Rejected)
	fmt.Fprintf(&b, "intake %d accepted, dropped %d duplicate / %d paused / %d backlog / %d invalid, tracking %d\n",
		st.Intake.Accepted, st.Intake.DroppedDuplicate, st.Intake.DroppedPaused,
		st.Intake.DroppedBacklog, st.Intake.DroppedInvalid, st.Intake.Tracked)

	if h.analytics == nil {
		return strings.TrimSuffix(b.String(), "\n")
	}

	since := h.clock().Add(-24 * time.Hour).UnixMilli()
	counts, err := h.analytics.CountByKindSince(ctx, since)
	if err != nil {
		fmt.Fprintf(&b, "journal 24h: %v\n", err)
		return strings.TrimSuffix(b.String(), "\n")
	}
	if len(counts) > 0 {
		b.WriteString("journal 24h:")
		for _, k := range sortedKinds(counts) {
			fmt.Fprintf(&b, " %s=%d", k, counts[k])
		}
		b.WriteString("\n")
	}

	causes, err := h.analytics.CauseBreakdown(ctx, domain.JournalGate, since)
	if err == nil && len(causes) > 0 {
		b.WriteString("gate 24h:")
		for _, c := range sortedCauses(causes) {
			fmt.Fprintf(&b, " %s=%d", c, causes[c])
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func sortedKinds(counts map[domain.JournalKind]uint64) []domain.JournalKind {
	kinds := make([]domain.JournalKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func sortedCauses(causes map[string]uint64) []string {
	out := make([]string, 0, len(causes))
	for c := range causes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// summarize reduces a reply to its first line for the journal record.
func summarize(reply string) string {
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = reply[:i]
	}
	if len(reply) > 120 {
		reply = reply[:117] + "..."
	}
	return reply
}

func usd(v float64) string {
	return fmt.Sprintf("%.2f USD", v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func tokenLabel(p *domain.Position) string {
	if p.Symbol != "" {
		return p.Symbol
	}
	if len(p.Address) > 12 {
		return p.Address[:4] + ".." + p.Address[len(p.Address)-4:]
	}
	return p.Address
}

func pnlLabel(p *domain.Position) string {
	if p.Status != domain.StatusClosed {
		return "-"
	}
	return fmt.Sprintf("%+.2f", p.RealizedPnLUSD)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func msTimeLabel(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("01-02 15:04")
}
