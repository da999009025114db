// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Intake metrics
	CandidatesReceived prometheus.Counter
	CandidatesAccepted prometheus.Counter
	CandidatesDropped  *prometheus.CounterVec
	IntakeQueueDepth   prometheus.Gauge

	// Gate metrics
	GateEvaluations prometheus.Counter
	GateRejections  *prometheus.CounterVec
	GatePasses      prometheus.Counter

	// Scoring metrics
	ScoresComputed    prometheus.Counter
	GraduationScore   prometheus.Histogram
	AdmissionOutcomes *prometheus.CounterVec

	// Sizing metrics
	SizingDecisions *prometheus.CounterVec
	NotionalSized   prometheus.Histogram

	// Exposure metrics
	ExposureUsedUSD      prometheus.Gauge
	ExposureAvailableUSD prometheus.Gauge
	OpenSlots            prometheus.Gauge
	LedgerViolations     prometheus.Counter

	// Mode metrics
	ModeTransitions *prometheus.CounterVec
	CurrentMode     *prometheus.GaugeVec
	KillEngaged     prometheus.Gauge

	// Execution metrics
	OrdersRouted    *prometheus.CounterVec
	OrderLatency    *prometheus.HistogramVec
	VenueRetries    prometheus.Counter
	PositionsOpened prometheus.Counter
	PositionsClosed prometheus.Counter
	RealizedPnLUSD  prometheus.Gauge

	// Journal metrics
	JournalAppends      *prometheus.CounterVec
	JournalAppendErrors prometheus.Counter
	MirrorFlushes       prometheus.Counter
	MirrorFlushErrors   prometheus.Counter

	// Admin metrics
	AdminCommands *prometheus.CounterVec

	// Health metrics
	DecisionLatency       prometheus.Histogram
	LastCandidateReceived prometheus.Gauge
	LastPositionOpened    prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "graduation"
	}

	return &Metrics{
		// Intake metrics
		CandidatesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "candidates_received_total",
			Help:      "Total number of graduation candidates received",
		}),
		CandidatesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "candidates_accepted_total",
			Help:      "Total number of candidates accepted into the pipeline",
		}),
		CandidatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "candidates_dropped_total",
			Help:      "Total number of candidates dropped at intake by reason",
		}, []string{"reason"}),
		IntakeQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "queue_depth",
			Help:      "Current number of candidates waiting for admission",
		}),

		// Gate metrics
		GateEvaluations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "evaluations_total",
			Help:      "Total number of gate evaluations",
		}),
		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rejections_total",
			Help:      "Total number of gate rejections by failing check",
		}, []string{"check"}),
		GatePasses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "passes_total",
			Help:      "Total number of candidates passing all gate checks",
		}),

		// Scoring metrics
		ScoresComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "scores_computed_total",
			Help:      "Total number of graduation scores computed",
		}),
		GraduationScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "graduation_score",
			Help:      "Distribution of computed graduation scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		AdmissionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "admission_outcomes_total",
			Help:      "Total number of admission decisions by outcome",
		}, []string{"outcome"}),

		// Sizing metrics
		SizingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "decisions_total",
			Help:      "Total number of sizing decisions by result",
		}, []string{"result"}),
		NotionalSized: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "notional_usd",
			Help:      "Distribution of sized position notionals in USD",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
		}),

		// Exposure metrics
		ExposureUsedUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "used_usd",
			Help:      "Current USD notional held by reservations and open positions",
		}),
		ExposureAvailableUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "available_usd",
			Help:      "Remaining USD notional under the exposure cap",
		}),
		OpenSlots: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "open_slots",
			Help:      "Current number of occupied position slots",
		}),
		LedgerViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exposure",
			Name:      "ledger_violations_total",
			Help:      "Total number of exposure ledger invariant violations",
		}),

		// Mode metrics
		ModeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mode",
			Name:      "transitions_total",
			Help:      "Total number of mode transitions by edge and cause",
		}, []string{"from", "to", "cause"}),
		CurrentMode: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mode",
			Name:      "current",
			Help:      "Current engine mode (1 for active mode, 0 otherwise)",
		}, []string{"mode"}),
		KillEngaged: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mode",
			Name:      "kill_engaged",
			Help:      "1 while a kill window forces ALERTS_ONLY, 0 otherwise",
		}),

		// Execution metrics
		OrdersRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_total",
			Help:      "Total number of routed orders by mode and status",
		}, []string{"mode", "status"}),
		OrderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_latency_seconds",
			Help:      "Order routing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),
		VenueRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "venue_retries_total",
			Help:      "Total number of transient venue errors retried",
		}),
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed",
		}),
		RealizedPnLUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_pnl_usd",
			Help:      "Realized PnL in USD for the current UTC day",
		}),

		// Journal metrics
		JournalAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "appends_total",
			Help:      "Total number of journal entries appended by kind",
		}, []string{"kind"}),
		JournalAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "append_errors_total",
			Help:      "Total number of failed journal appends",
		}),
		MirrorFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "mirror_flushes_total",
			Help:      "Total number of analytics mirror batch flushes",
		}),
		MirrorFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "mirror_flush_errors_total",
			Help:      "Total number of failed analytics mirror flushes",
		}),

		// Admin metrics
		AdminCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "commands_total",
			Help:      "Total number of admin commands executed by verb",
		}, []string{"command"}),

		// Health metrics
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "candidate_decision_seconds",
			Help:      "Latency from candidate submission to terminal decision",
			Buckets:   prometheus.DefBuckets,
		}),
		LastCandidateReceived: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_candidate_received_timestamp",
			Help:      "Unix timestamp of last candidate received",
		}),
		LastPositionOpened: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_position_opened_timestamp",
			Help:      "Unix timestamp of last position opened",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCandidateReceived increments the received counter and refreshes
// the health timestamp.
func RecordCandidateReceived(now int64) {
	DefaultMetrics.CandidatesReceived.Inc()
	DefaultMetrics.LastCandidateReceived.Set(float64(now))
}

// RecordCandidateAccepted increments the accepted counter.
func RecordCandidateAccepted() {
	DefaultMetrics.CandidatesAccepted.Inc()
}

// RecordCandidateDropped records an intake drop by reason.
func RecordCandidateDropped(reason string) {
	DefaultMetrics.CandidatesDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth updates the intake queue depth gauge.
func SetQueueDepth(depth int) {
	DefaultMetrics.IntakeQueueDepth.Set(float64(depth))
}

// RecordGateResult records one gate evaluation. An empty failedCheck
// means the candidate passed every check.
func RecordGateResult(failedCheck string) {
	DefaultMetrics.GateEvaluations.Inc()
	if failedCheck == "" {
		DefaultMetrics.GatePasses.Inc()
		return
	}
	DefaultMetrics.GateRejections.WithLabelValues(failedCheck).Inc()
}

// RecordScore records a computed graduation score.
func RecordScore(gs float64) {
	DefaultMetrics.ScoresComputed.Inc()
	DefaultMetrics.GraduationScore.Observe(gs)
}

// RecordAdmissionOutcome records the terminal outcome of one admission.
func RecordAdmissionOutcome(outcome string) {
	DefaultMetrics.AdmissionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSizingDecision records a sizing decision and, when sized, the
// resulting notional.
func RecordSizingDecision(result string, notionalUSD float64) {
	DefaultMetrics.SizingDecisions.WithLabelValues(result).Inc()
	if notionalUSD > 0 {
		DefaultMetrics.NotionalSized.Observe(notionalUSD)
	}
}

// UpdateExposure updates the exposure gauges from a ledger snapshot.
func UpdateExposure(usedUSD, availableUSD float64, slotsUsed int) {
	DefaultMetrics.ExposureUsedUSD.Set(usedUSD)
	DefaultMetrics.ExposureAvailableUSD.Set(availableUSD)
	DefaultMetrics.OpenSlots.Set(float64(slotsUsed))
}

// RecordLedgerViolation increments the invariant violation counter.
func RecordLedgerViolation() {
	DefaultMetrics.LedgerViolations.Inc()
}

// RecordModeTransition records a mode transition and flips the
// current-mode gauge set.
func RecordModeTransition(from, to domain.Mode, cause string) {
	DefaultMetrics.ModeTransitions.WithLabelValues(string(from), string(to), cause).Inc()
	SetCurrentMode(to)
}

// SetCurrentMode sets the active mode gauge to 1 and all others to 0.
func SetCurrentMode(mode domain.Mode) {
	for _, m := range []domain.Mode{domain.ModePaper, domain.ModeLive, domain.ModeAlertsOnly} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		DefaultMetrics.CurrentMode.WithLabelValues(string(m)).Set(v)
	}
}

// RecordOrder records a routed order with its latency.
func RecordOrder(mode domain.Mode, status, venue string, seconds float64) {
	DefaultMetrics.OrdersRouted.WithLabelValues(string(mode), status).Inc()
	if venue != "" {
		DefaultMetrics.OrderLatency.WithLabelValues(venue).Observe(seconds)
	}
}

// RecordVenueRetry increments the transient retry counter.
func RecordVenueRetry() {
	DefaultMetrics.VenueRetries.Inc()
}

// SetKillEngaged flips the kill window gauge.
func SetKillEngaged(engaged bool) {
	v := 0.0
	if engaged {
		v = 1.0
	}
	DefaultMetrics.KillEngaged.Set(v)
}

// RecordAdminCommand records one executed admin command.
func RecordAdminCommand(command string) {
	DefaultMetrics.AdminCommands.WithLabelValues(command).Inc()
}

// RecordDecisionLatency records time from submission to terminal decision.
func RecordDecisionLatency(seconds float64) {
	DefaultMetrics.DecisionLatency.Observe(seconds)
}

// AddUptime accumulates uptime, driven by the engine guard tick.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}

// RecordPositionOpened increments the opened counter and refreshes the
// health timestamp.
func RecordPositionOpened(now int64) {
	DefaultMetrics.PositionsOpened.Inc()
	DefaultMetrics.LastPositionOpened.Set(float64(now))
}

// RecordPositionClosed increments the closed counter and updates the
// realized PnL gauge.
func RecordPositionClosed(realizedTodayUSD float64) {
	DefaultMetrics.PositionsClosed.Inc()
	DefaultMetrics.RealizedPnLUSD.Set(realizedTodayUSD)
}

// RecordJournalAppend records a journal append by kind.
func RecordJournalAppend(kind domain.JournalKind, err error) {
	if err != nil {
		DefaultMetrics.JournalAppendErrors.Inc()
		return
	}
	DefaultMetrics.JournalAppends.WithLabelValues(string(kind)).Inc()
}

// RecordMirrorFlush records an analytics mirror flush attempt.
func RecordMirrorFlush(err error) {
	DefaultMetrics.MirrorFlushes.Inc()
	if err != nil {
		DefaultMetrics.MirrorFlushErrors.Inc()
	}
}
