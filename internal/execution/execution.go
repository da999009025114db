// Package execution routes position opens and closes to a venue
// according to the active trading mode. PAPER synthesizes fills locally,
// LIVE goes through a VenueClient, ALERTS_ONLY refuses to route.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
)

// Router errors.
var (
	ErrModeBlocked = errors.New("execution blocked: alerts-only mode")
	ErrNoVenue     = errors.New("no venue client configured for LIVE")
)

// DefaultRouteTimeout bounds a LIVE venue round trip, retry included.
const DefaultRouteTimeout = 8 * time.Second

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OpenRequest asks the router to enter a position.
type OpenRequest struct {
	PositionID       string
	Address          string
	Symbol           string
	NotionalUSD      float64
	ExpectedPriceUSD float64 // last observed price used as the fill reference
	PriorityFeeMicro uint64  // LIVE only
}

// CloseRequest asks the router to exit a position.
type CloseRequest struct {
	PositionID       string
	Address          string
	TokenQty         float64
	ExpectedPriceUSD float64
}

// Fill is the routed execution outcome for one side of a position.
type Fill struct {
	PositionID  string
	Side        Side
	PriceUSD    float64
	TokenQty    float64
	NotionalUSD float64
	TxSignature string
	Venue       string
	Simulated   bool
	FilledAt    int64 // unix ms
}

// Options contains configuration for creating a Router.
type Options struct {
	Paper *PaperFiller
	Venue VenueClient
	// Mode is consulted at routing time, not decision time, so a kill
	// that lands mid-pipeline still blocks the order.
	Mode    func() domain.Mode
	Timeout time.Duration
	Logger  *log.Logger
}

// Router dispatches orders by mode. It holds no ledger locks and owns
// the venue timeout and the single transient retry for LIVE orders.
type Router struct {
	paper   *PaperFiller
	venue   VenueClient
	mode    func() domain.Mode
	timeout time.Duration
	logger  *log.Logger
}

// New creates a Router.
func New(opts Options) *Router {
	r := &Router{
		paper:   opts.Paper,
		venue:   opts.Venue,
		mode:    opts.Mode,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if r.paper == nil {
		r.paper = NewPaperFiller(PaperOptions{})
	}
	if r.mode == nil {
		r.mode = func() domain.Mode { return domain.ModePaper }
	}
	if r.timeout <= 0 {
		r.timeout = DefaultRouteTimeout
	}
	if r.logger == nil {
		r.logger = log.New(os.Stdout, "[router] ", log.LstdFlags|log.Lshortfile)
	}
	return r
}

// Open routes a position entry. Returns ErrModeBlocked in ALERTS_ONLY.
func (r *Router) Open(ctx context.Context, req OpenRequest) (*Fill, error) {
	switch m := r.mode(); m {
	case domain.ModeAlertsOnly:
		return nil, ErrModeBlocked
	case domain.ModePaper:
		return r.paper.OpenFill(req), nil
	case domain.ModeLive:
		return r.liveOrder(ctx, req.PositionID, VenueOrder{
			ClientOrderID:    req.PositionID,
			Side:             SideBuy,
			Address:          req.Address,
			NotionalUSD:      req.NotionalUSD,
			ExpectedPriceUSD: req.ExpectedPriceUSD,
			PriorityFeeMicro: req.PriorityFeeMicro,
		})
	default:
		return nil, fmt.Errorf("unknown mode %q", m)
	}
}

// Close routes a position exit. Returns ErrModeBlocked in ALERTS_ONLY.
func (r *Router) Close(ctx context.Context, req CloseRequest) (*Fill, error) {
	switch m := r.mode(); m {
	case domain.ModeAlertsOnly:
		return nil, ErrModeBlocked
	case domain.ModePaper:
		return r.paper.CloseFill(req), nil
	case domain.ModeLive:
		return r.liveOrder(ctx, req.PositionID, VenueOrder{
			ClientOrderID:    req.PositionID,
			Side:             SideSell,
			Address:          req.Address,
			TokenQty:         req.TokenQty,
			ExpectedPriceUSD: req.ExpectedPriceUSD,
		})
	default:
		return nil, fmt.Errorf("unknown mode %q", m)
	}
}

// liveOrder submits to the venue with the route timeout and one retry
// on transient failures. Both attempts share the timeout budget.
func (r *Router) liveOrder(ctx context.Context, positionID string, order VenueOrder) (*Fill, error) {
	if r.venue == nil {
		return nil, ErrNoVenue
	}

	vctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vf, err := r.venue.Submit(vctx, order)
	if err != nil && IsRetryable(err) && vctx.Err() == nil {
		r.logger.Printf("retrying %s order for position %s: %v", order.Side, positionID, err)
		observability.RecordVenueRetry()
		vf, err = r.venue.Submit(vctx, order)
	}
	if err != nil {
		return nil, fmt.Errorf("venue %s order: %w", order.Side, err)
	}

	return &Fill{
		PositionID:  positionID,
		Side:        order.Side,
		PriceUSD:    vf.PriceUSD,
		TokenQty:    vf.TokenQty,
		NotionalUSD: vf.PriceUSD * vf.TokenQty,
		TxSignature: vf.TxSignature,
		Venue:       r.venue.Name(),
		FilledAt:    time.Now().UnixMilli(),
	}, nil
}
