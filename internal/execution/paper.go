package execution

import (
	"fmt"
	"time"
)

// PaperOptions contains configuration for creating a PaperFiller.
type PaperOptions struct {
	SlippageBps float64
	Clock       func() time.Time
}

// PaperFiller synthesizes fills from the reference price, penalized by
// a fixed slippage. Buys fill above the reference, sells below it.
type PaperFiller struct {
	slippageBps float64
	clock       func() time.Time
}

// NewPaperFiller creates a PaperFiller.
func NewPaperFiller(opts PaperOptions) *PaperFiller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &PaperFiller{
		slippageBps: opts.SlippageBps,
		clock:       opts.Clock,
	}
}

// OpenFill synthesizes a buy at reference * (1 + slippage_bps/10000).
func (p *PaperFiller) OpenFill(req OpenRequest) *Fill {
	price := req.ExpectedPriceUSD * (1 + p.slippageBps/10000)
	qty := 0.0
	if price > 0 {
		qty = req.NotionalUSD / price
	}
	return &Fill{
		PositionID:  req.PositionID,
		Side:        SideBuy,
		PriceUSD:    price,
		TokenQty:    qty,
		NotionalUSD: req.NotionalUSD,
		TxSignature: paperSignature(req.PositionID, SideBuy),
		Venue:       "paper",
		Simulated:   true,
		FilledAt:    p.clock().UnixMilli(),
	}
}

// CloseFill synthesizes a sell at reference * (1 - slippage_bps/10000).
func (p *PaperFiller) CloseFill(req CloseRequest) *Fill {
	price := req.ExpectedPriceUSD * (1 - p.slippageBps/10000)
	return &Fill{
		PositionID:  req.PositionID,
		Side:        SideSell,
		PriceUSD:    price,
		TokenQty:    req.TokenQty,
		NotionalUSD: price * req.TokenQty,
		TxSignature: paperSignature(req.PositionID, SideSell),
		Venue:       "paper",
		Simulated:   true,
		FilledAt:    p.clock().UnixMilli(),
	}
}

func paperSignature(positionID string, side Side) string {
	return fmt.Sprintf("paper-%s-%s", side, positionID)
}
