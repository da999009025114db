package execution_test

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution/stub"
)

const testMint = "So11111111111111111111111111111111111111112"

type modeSwitch struct {
	mu   sync.Mutex
	mode domain.Mode
}

func (m *modeSwitch) get() domain.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *modeSwitch) set(mode domain.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

func newTestRouter(mode *modeSwitch, venue execution.VenueClient) *execution.Router {
	return execution.New(execution.Options{
		Paper:   execution.NewPaperFiller(execution.PaperOptions{SlippageBps: 100}),
		Venue:   venue,
		Mode:    mode.get,
		Timeout: 2 * time.Second,
		Logger:  log.New(io.Discard, "", 0),
	})
}

func TestOpenPaperAppliesSlippage(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModePaper}
	r := newTestRouter(mode, nil)

	fill, err := r.Open(context.Background(), execution.OpenRequest{
		PositionID:       "pos-1",
		Address:          testMint,
		NotionalUSD:      500,
		ExpectedPriceUSD: 0.02,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// 100 bps on 0.02 fills at 0.0202.
	if math.Abs(fill.PriceUSD-0.0202) > 1e-12 {
		t.Errorf("PriceUSD = %v, want 0.0202", fill.PriceUSD)
	}
	if math.Abs(fill.TokenQty-500/0.0202) > 1e-9 {
		t.Errorf("TokenQty = %v, want %v", fill.TokenQty, 500/0.0202)
	}
	if fill.NotionalUSD != 500 {
		t.Errorf("NotionalUSD = %v, want 500", fill.NotionalUSD)
	}
	if !fill.Simulated {
		t.Error("paper fill not marked simulated")
	}
	if fill.Side != execution.SideBuy {
		t.Errorf("Side = %v, want buy", fill.Side)
	}
	if fill.TxSignature == "" {
		t.Error("paper fill missing synthetic signature")
	}
}

func TestClosePaperAppliesSlippageDown(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModePaper}
	r := newTestRouter(mode, nil)

	fill, err := r.Close(context.Background(), execution.CloseRequest{
		PositionID:       "pos-1",
		Address:          testMint,
		TokenQty:         1000,
		ExpectedPriceUSD: 0.05,
	})
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Sells fill below the reference: 0.05 * (1 - 0.01) = 0.0495.
	if math.Abs(fill.PriceUSD-0.0495) > 1e-12 {
		t.Errorf("PriceUSD = %v, want 0.0495", fill.PriceUSD)
	}
	if math.Abs(fill.NotionalUSD-49.5) > 1e-9 {
		t.Errorf("NotionalUSD = %v, want 49.5", fill.NotionalUSD)
	}
	if fill.Side != execution.SideSell {
		t.Errorf("Side = %v, want sell", fill.Side)
	}
}

func TestAlertsOnlyBlocksRouting(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeAlertsOnly}
	r := newTestRouter(mode, stub.NewVenue())

	if _, err := r.Open(context.Background(), execution.OpenRequest{PositionID: "pos-1", Address: testMint}); !errors.Is(err, execution.ErrModeBlocked) {
		t.Fatalf("Open err = %v, want ErrModeBlocked", err)
	}
	if _, err := r.Close(context.Background(), execution.CloseRequest{PositionID: "pos-1", Address: testMint}); !errors.Is(err, execution.ErrModeBlocked) {
		t.Fatalf("Close err = %v, want ErrModeBlocked", err)
	}
}

func TestLiveRoutesThroughVenue(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeLive}
	venue := stub.NewVenue()
	venue.AddFill(testMint, &execution.VenueFill{
		OrderID:     "ord-1",
		PriceUSD:    0.021,
		TokenQty:    23809.5,
		TxSignature: "sig-live-1",
	})
	r := newTestRouter(mode, venue)

	fill, err := r.Open(context.Background(), execution.OpenRequest{
		PositionID:       "pos-1",
		Address:          testMint,
		NotionalUSD:      500,
		ExpectedPriceUSD: 0.02,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if fill.Simulated {
		t.Error("live fill marked simulated")
	}
	if fill.TxSignature != "sig-live-1" {
		t.Errorf("TxSignature = %q, want sig-live-1", fill.TxSignature)
	}
	if fill.Venue != "stub" {
		t.Errorf("Venue = %q, want stub", fill.Venue)
	}
	if math.Abs(fill.NotionalUSD-0.021*23809.5) > 1e-9 {
		t.Errorf("NotionalUSD = %v, want %v", fill.NotionalUSD, 0.021*23809.5)
	}
	if venue.Calls(testMint) != 1 {
		t.Errorf("venue calls = %d, want 1", venue.Calls(testMint))
	}
}

func TestLiveRetriesOnceOnTransient(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeLive}
	venue := stub.NewVenue()
	venue.AddFill(testMint, &execution.VenueFill{PriceUSD: 0.02, TokenQty: 100, TxSignature: "sig-2"})
	venue.FailFirst(testMint, 1)
	r := newTestRouter(mode, venue)

	fill, err := r.Open(context.Background(), execution.OpenRequest{
		PositionID: "pos-1", Address: testMint, NotionalUSD: 2, ExpectedPriceUSD: 0.02,
	})
	if err != nil {
		t.Fatalf("Open after one transient failure: %v", err)
	}
	if fill.TxSignature != "sig-2" {
		t.Errorf("TxSignature = %q, want sig-2", fill.TxSignature)
	}
	if venue.Calls(testMint) != 2 {
		t.Errorf("venue calls = %d, want 2", venue.Calls(testMint))
	}
}

func TestLiveGivesUpAfterSecondTransient(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeLive}
	venue := stub.NewVenue()
	venue.AddFill(testMint, &execution.VenueFill{PriceUSD: 0.02, TokenQty: 100})
	venue.FailFirst(testMint, 2)
	r := newTestRouter(mode, venue)

	_, err := r.Open(context.Background(), execution.OpenRequest{
		PositionID: "pos-1", Address: testMint, NotionalUSD: 2, ExpectedPriceUSD: 0.02,
	})
	if err == nil {
		t.Fatal("expected error after two transient failures")
	}
	if !execution.IsRetryable(err) {
		t.Errorf("error lost its transient classification: %v", err)
	}
	if venue.Calls(testMint) != 2 {
		t.Errorf("venue calls = %d, want exactly 2 (one retry)", venue.Calls(testMint))
	}
}

func TestLivePermanentErrorNotRetried(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeLive}
	venue := stub.NewVenue()
	venue.AddError(testMint, &execution.VenueError{Op: "buy", StatusCode: 400, Message: "insufficient liquidity"})
	r := newTestRouter(mode, venue)

	_, err := r.Open(context.Background(), execution.OpenRequest{
		PositionID: "pos-1", Address: testMint, NotionalUSD: 2, ExpectedPriceUSD: 0.02,
	})
	if err == nil {
		t.Fatal("expected venue rejection")
	}
	if execution.IsRetryable(err) {
		t.Errorf("rejection classified transient: %v", err)
	}
	if venue.Calls(testMint) != 1 {
		t.Errorf("venue calls = %d, want 1 (no retry)", venue.Calls(testMint))
	}
}

func TestLiveWithoutVenueFailsClosed(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModeLive}
	r := newTestRouter(mode, nil)

	_, err := r.Open(context.Background(), execution.OpenRequest{PositionID: "pos-1", Address: testMint})
	if !errors.Is(err, execution.ErrNoVenue) {
		t.Fatalf("err = %v, want ErrNoVenue", err)
	}
}

func TestModeResolvedAtRoutingTime(t *testing.T) {
	mode := &modeSwitch{mode: domain.ModePaper}
	r := newTestRouter(mode, stub.NewVenue())

	// A kill that lands before routing blocks the order even though the
	// decision was made in PAPER.
	mode.set(domain.ModeAlertsOnly)
	_, err := r.Open(context.Background(), execution.OpenRequest{PositionID: "pos-1", Address: testMint})
	if !errors.Is(err, execution.ErrModeBlocked) {
		t.Fatalf("err = %v, want ErrModeBlocked", err)
	}
}
