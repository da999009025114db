package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/execution"
)

// ErrNoFill is returned when no fill is scripted for an address.
var ErrNoFill = errors.New("no fill scripted")

// Venue implements execution.VenueClient for testing. Fills and errors
// are scripted per token address.
type Venue struct {
	mu sync.Mutex

	Fills map[string]*execution.VenueFill
	Errs  map[string]error
	// TransientFirst fails the first N submissions for an address with
	// a retryable error before serving the scripted fill.
	TransientFirst map[string]int

	calls map[string]int
}

// NewVenue creates a stub venue client.
func NewVenue() *Venue {
	return &Venue{
		Fills:          make(map[string]*execution.VenueFill),
		Errs:           make(map[string]error),
		TransientFirst: make(map[string]int),
		calls:          make(map[string]int),
	}
}

// Name identifies the venue for journaling.
func (v *Venue) Name() string { return "stub" }

// Submit serves the scripted outcome for the order's address.
func (v *Venue) Submit(_ context.Context, order execution.VenueOrder) (*execution.VenueFill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.calls[order.Address]++

	if n := v.TransientFirst[order.Address]; n > 0 {
		v.TransientFirst[order.Address] = n - 1
		return nil, &execution.VenueError{
			Op:         string(order.Side),
			StatusCode: 503,
			Message:    "scripted transient failure",
			Retryable:  true,
		}
	}

	if err, ok := v.Errs[order.Address]; ok {
		return nil, err
	}

	fill, ok := v.Fills[order.Address]
	if !ok {
		return nil, ErrNoFill
	}
	out := *fill
	return &out, nil
}

// AddFill scripts a fill for an address.
func (v *Venue) AddFill(address string, fill *execution.VenueFill) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Fills[address] = fill
}

// AddError scripts an error for an address.
func (v *Venue) AddError(address string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Errs[address] = err
}

// FailFirst scripts n retryable failures before fills for an address.
func (v *Venue) FailFirst(address string, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.TransientFirst[address] = n
}

// Calls reports how many submissions an address has received.
func (v *Venue) Calls(address string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[address]
}
