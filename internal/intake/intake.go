package intake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// Intake errors.
var (
	// ErrInvalidAddress is returned when the mint address fails validation.
	ErrInvalidAddress = errors.New("invalid mint address")

	// ErrInvalidCandidate is returned when required candidate fields are missing.
	ErrInvalidCandidate = errors.New("invalid candidate")

	// ErrDuplicate is returned for an address already inside the dedup window
	// or carrying an unresolved decision. Duplicates are dropped, not merged.
	ErrDuplicate = errors.New("duplicate candidate")

	// ErrPaused is returned while intake is paused.
	ErrPaused = errors.New("intake paused")

	// ErrBacklog is returned when the candidate queue is full.
	ErrBacklog = errors.New("intake backlog full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("intake closed")
)

// ValidateAddress checks that addr is a base58-encoded 32-byte ed25519
// point. Launchpad mints are keypair-generated, so the point must lie on
// the curve; program-derived addresses do not.
func ValidateAddress(addr string) error {
	if addr == "" {
		return ErrInvalidAddress
	}
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return ErrInvalidAddress
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return ErrInvalidAddress
	}
	return nil
}

type seenEntry struct {
	firstSeen time.Time
	resolved  bool
}

// Options contains configuration for creating an Intake.
type Options struct {
	DedupTTL time.Duration    // rolling dedup window per address
	Buffer   int              // bounded queue length
	Clock    func() time.Time // defaults to time.Now
}

// Intake is the single entry point for detector events: it validates,
// deduplicates by address, and feeds the bounded candidate queue.
type Intake struct {
	mu     sync.Mutex
	seen   map[string]*seenEntry
	paused bool
	closed bool

	out    chan domain.Candidate
	stopCh chan struct{}
	wg     sync.WaitGroup

	ttl   time.Duration
	clock func() time.Time

	// Counters for the status surface.
	accepted         atomic.Int64
	droppedDuplicate atomic.Int64
	droppedPaused    atomic.Int64
	droppedBacklog   atomic.Int64
	droppedInvalid   atomic.Int64
}

// Stats is a point-in-time intake summary.
type Stats struct {
	Tracked          int   `json:"tracked"`
	Paused           bool  `json:"paused"`
	Accepted         int64 `json:"accepted"`
	DroppedDuplicate int64 `json:"dropped_duplicate"`
	DroppedPaused    int64 `json:"dropped_paused"`
	DroppedBacklog   int64 `json:"dropped_backlog"`
	DroppedInvalid   int64 `json:"dropped_invalid"`
}

// New creates an Intake and starts its dedup janitor.
func New(opts Options) *Intake {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 30 * time.Minute
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	in := &Intake{
		seen:   make(map[string]*seenEntry),
		out:    make(chan domain.Candidate, opts.Buffer),
		stopCh: make(chan struct{}),
		ttl:    opts.DedupTTL,
		clock:  opts.Clock,
	}

	in.wg.Add(1)
	go in.janitor()

	return in
}

// Submit validates and enqueues a candidate. The call never blocks: a
// full queue returns ErrBacklog instead of applying backpressure to the
// detector.
func (in *Intake) Submit(_ context.Context, c domain.Candidate) error {
	if err := ValidateAddress(c.Address); err != nil {
		in.droppedInvalid.Add(1)
		return err
	}
	if c.LastPriceUSD <= 0 || c.Source == "" {
		in.droppedInvalid.Add(1)
		return ErrInvalidCandidate
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return ErrClosed
	}
	if in.paused {
		in.droppedPaused.Add(1)
		return ErrPaused
	}

	now := in.clock()
	if entry, ok := in.seen[c.Address]; ok {
		if !entry.resolved || now.Sub(entry.firstSeen) < in.ttl {
			in.droppedDuplicate.Add(1)
			return ErrDuplicate
		}
	}
	in.seen[c.Address] = &seenEntry{firstSeen: now}

	select {
	case in.out <- c:
		in.accepted.Add(1)
		return nil
	default:
		// Do not leave a dropped candidate blocking the address.
		delete(in.seen, c.Address)
		in.droppedBacklog.Add(1)
		return ErrBacklog
	}
}

// Out returns the candidate queue consumed by the admission pipeline.
func (in *Intake) Out() <-chan domain.Candidate {
	return in.out
}

// Depth returns the number of queued candidates awaiting admission.
func (in *Intake) Depth() int {
	return len(in.out)
}

// Resolve marks the in-flight decision for an address as finished. The
// address stays deduped until its TTL elapses, then may be re-evaluated.
func (in *Intake) Resolve(address string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if entry, ok := in.seen[address]; ok {
		entry.resolved = true
	}
}

// Pause stops accepting candidates. Already-queued candidates still drain.
func (in *Intake) Pause() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.paused = true
}

// Resume re-enables candidate acceptance.
func (in *Intake) Resume() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.paused = false
}

// Paused reports whether intake is paused.
func (in *Intake) Paused() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.paused
}

// Stats returns a point-in-time summary.
func (in *Intake) Stats() Stats {
	in.mu.Lock()
	tracked := len(in.seen)
	paused := in.paused
	in.mu.Unlock()

	return Stats{
		Tracked:          tracked,
		Paused:           paused,
		Accepted:         in.accepted.Load(),
		DroppedDuplicate: in.droppedDuplicate.Load(),
		DroppedPaused:    in.droppedPaused.Load(),
		DroppedBacklog:   in.droppedBacklog.Load(),
		DroppedInvalid:   in.droppedInvalid.Load(),
	}
}

// Close stops the janitor and closes the candidate queue. Safe to call once.
func (in *Intake) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	in.mu.Unlock()

	close(in.stopCh)
	in.wg.Wait()
	close(in.out)
}

// janitor evicts resolved dedup entries whose TTL has elapsed.
func (in *Intake) janitor() {
	defer in.wg.Done()

	interval := in.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-in.stopCh:
			return
		case <-ticker.C:
			in.evictExpired()
		}
	}
}

func (in *Intake) evictExpired() {
	now := in.clock()

	in.mu.Lock()
	defer in.mu.Unlock()

	for addr, entry := range in.seen {
		if entry.resolved && now.Sub(entry.firstSeen) >= in.ttl {
			delete(in.seen, addr)
		}
	}
}
