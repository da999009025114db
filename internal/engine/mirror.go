package engine

import (
	"context"
	"time"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/observability"
)

const (
	// mirrorBuffer is the channel capacity between journal writers and
	// the mirror loop. When full, entries are dropped rather than
	// stalling the admission pipeline; ClickHouse is best-effort.
	mirrorBuffer = 256

	// mirrorBatch is the insert batch size.
	mirrorBatch = 64

	// mirrorInterval flushes partial batches at least this often.
	mirrorInterval = 5 * time.Second

	// mirrorFlushTimeout bounds a single bulk insert.
	mirrorFlushTimeout = 10 * time.Second
)

// mirrorLoop forwards journal entries to the analytics store in batches.
// On shutdown it drains whatever is buffered before returning.
func (e *Engine) mirrorLoop(ctx context.Context) error {
	ticker := time.NewTicker(mirrorInterval)
	defer ticker.Stop()

	batch := make([]*domain.JournalEntry, 0, mirrorBatch)

	for {
		select {
		case <-ctx.Done():
			e.drainMirror(batch)
			return ctx.Err()
		case entry := <-e.mirrorCh:
			batch = append(batch, entry)
			if len(batch) >= mirrorBatch {
				e.flushMirror(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				e.flushMirror(batch)
				batch = batch[:0]
			}
		}
	}
}

// drainMirror flushes the pending batch plus anything still queued.
func (e *Engine) drainMirror(batch []*domain.JournalEntry) {
	for {
		select {
		case entry := <-e.mirrorCh:
			batch = append(batch, entry)
		default:
			if len(batch) > 0 {
				e.flushMirror(batch)
			}
			return
		}
	}
}

// flushMirror performs one bulk insert with its own deadline. The loop
// context may already be cancelled during drain, so the flush context
// is independent of it.
func (e *Engine) flushMirror(batch []*domain.JournalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorFlushTimeout)
	defer cancel()

	err := e.analytics.InsertBulk(ctx, batch)
	if err != nil {
		e.logger.Printf("mirror flush of %d entries: %v", len(batch), err)
	}
	observability.RecordMirrorFlush(err)
}
