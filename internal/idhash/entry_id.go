package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// ComputeEntryID computes a deterministic journal entry_id using SHA256.
// Formula: SHA256(kind|address|position_id|cause|created_at_ms)
// Returns hex-encoded hash (64 characters).
//
// Two identical logical events hash to the same ID, so replayed writes
// are rejected by the append-only store instead of duplicating history.
func ComputeEntryID(
	kind domain.JournalKind,
	address string,
	positionID string,
	cause string,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		string(kind),
		address,
		positionID,
		cause,
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
