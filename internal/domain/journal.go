package domain

// JournalKind classifies journal entries.
type JournalKind string

const (
	JournalCandidate     JournalKind = "candidate"
	JournalIntakeDrop    JournalKind = "intake_drop"
	JournalGate          JournalKind = "gate"
	JournalScore         JournalKind = "score"
	JournalSizing        JournalKind = "sizing"
	JournalReservation   JournalKind = "reservation"
	JournalExecution     JournalKind = "execution"
	JournalPositionOpen  JournalKind = "position_open"
	JournalPositionClose JournalKind = "position_close"
	JournalModeChange    JournalKind = "mode_transition"
	JournalAdmin         JournalKind = "admin"
	JournalHalt          JournalKind = "halt"
)

// String returns the string representation of the kind.
func (k JournalKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k JournalKind) IsValid() bool {
	switch k {
	case JournalCandidate, JournalIntakeDrop, JournalGate, JournalScore,
		JournalSizing, JournalReservation, JournalExecution,
		JournalPositionOpen, JournalPositionClose, JournalModeChange,
		JournalAdmin, JournalHalt:
		return true
	}
	return false
}

// JournalEntry is one append-only audit record. Every pipeline step,
// mode transition, and admin command produces one.
// Corresponds to the journal_entries table in PostgreSQL.
type JournalEntry struct {
	EntryID    string      // PRIMARY KEY, deterministic hash
	Kind       JournalKind // entry classification
	Address    string      // triggering candidate address, empty for system entries
	PositionID string      // related position, empty when none exists yet
	Cause      string      // short machine-readable cause code
	Detail     string      // kind-specific JSON document
	CreatedAt  int64       // record creation timestamp (ms)
}
