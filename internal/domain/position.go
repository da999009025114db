package domain

// PositionStatus is the lifecycle state of a position record.
type PositionStatus string

// Position lifecycle: PENDING_RESERVE -> RESERVED -> OPEN -> CLOSED.
// RELEASED is terminal for reserved positions whose execution failed.
// REJECTED_* are terminal states assigned before any reservation.
const (
	StatusPendingReserve PositionStatus = "PENDING_RESERVE"
	StatusReserved       PositionStatus = "RESERVED"
	StatusOpen           PositionStatus = "OPEN"
	StatusClosed         PositionStatus = "CLOSED"
	StatusReleased       PositionStatus = "RELEASED"
	StatusRejectedGate   PositionStatus = "REJECTED_GATE"
	StatusRejectedSizing PositionStatus = "REJECTED_SIZING"
	StatusRejectedMode   PositionStatus = "REJECTED_MODE"
)

// String returns the string representation of the status.
func (s PositionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s PositionStatus) IsValid() bool {
	switch s {
	case StatusPendingReserve, StatusReserved, StatusOpen, StatusClosed,
		StatusReleased, StatusRejectedGate, StatusRejectedSizing, StatusRejectedMode:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s PositionStatus) Terminal() bool {
	switch s {
	case StatusClosed, StatusReleased, StatusRejectedGate, StatusRejectedSizing, StatusRejectedMode:
		return true
	}
	return false
}

// Position represents one admission attempt and, when executed, the
// resulting holding. Corresponds to the positions table in PostgreSQL.
// Mutated only by the admission pipeline and the execution router.
type Position struct {
	PositionID string // PRIMARY KEY, UUID
	Address    string // token mint address
	Symbol     string
	Source     string         // detector identity
	Mode       Mode           // operating mode at admission time
	Status     PositionStatus // lifecycle state
	Reason     string         // rejection or failure reason code, empty otherwise

	Score       float64 // graduation score at admission
	NotionalUSD float64 // sized notional

	// Fill details, zero until the router reports them
	EntryPriceUSD  float64
	ExitPriceUSD   float64
	TokenQty       float64 // NotionalUSD / EntryPriceUSD
	RealizedPnLUSD float64
	TxSignature    string // venue transaction signature, empty for paper
	Simulated      bool   // true for paper fills

	OpenedAt  int64 // fill timestamp (ms), 0 until open
	ClosedAt  int64 // close timestamp (ms), 0 until closed
	CreatedAt int64 // record creation timestamp (ms)
	UpdatedAt int64 // last mutation timestamp (ms)
}
