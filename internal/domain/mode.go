package domain

import "fmt"

// Mode is the engine operating mode.
type Mode string

const (
	// ModePaper simulates every fill; no venue is touched.
	ModePaper Mode = "PAPER"
	// ModeLive routes orders to the execution venue.
	ModeLive Mode = "LIVE"
	// ModeAlertsOnly evaluates and alerts but blocks all order flow.
	ModeAlertsOnly Mode = "ALERTS_ONLY"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is a known value.
func (m Mode) IsValid() bool {
	return m == ModePaper || m == ModeLive || m == ModeAlertsOnly
}

// ParseMode converts a string to a Mode, case-sensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}
