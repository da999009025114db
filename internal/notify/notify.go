// Package notify delivers operator alerts through pluggable sinks.
package notify

import (
	"context"
	"log"
)

// Severity ranks an event for the operator.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one operator notification.
type Event struct {
	Severity Severity
	Title    string
	Body     string
}

// Notifier delivers events to an operator channel. Implementations must
// be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Info builds an INFO event.
func Info(title, body string) Event {
	return Event{Severity: SeverityInfo, Title: title, Body: body}
}

// Warn builds a WARN event.
func Warn(title, body string) Event {
	return Event{Severity: SeverityWarn, Title: title, Body: body}
}

// Critical builds a CRITICAL event.
func Critical(title, body string) Event {
	return Event{Severity: SeverityCritical, Title: title, Body: body}
}

// Log writes events to a standard logger.
type Log struct {
	logger *log.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger}
}

// Notify writes the event as one log line.
func (l *Log) Notify(_ context.Context, ev Event) error {
	l.logger.Printf("%s %s: %s", ev.Severity, ev.Title, ev.Body)
	return nil
}

// Multi fans an event out to every sink. Every sink sees the event even
// when an earlier one fails; the first error is returned.
type Multi struct {
	sinks []Notifier
}

// NewMulti creates a Multi over the given sinks.
func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

// Notify delivers the event to all sinks.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Noop discards every event.
type Noop struct{}

// Notify discards the event.
func (Noop) Notify(context.Context, Event) error { return nil }
