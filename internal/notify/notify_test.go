package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestLogNotify(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(log.New(&buf, "", 0))

	err := n.Notify(context.Background(), Warn("Loss Cap", "realized -2.1% of equity"))
	if err != nil {
		t.Fatalf("log notify: %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "WARN") {
		t.Errorf("expected severity in output, got %q", line)
	}
	if !strings.Contains(line, "Loss Cap") {
		t.Errorf("expected title in output, got %q", line)
	}
	if !strings.Contains(line, "realized -2.1% of equity") {
		t.Errorf("expected body in output, got %q", line)
	}
}

func TestMultiNotifyFanOut(t *testing.T) {
	a := &recorder{}
	b := &recorder{}
	m := NewMulti(a, b)

	ev := Info("Position Closed", "pnl +12.50 USD")
	if err := m.Notify(context.Background(), ev); err != nil {
		t.Fatalf("multi notify: %v", err)
	}

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks notified, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0] != ev {
		t.Errorf("expected event passed through, got %+v", a.events[0])
	}
}

func TestMultiNotifyFirstError(t *testing.T) {
	errA := errors.New("sink a down")
	a := &recorder{err: errA}
	b := &recorder{err: errors.New("sink b down")}
	m := NewMulti(a, b)

	err := m.Notify(context.Background(), Info("test", ""))
	if !errors.Is(err, errA) {
		t.Fatalf("expected first error returned, got %v", err)
	}

	// A failing sink must not block the others.
	if len(b.events) != 1 {
		t.Errorf("expected second sink still notified, got %d events", len(b.events))
	}
}

func TestNoopNotify(t *testing.T) {
	if err := (Noop{}).Notify(context.Background(), Critical("test", "")); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestEventConstructors(t *testing.T) {
	if ev := Info("a", "b"); ev.Severity != SeverityInfo {
		t.Errorf("expected INFO, got %s", ev.Severity)
	}
	if ev := Warn("a", "b"); ev.Severity != SeverityWarn {
		t.Errorf("expected WARN, got %s", ev.Severity)
	}
	if ev := Critical("a", "b"); ev.Severity != SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", ev.Severity)
	}
}
