package transmit

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/patchbay/internal/patch"
)

// clock is a fake time source; sleeping advances it.
type clock struct {
	t     time.Time
	slept []time.Duration
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

var testOutputs = []patch.Output{
	{Line: 4, Controller: 16},
	{Line: 14, Controller: 17},
	{Line: 15, Controller: 18},
	{Line: 9, Controller: 19},
	{Line: 10, Controller: 20},
}

func newTestTransmitter(sink Sink, c *clock, debug io.Writer) *Transmitter {
	return New(sink, testOutputs, Options{
		Pace:   DefaultPace,
		Width:  5,
		Debug:  debug,
		Now:    c.now,
		Sleep:  c.sleep,
		Logger: log.New(io.Discard),
	})
}

func TestEmitOnlyChangedOutputs(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	graph := patch.Matrix{0b10000, 0, 0b00110, 0, 0}
	changes := patch.ChangeMask{0b10000, 0, 0b00010, 0, 0}

	n := tx.Emit(graph, changes, false)
	if n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(rec.Events))
	}

	want := []patch.Event{
		{Output: 0, Controller: 16, Value: 0b10000},
		{Output: 2, Controller: 18, Value: 0b00110},
	}
	for i, w := range want {
		got := rec.Events[i]
		if got.Output != w.Output || got.Controller != w.Controller || got.Value != w.Value {
			t.Errorf("event %d: got %+v, want output=%d cc=%d value=%05b", i, got, w.Output, w.Controller, w.Value)
		}
		if got.Forced {
			t.Errorf("event %d: should not be marked forced", i)
		}
	}
}

func TestEmitForceAll(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	graph := patch.Matrix{0b10000, 0, 0, 0, 0b00001}
	changes := make(patch.ChangeMask, 5)

	if n := tx.Emit(graph, changes, true); n != 5 {
		t.Fatalf("expected 5 events, got %d", n)
	}
	for i, e := range rec.Events {
		if e.Output != i {
			t.Errorf("event %d: expected output order, got output %d", i, e.Output)
		}
		if e.Controller != testOutputs[i].Controller {
			t.Errorf("event %d: got controller %d, want %d", i, e.Controller, testOutputs[i].Controller)
		}
		if e.Value != graph[i] {
			t.Errorf("event %d: got value %05b, want %05b", i, e.Value, graph[i])
		}
		if !e.Forced {
			t.Errorf("event %d: expected forced", i)
		}
	}
}

func TestEmitNothingWhenQuiet(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	if n := tx.Emit(make(patch.Matrix, 5), make(patch.ChangeMask, 5), false); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
	if len(c.slept) != 0 {
		t.Errorf("expected no pacing waits, got %v", c.slept)
	}
}

func TestEmitPacesConsecutiveSends(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	graph := make(patch.Matrix, 5)
	changes := make(patch.ChangeMask, 5)

	tx.Emit(graph, changes, true)
	// Back-to-back cycle: the first send of the next call is paced too.
	c.t = c.t.Add(500 * time.Microsecond)
	tx.Emit(graph, changes, true)

	if len(rec.Events) != 10 {
		t.Fatalf("expected 10 events, got %d", len(rec.Events))
	}
	for i := 1; i < len(rec.Events); i++ {
		gap := rec.Events[i].Time.Sub(rec.Events[i-1].Time)
		if gap < DefaultPace {
			t.Errorf("events %d and %d only %v apart, want >= %v", i-1, i, gap, DefaultPace)
		}
	}
}

func TestEmitSkipsWaitWhenPaceAlreadyElapsed(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	graph := make(patch.Matrix, 5)
	changes := patch.ChangeMask{1, 0, 0, 0, 0}

	tx.Emit(graph, changes, false)
	c.t = c.t.Add(time.Second)
	tx.Emit(graph, changes, false)

	if len(c.slept) != 0 {
		t.Errorf("expected no waits, got %v", c.slept)
	}
}

func TestEmitSendErrorContinues(t *testing.T) {
	rec := &Recorder{SendError: errors.New("simulated send error")}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tx := newTestTransmitter(rec, c, nil)

	n := tx.Emit(make(patch.Matrix, 5), make(patch.ChangeMask, 5), true)
	if n != 0 {
		t.Errorf("expected 0 delivered events, got %d", n)
	}
	if tx.Failed() != 5 {
		t.Errorf("expected 5 failed sends, got %d", tx.Failed())
	}
	// Failed sends still occupy the link, so pacing applies between attempts.
	if len(c.slept) != 4 {
		t.Errorf("expected 4 pacing waits, got %d", len(c.slept))
	}

	rec.Reset()
	tx.Emit(make(patch.Matrix, 5), make(patch.ChangeMask, 5), true)
	if tx.Sent() != 5 {
		t.Errorf("expected 5 sent after recovery, got %d", tx.Sent())
	}
}

func TestEmitDebugOutput(t *testing.T) {
	rec := &Recorder{}
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	var buf bytes.Buffer
	tx := newTestTransmitter(rec, c, &buf)

	graph := patch.Matrix{0b10000, 0, 0, 0, 0b00011}
	tx.Emit(graph, patch.ChangeMask{0b10000, 0, 0, 0, 0}, false)

	if got, want := buf.String(), "16: 10000\n"; got != want {
		t.Errorf("debug after change: got %q, want %q", got, want)
	}

	buf.Reset()
	tx.Emit(graph, make(patch.ChangeMask, 5), true)
	want := "\n16: 10000\n17: 00000\n18: 00000\n19: 00000\n20: 00011\n"
	if buf.String() != want {
		t.Errorf("debug after resync: got %q, want %q", buf.String(), want)
	}
}

type failingSink struct{ err error }

func (f failingSink) Send(patch.Event) error { return f.err }

func TestSinksFanOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	boom := errors.New("boom")
	sinks := Sinks{a, failingSink{boom}, b}

	err := sinks.Send(patch.Event{Controller: 16, Value: 3})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Errorf("expected every healthy sink to receive the event, got %d and %d", len(a.Events), len(b.Events))
	}

	if err := (Sinks{a, b}).Send(patch.Event{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
