// Package transmit turns scan results into paced output events.
package transmit

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/patchbay/internal/patch"
)

// DefaultPace is the minimum gap between two sends, so a burst of changes
// cannot saturate a MIDI link.
const DefaultPace = 2 * time.Millisecond

// Sink delivers one event to the outside world.
type Sink interface {
	Send(event patch.Event) error
}

// Sinks sends every event to each sink in turn.
type Sinks []Sink

// Send delivers event to every sink and joins their errors.
func (s Sinks) Send(event patch.Event) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Send(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options configures a Transmitter. Zero values fall back to defaults.
type Options struct {
	Pace   time.Duration
	Width  int       // number of inputs, for debug formatting
	Debug  io.Writer // if set, one line per sent event
	Now    func() time.Time
	Sleep  func(time.Duration)
	Logger *log.Logger
}

// Transmitter emits changed outputs to a sink, at most one event per Pace.
// Events are never queued: Emit blocks until every due event has been sent.
type Transmitter struct {
	sink     Sink
	outputs  []patch.Output
	pace     time.Duration
	width    int
	debug    io.Writer
	now      func() time.Time
	sleep    func(time.Duration)
	logger   *log.Logger
	lastSent time.Time
	sent     int
	failed   int
}

// New creates a Transmitter for the given outputs.
func New(sink Sink, outputs []patch.Output, opts Options) *Transmitter {
	t := &Transmitter{
		sink:    sink,
		outputs: outputs,
		pace:    opts.Pace,
		width:   opts.Width,
		debug:   opts.Debug,
		now:     opts.Now,
		sleep:   opts.Sleep,
		logger:  opts.Logger,
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.sleep == nil {
		t.sleep = time.Sleep
	}
	if t.logger == nil {
		t.logger = log.Default()
	}
	return t
}

// Emit sends the state of every output whose change mask is non-zero, or of
// every output when forceAll is set. It returns the number of events sent.
// A failed send is logged and does not stop the remaining outputs.
func (t *Transmitter) Emit(graph patch.Matrix, changes patch.ChangeMask, forceAll bool) int {
	if forceAll && t.debug != nil {
		fmt.Fprintln(t.debug)
	}

	n := 0
	for i, o := range t.outputs {
		if changes[i] == 0 && !forceAll {
			continue
		}
		t.wait()

		event := patch.Event{
			Time:       t.now(),
			Output:     i,
			Controller: o.Controller,
			Value:      graph[i],
			Forced:     forceAll,
		}
		err := t.sink.Send(event)
		t.lastSent = t.now()
		if err != nil {
			t.failed++
			t.logger.Error("send failed", "controller", o.Controller, "value", graph[i], "err", err)
			continue
		}
		t.sent++
		n++

		if t.debug != nil {
			fmt.Fprintf(t.debug, "%d: %s\n", o.Controller, patch.FormatBits(graph[i], t.width))
		}
	}
	return n
}

// wait blocks until Pace has passed since the previous send.
func (t *Transmitter) wait() {
	if t.lastSent.IsZero() {
		return
	}
	if d := t.pace - t.now().Sub(t.lastSent); d > 0 {
		t.sleep(d)
	}
}

// Sent returns the number of events delivered since startup.
func (t *Transmitter) Sent() int {
	return t.sent
}

// Failed returns the number of sends that returned an error.
func (t *Transmitter) Failed() int {
	return t.failed
}
