// Package midi announces patch-bay state as MIDI Control Change messages.
package midi

import (
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2"

	"github.com/sweeney/patchbay/internal/patch"
)

// MaxValue is the largest Control Change value. It limits a MIDI-connected
// patch bay to 7 inputs.
const MaxValue = 127

// Sink writes one Control Change per event to a raw MIDI stream.
type Sink struct {
	w       io.Writer
	closer  io.Closer
	channel uint8
}

// NewSink writes Control Change messages on channel (0-15) to w.
func NewSink(w io.Writer, channel uint8) *Sink {
	return &Sink{w: w, channel: channel}
}

// Open opens a raw MIDI device such as /dev/snd/midiC1D0 or a USB gadget
// node for writing.
func Open(path string, channel uint8) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open midi device: %w", err)
	}
	s := NewSink(f, channel)
	s.closer = f
	return s, nil
}

// Send writes the event as Control Change (controller, value).
func (s *Sink) Send(event patch.Event) error {
	if event.Value > MaxValue {
		return fmt.Errorf("value %d for controller %d does not fit a control change", event.Value, event.Controller)
	}
	msg := midi.ControlChange(s.channel, event.Controller, uint8(event.Value))
	if _, err := s.w.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("write control change: %w", err)
	}
	return nil
}

// Close closes the device if Open created it.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
