// Package config holds the daemon configuration: jack wiring, timing and
// outbound channels. Defaults can be overlaid by a JSON file and then by
// command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/patchbay/internal/midi"
	"github.com/sweeney/patchbay/internal/patch"
)

// Pin drivers.
const (
	DriverCdev   = "cdev"
	DriverPeriph = "periph"
	DriverRpio   = "rpio"
	DriverFake   = "fake"
)

// Duration is a time.Duration that reads and writes as "5ms" in JSON.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5ms\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Output wires one output jack to a controller number.
type Output struct {
	Line       int `json:"line"`
	Controller int `json:"controller"`
}

// Config is the full daemon configuration.
type Config struct {
	Driver      string   `json:"driver"`
	Chip        string   `json:"chip"`
	Inputs      []int    `json:"inputs"`
	Outputs     []Output `json:"outputs"`
	MIDIDevice  string   `json:"midi_device"`
	MIDIChannel int      `json:"midi_channel"`
	LoopDelay   Duration `json:"loop_delay"`
	Pace        Duration `json:"pace"`
	Resync      Duration `json:"resync"`
	Settle      Duration `json:"settle"`
	Debug       bool     `json:"debug"`
	Broker      string   `json:"broker"`
	Heartbeat   Duration `json:"heartbeat"`
	HTTPAddr    string   `json:"http_addr"`
	LogLevel    string   `json:"log_level"`
}

// Default returns the five-by-five jack wiring on a Raspberry Pi header,
// announcing outputs on controllers 16-20 of MIDI channel 1.
func Default() Config {
	return Config{
		Driver: DriverCdev,
		Chip:   "gpiochip0",
		Inputs: []int{5, 6, 13, 19, 26},
		Outputs: []Output{
			{Line: 17, Controller: 16},
			{Line: 27, Controller: 17},
			{Line: 22, Controller: 18},
			{Line: 23, Controller: 19},
			{Line: 24, Controller: 20},
		},
		MIDIDevice:  "/dev/snd/midiC1D0",
		MIDIChannel: 0,
		LoopDelay:   Duration(5 * time.Millisecond),
		Pace:        Duration(2 * time.Millisecond),
		Resync:      Duration(5 * time.Second),
		Settle:      Duration(2 * time.Millisecond),
		Debug:       false,
		Heartbeat:   Duration(15 * time.Minute),
		HTTPAddr:    ":80",
		LogLevel:    "info",
	}
}

// Load returns the defaults overlaid by the JSON file at path. Keys missing
// from the file keep their default; lists are replaced whole.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every inconsistency in the configuration.
func (c Config) Validate() error {
	var errs []error

	switch c.Driver {
	case DriverCdev, DriverPeriph, DriverRpio, DriverFake:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}

	if len(c.Inputs) == 0 || len(c.Inputs) > patch.MaxInputs {
		errs = append(errs, fmt.Errorf("need 1 to %d inputs, got %d", patch.MaxInputs, len(c.Inputs)))
	}
	if len(c.Outputs) == 0 {
		errs = append(errs, errors.New("need at least one output"))
	}
	if c.MIDIDevice != "" && len(c.Inputs) > 7 {
		errs = append(errs, fmt.Errorf("%d inputs do not fit a 7-bit control change value", len(c.Inputs)))
	}

	seen := make(map[int]bool)
	for _, line := range c.Lines() {
		if seen[line] {
			errs = append(errs, fmt.Errorf("line %d used more than once", line))
		}
		seen[line] = true
	}
	for i, o := range c.Outputs {
		if o.Controller < 0 || o.Controller > midi.MaxValue {
			errs = append(errs, fmt.Errorf("output %d: controller %d out of range 0-127", i, o.Controller))
		}
	}
	if c.MIDIChannel < 0 || c.MIDIChannel > 15 {
		errs = append(errs, fmt.Errorf("midi channel %d out of range 0-15", c.MIDIChannel))
	}

	if c.LoopDelay < 0 {
		errs = append(errs, errors.New("loop delay must not be negative"))
	}
	if c.Pace < 0 {
		errs = append(errs, errors.New("pace must not be negative"))
	}
	if c.Resync <= 0 {
		errs = append(errs, errors.New("resync interval must be positive"))
	}
	if c.Settle <= 0 {
		errs = append(errs, errors.New("settle delay must be positive"))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}

// Lines returns every configured line, inputs first.
func (c Config) Lines() []int {
	lines := append([]int(nil), c.Inputs...)
	for _, o := range c.Outputs {
		lines = append(lines, o.Line)
	}
	return lines
}

// OutputLines returns the output line numbers in jack order.
func (c Config) OutputLines() []int {
	lines := make([]int, len(c.Outputs))
	for i, o := range c.Outputs {
		lines[i] = o.Line
	}
	return lines
}

// PatchOutputs converts the outputs for the scanner and transmitter.
// Call Validate first.
func (c Config) PatchOutputs() []patch.Output {
	outs := make([]patch.Output, len(c.Outputs))
	for i, o := range c.Outputs {
		outs[i] = patch.Output{Line: o.Line, Controller: uint8(o.Controller)}
	}
	return outs
}
