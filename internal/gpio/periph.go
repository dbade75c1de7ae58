//go:build linux

package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPinSet drives jack pins through periph.io. periph has no open-drain
// mode, so a released output is switched to a floating input and a low
// output is actively driven.
type PeriphPinSet struct {
	inputs  []pgpio.PinIO
	outputs []pgpio.PinIO
}

// NewPeriphPinSet initialises the periph host drivers and looks up each pin
// by its BCM number ("GPIO17").
func NewPeriphPinSet(inputs, outputs []int) (*PeriphPinSet, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	p := &PeriphPinSet{}
	for _, n := range inputs {
		pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if pin == nil {
			return nil, fmt.Errorf("input pin GPIO%d not found", n)
		}
		p.inputs = append(p.inputs, pin)
	}
	for _, n := range outputs {
		pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if pin == nil {
			return nil, fmt.Errorf("output pin GPIO%d not found", n)
		}
		p.outputs = append(p.outputs, pin)
	}
	if err := p.DriveAllLow(); err != nil {
		return nil, err
	}
	return p, nil
}

// DriveAllLow pulls every input down and drives every output low.
func (p *PeriphPinSet) DriveAllLow() error {
	for i, pin := range p.inputs {
		if err := pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			return fmt.Errorf("pull down input %d: %w", i, err)
		}
	}
	for i, pin := range p.outputs {
		if err := pin.Out(pgpio.Low); err != nil {
			return fmt.Errorf("drive output %d low: %w", i, err)
		}
	}
	return nil
}

// FloatAll disables input pulls and releases every output.
func (p *PeriphPinSet) FloatAll() error {
	for i, pin := range p.inputs {
		if err := pin.In(pgpio.Float, pgpio.NoEdge); err != nil {
			return fmt.Errorf("float input %d: %w", i, err)
		}
	}
	for i, pin := range p.outputs {
		if err := pin.In(pgpio.Float, pgpio.NoEdge); err != nil {
			return fmt.Errorf("release output %d: %w", i, err)
		}
	}
	return nil
}

// Select drives output out low and pulls input in up.
func (p *PeriphPinSet) Select(out, in int) error {
	if err := checkIndex("output", out, len(p.outputs)); err != nil {
		return err
	}
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return err
	}
	if err := p.outputs[out].Out(pgpio.Low); err != nil {
		return fmt.Errorf("drive output %d low: %w", out, err)
	}
	if err := p.inputs[in].In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return fmt.Errorf("pull up input %d: %w", in, err)
	}
	return nil
}

// Connected reports whether input in reads low.
func (p *PeriphPinSet) Connected(in int) (bool, error) {
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return false, err
	}
	return p.inputs[in].Read() == pgpio.Low, nil
}

// Inputs returns the number of input pins.
func (p *PeriphPinSet) Inputs() int { return len(p.inputs) }

// Outputs returns the number of output pins.
func (p *PeriphPinSet) Outputs() int { return len(p.outputs) }

// Close leaves every pin as a pulled-down input.
func (p *PeriphPinSet) Close() error {
	var errs []error
	for _, pin := range append(append([]pgpio.PinIO{}, p.inputs...), p.outputs...) {
		if err := pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", pin.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
