//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioPinSet drives jack pins through memory-mapped Raspberry Pi registers.
// Register writes cannot fail once /dev/gpiomem is mapped, so only Open and
// Close report errors. Open drain is emulated as in PeriphPinSet.
type RpioPinSet struct {
	inputs  []rpio.Pin
	outputs []rpio.Pin
}

// NewRpioPinSet maps the GPIO registers and claims the given BCM pins.
func NewRpioPinSet(inputs, outputs []int) (*RpioPinSet, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio registers: %w", err)
	}
	p := &RpioPinSet{}
	for _, n := range inputs {
		pin := rpio.Pin(n)
		pin.Input()
		p.inputs = append(p.inputs, pin)
	}
	for _, n := range outputs {
		p.outputs = append(p.outputs, rpio.Pin(n))
	}
	if err := p.DriveAllLow(); err != nil {
		rpio.Close()
		return nil, err
	}
	return p, nil
}

// DriveAllLow pulls every input down and drives every output low.
func (p *RpioPinSet) DriveAllLow() error {
	for _, pin := range p.inputs {
		pin.PullDown()
	}
	for _, pin := range p.outputs {
		pin.Low()
		pin.Output()
	}
	return nil
}

// FloatAll disables input pulls and releases every output.
func (p *RpioPinSet) FloatAll() error {
	for _, pin := range p.inputs {
		pin.PullOff()
	}
	for _, pin := range p.outputs {
		pin.Input()
		pin.PullOff()
	}
	return nil
}

// Select drives output out low and pulls input in up.
func (p *RpioPinSet) Select(out, in int) error {
	if err := checkIndex("output", out, len(p.outputs)); err != nil {
		return err
	}
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return err
	}
	p.outputs[out].Low()
	p.outputs[out].Output()
	p.inputs[in].PullUp()
	return nil
}

// Connected reports whether input in reads low.
func (p *RpioPinSet) Connected(in int) (bool, error) {
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return false, err
	}
	return p.inputs[in].Read() == rpio.Low, nil
}

// Inputs returns the number of input pins.
func (p *RpioPinSet) Inputs() int { return len(p.inputs) }

// Outputs returns the number of output pins.
func (p *RpioPinSet) Outputs() int { return len(p.outputs) }

// Close leaves every pin as a pulled-down input and unmaps the registers.
func (p *RpioPinSet) Close() error {
	for _, pin := range append(append([]rpio.Pin{}, p.inputs...), p.outputs...) {
		pin.Input()
		pin.PullDown()
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio registers: %w", err)
	}
	return nil
}
