//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "patchbay"

// CdevPinSet drives jack pins through the Linux GPIO character device.
type CdevPinSet struct {
	chip    *gpiocdev.Chip
	inputs  []*gpiocdev.Line
	outputs []*gpiocdev.Line
}

// NewCdevPinSet requests the given line offsets on chip (e.g. "gpiochip0").
// Every line starts in the quiescent state: inputs pulled down, outputs
// open drain and driven low.
func NewCdevPinSet(chip string, inputs, outputs []int) (*CdevPinSet, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	p := &CdevPinSet{chip: c}

	for _, offset := range inputs {
		l, err := c.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request input pin %d: %w", offset, err)
		}
		p.inputs = append(p.inputs, l)
	}
	for _, offset := range outputs {
		l, err := c.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.AsOpenDrain)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request output pin %d: %w", offset, err)
		}
		p.outputs = append(p.outputs, l)
	}
	return p, nil
}

// DriveAllLow pulls every input down and drives every output low.
func (p *CdevPinSet) DriveAllLow() error {
	for i, l := range p.inputs {
		if err := l.Reconfigure(gpiocdev.WithPullDown); err != nil {
			return fmt.Errorf("pull down input %d: %w", i, err)
		}
	}
	for i, l := range p.outputs {
		if err := l.SetValue(0); err != nil {
			return fmt.Errorf("drive output %d low: %w", i, err)
		}
	}
	return nil
}

// FloatAll disables input bias and releases every output.
func (p *CdevPinSet) FloatAll() error {
	for i, l := range p.inputs {
		if err := l.Reconfigure(gpiocdev.WithBiasDisabled); err != nil {
			return fmt.Errorf("float input %d: %w", i, err)
		}
	}
	for i, l := range p.outputs {
		if err := l.SetValue(1); err != nil {
			return fmt.Errorf("release output %d: %w", i, err)
		}
	}
	return nil
}

// Select drives output out low and pulls input in up.
func (p *CdevPinSet) Select(out, in int) error {
	if err := checkIndex("output", out, len(p.outputs)); err != nil {
		return err
	}
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return err
	}
	if err := p.outputs[out].SetValue(0); err != nil {
		return fmt.Errorf("drive output %d low: %w", out, err)
	}
	if err := p.inputs[in].Reconfigure(gpiocdev.WithPullUp); err != nil {
		return fmt.Errorf("pull up input %d: %w", in, err)
	}
	return nil
}

// Connected reports whether input in reads low.
func (p *CdevPinSet) Connected(in int) (bool, error) {
	if err := checkIndex("input", in, len(p.inputs)); err != nil {
		return false, err
	}
	v, err := p.inputs[in].Value()
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// Inputs returns the number of input pins.
func (p *CdevPinSet) Inputs() int { return len(p.inputs) }

// Outputs returns the number of output pins.
func (p *CdevPinSet) Outputs() int { return len(p.outputs) }

// Close reconfigures every line to input with pull-down (matching Pi boot
// defaults) and releases it, so a patched cord cannot hold a line low
// through a reboot.
func (p *CdevPinSet) Close() error {
	var errs []error

	lines := append(append([]*gpiocdev.Line{}, p.inputs...), p.outputs...)
	for _, l := range lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	p.inputs, p.outputs = nil, nil
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
