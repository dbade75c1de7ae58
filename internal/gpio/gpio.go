// Package gpio owns the patch-bay jack pins and the three collective drive
// states the scanner needs. The real implementations use the Linux GPIO
// character device, periph.io or go-rpio. The fake implementation simulates
// a patch bay so the scanner can be tested without hardware.
package gpio

import (
	"fmt"
	"time"
)

// PinSet owns the input and output jack pins.
//
// Outputs are open drain: a true value releases the line, false pulls it low.
// Inputs are read through their pull resistor; a low reading on a pulled-up
// input means an output is holding it down through a patch cord.
type PinSet interface {
	// DriveAllLow pulls every input down and drives every output low,
	// draining residual charge from all lines.
	DriveAllLow() error

	// FloatAll disables every input pull and releases every output, so no
	// line takes part in a measurement until selected.
	FloatAll() error

	// Select drives output out low and pulls input in up. All other pins are
	// left as they are, which after FloatAll means high impedance.
	Select(out, in int) error

	// Connected reports whether input in currently reads low.
	Connected(in int) (bool, error)

	// Inputs returns the number of input pins.
	Inputs() int

	// Outputs returns the number of output pins.
	Outputs() int

	// Close returns every line to a pulled-down input and releases it.
	Close() error
}

// Sleeper waits for the given duration. time.Sleep in production.
type Sleeper func(time.Duration)

// DefaultSettle is the wait after changing pin drive before the line is
// stable enough to sample. Tuned for 10k series resistors on every jack.
const DefaultSettle = 2 * time.Millisecond

// SelectAndRead takes a single measurement between one output and one input.
// The caller must have isolated all lines with FloatAll first.
func SelectAndRead(ps PinSet, out, in int, settle time.Duration, sleep Sleeper) (bool, error) {
	if err := ps.Select(out, in); err != nil {
		return false, fmt.Errorf("select out %d in %d: %w", out, in, err)
	}
	sleep(settle)
	connected, err := ps.Connected(in)
	if err != nil {
		return false, fmt.Errorf("read in %d: %w", in, err)
	}
	return connected, nil
}

func checkIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%s index %d out of range [0,%d)", kind, i, n)
	}
	return nil
}
