//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevPinSet is not available on non-Linux platforms.
type CdevPinSet struct{ stubPinSet }

// NewCdevPinSet returns an error on non-Linux platforms.
func NewCdevPinSet(chip string, inputs, outputs []int) (*CdevPinSet, error) {
	return nil, errUnsupported
}

// PeriphPinSet is not available on non-Linux platforms.
type PeriphPinSet struct{ stubPinSet }

// NewPeriphPinSet returns an error on non-Linux platforms.
func NewPeriphPinSet(inputs, outputs []int) (*PeriphPinSet, error) {
	return nil, errUnsupported
}

// RpioPinSet is not available on non-Linux platforms.
type RpioPinSet struct{ stubPinSet }

// NewRpioPinSet returns an error on non-Linux platforms.
func NewRpioPinSet(inputs, outputs []int) (*RpioPinSet, error) {
	return nil, errUnsupported
}

type stubPinSet struct{}

func (stubPinSet) DriveAllLow() error             { return errUnsupported }
func (stubPinSet) FloatAll() error                { return errUnsupported }
func (stubPinSet) Select(out, in int) error       { return errUnsupported }
func (stubPinSet) Connected(in int) (bool, error) { return false, errUnsupported }
func (stubPinSet) Inputs() int                    { return 0 }
func (stubPinSet) Outputs() int                   { return 0 }
func (stubPinSet) Close() error                   { return nil }
