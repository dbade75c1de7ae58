package gpio

import "fmt"

// Pull is the bias applied to an input line.
type Pull int

const (
	PullNone Pull = iota
	PullDown
	PullUp
)

// Op names recorded by FakePinSet.
const (
	OpDriveAllLow = "drive-all-low"
	OpFloatAll    = "float-all"
	OpSelect      = "select"
	OpRead        = "read"
)

// FakePinSet is a simulated patch bay. Patch cords join an output to an
// input; an input reads low when a cord connects it to an output driven low,
// otherwise its pull decides. A floating input keeps whatever level it last
// settled at, which is how stale charge shows up on real hardware.
type FakePinSet struct {
	// Ops records every operation, e.g. "select 2 0" or "read 0".
	Ops []string

	// WriteError, if set, is returned by DriveAllLow, FloatAll and Select.
	WriteError error

	// ReadError, if set, is returned by Connected.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	pulls   []Pull
	charge  []bool // last settled level per input, true = high
	lowOuts []bool // true = output actively driven low
	cords   map[[2]int]bool
}

// NewFakePinSet creates a patch bay with the given jack counts and no cords,
// in the quiescent low state.
func NewFakePinSet(inputs, outputs int) *FakePinSet {
	f := &FakePinSet{
		pulls:   make([]Pull, inputs),
		charge:  make([]bool, inputs),
		lowOuts: make([]bool, outputs),
		cords:   make(map[[2]int]bool),
	}
	for i := range f.pulls {
		f.pulls[i] = PullDown
	}
	for i := range f.lowOuts {
		f.lowOuts[i] = true
	}
	return f
}

// Patch inserts a cord between output out and input in.
func (f *FakePinSet) Patch(out, in int) {
	f.cords[[2]int{out, in}] = true
}

// Unpatch removes the cord between output out and input in.
func (f *FakePinSet) Unpatch(out, in int) {
	delete(f.cords, [2]int{out, in})
}

// UnpatchAll removes every cord.
func (f *FakePinSet) UnpatchAll() {
	f.cords = make(map[[2]int]bool)
}

// DriveAllLow pulls every input down and drives every output low.
func (f *FakePinSet) DriveAllLow() error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Ops = append(f.Ops, OpDriveAllLow)
	for i := range f.pulls {
		f.pulls[i] = PullDown
	}
	for i := range f.lowOuts {
		f.lowOuts[i] = true
	}
	f.settle()
	return nil
}

// FloatAll disables input pulls and releases every output.
func (f *FakePinSet) FloatAll() error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Ops = append(f.Ops, OpFloatAll)
	for i := range f.pulls {
		f.pulls[i] = PullNone
	}
	for i := range f.lowOuts {
		f.lowOuts[i] = false
	}
	f.settle()
	return nil
}

// Select drives output out low and pulls input in up.
func (f *FakePinSet) Select(out, in int) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if err := checkIndex("output", out, len(f.lowOuts)); err != nil {
		return err
	}
	if err := checkIndex("input", in, len(f.pulls)); err != nil {
		return err
	}
	f.Ops = append(f.Ops, fmt.Sprintf("%s %d %d", OpSelect, out, in))
	f.lowOuts[out] = true
	f.pulls[in] = PullUp
	f.settle()
	return nil
}

// Connected reports whether input in reads low.
func (f *FakePinSet) Connected(in int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if err := checkIndex("input", in, len(f.pulls)); err != nil {
		return false, err
	}
	f.Ops = append(f.Ops, fmt.Sprintf("%s %d", OpRead, in))
	return !f.charge[in], nil
}

// Inputs returns the number of input pins.
func (f *FakePinSet) Inputs() int { return len(f.pulls) }

// Outputs returns the number of output pins.
func (f *FakePinSet) Outputs() int { return len(f.lowOuts) }

// Close marks the pin set as closed.
func (f *FakePinSet) Close() error {
	f.Closed = true
	return nil
}

// Pulls returns a copy of the current input pulls.
func (f *FakePinSet) Pulls() []Pull {
	return append([]Pull(nil), f.pulls...)
}

// DrivenLow returns a copy of which outputs are currently driven low.
func (f *FakePinSet) DrivenLow() []bool {
	return append([]bool(nil), f.lowOuts...)
}

// Reset clears recorded operations and injected errors. Cords are kept.
func (f *FakePinSet) Reset() {
	f.Ops = nil
	f.WriteError = nil
	f.ReadError = nil
	f.Closed = false
}

// settle recomputes every input level that is not floating.
func (f *FakePinSet) settle() {
	for in := range f.pulls {
		held := false
		for out, low := range f.lowOuts {
			if low && f.cords[[2]int{out, in}] {
				held = true
				break
			}
		}
		switch {
		case held:
			f.charge[in] = false
		case f.pulls[in] == PullUp:
			f.charge[in] = true
		case f.pulls[in] == PullDown:
			f.charge[in] = false
		}
	}
}
