// Package patch contains the patch-bay connectivity model and the scanner
// that measures it. Pins are reached only through gpio.PinSet and waits go
// through an injectable sleep function, so everything here runs against the
// fake pin set in tests.
package patch

import (
	"fmt"
	"math/bits"
	"time"
)

// MaxInputs is the widest bitmask a Matrix entry can hold.
const MaxInputs = 32

// Output is one output jack: the pin it is wired to and the controller number
// its state is announced on.
type Output struct {
	Line       int
	Controller uint8
}

// Matrix holds, per output, a bitmask of the inputs it is patched to.
// Input 0 is the most significant of the used bits.
type Matrix []uint32

// ChangeMask holds, per output, the bits that differ from the previous scan.
type ChangeMask []uint32

// Edge is a single patch cord between an output and an input.
type Edge struct {
	Out int `json:"out"`
	In  int `json:"in"`
}

// Bit returns the mask bit for input in on a patch bay with width inputs.
func Bit(in, width int) uint32 {
	return 1 << uint(width-1-in)
}

// Connected reports whether output out is patched to input in.
func (m Matrix) Connected(out, in, width int) bool {
	return m[out]&Bit(in, width) != 0
}

// Edges lists every patch cord in output then input order.
func (m Matrix) Edges(width int) []Edge {
	var edges []Edge
	for out, mask := range m {
		for in := 0; in < width; in++ {
			if mask&Bit(in, width) != 0 {
				edges = append(edges, Edge{Out: out, In: in})
			}
		}
	}
	return edges
}

// Any reports whether any output changed.
func (c ChangeMask) Any() bool {
	for _, v := range c {
		if v != 0 {
			return true
		}
	}
	return false
}

// FormatBits renders v as a zero-padded binary string width digits wide.
func FormatBits(v uint32, width int) string {
	return fmt.Sprintf("%0*b", width, v)
}

// Event is the current state of one output, ready for transmission.
type Event struct {
	Time       time.Time
	Output     int
	Controller uint8
	Value      uint32
	Forced     bool // sent by a resync rather than a change
}

// Counts tracks scanner activity since startup.
type Counts struct {
	Scans        int
	EdgesAdded   int
	EdgesRemoved int
}

func (c *Counts) add(prev, cur uint32) {
	diff := prev ^ cur
	c.EdgesAdded += bits.OnesCount32(diff & cur)
	c.EdgesRemoved += bits.OnesCount32(diff & prev)
}
