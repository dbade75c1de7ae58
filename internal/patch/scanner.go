package patch

import (
	"fmt"
	"time"

	"github.com/sweeney/patchbay/internal/gpio"
)

// Scanner measures the patch bay one output/input pair at a time and keeps
// the connectivity found by the previous scan.
type Scanner struct {
	pins    gpio.PinSet
	settle  time.Duration
	sleep   gpio.Sleeper
	graph   Matrix
	changes ChangeMask
	counts  Counts
}

// NewScanner creates a scanner over pins. The previous state starts all zero.
func NewScanner(pins gpio.PinSet, settle time.Duration, sleep gpio.Sleeper) *Scanner {
	return &Scanner{
		pins:    pins,
		settle:  settle,
		sleep:   sleep,
		graph:   make(Matrix, pins.Outputs()),
		changes: make(ChangeMask, pins.Outputs()),
	}
}

// Scan measures every output/input pair and returns the new connectivity and
// the bits that changed since the previous scan. Both slices are copies.
//
// Every measurement isolates all lines, selects one pair, waits for the line
// to settle, samples, then drains every line low and waits again. The series
// resistors on each jack leave floating nodes charged, so skipping either
// step reads stale levels or crosstalk from other cords.
//
// On error no state is updated.
func (s *Scanner) Scan() (Matrix, ChangeMask, error) {
	inputs := s.pins.Inputs()
	next := make(Matrix, len(s.graph))

	for out := range next {
		var reg uint32
		for in := 0; in < inputs; in++ {
			if err := s.pins.FloatAll(); err != nil {
				return nil, nil, fmt.Errorf("float pins: %w", err)
			}
			connected, err := gpio.SelectAndRead(s.pins, out, in, s.settle, s.sleep)
			if err != nil {
				return nil, nil, err
			}
			reg <<= 1
			if connected {
				reg |= 1
			}
			if err := s.pins.DriveAllLow(); err != nil {
				return nil, nil, fmt.Errorf("drain pins: %w", err)
			}
			s.sleep(s.settle)
		}
		next[out] = reg
	}

	for out, reg := range next {
		s.changes[out] = s.graph[out] ^ reg
		s.counts.add(s.graph[out], reg)
		s.graph[out] = reg
	}
	s.counts.Scans++

	return s.Matrix(), s.Changes(), nil
}

// Matrix returns a copy of the connectivity found by the last scan.
func (s *Scanner) Matrix() Matrix {
	return append(Matrix(nil), s.graph...)
}

// Changes returns a copy of the change mask from the last scan.
func (s *Scanner) Changes() ChangeMask {
	return append(ChangeMask(nil), s.changes...)
}

// Counts returns scan and edge counters since startup.
func (s *Scanner) Counts() Counts {
	return s.counts
}

// Inputs returns the bitmask width.
func (s *Scanner) Inputs() int {
	return s.pins.Inputs()
}
