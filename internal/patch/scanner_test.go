package patch

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/sweeney/patchbay/internal/gpio"
)

func noSleep(time.Duration) {}

func newTestScanner(t *testing.T, inputs, outputs int) (*Scanner, *gpio.FakePinSet) {
	t.Helper()
	pins := gpio.NewFakePinSet(inputs, outputs)
	return NewScanner(pins, gpio.DefaultSettle, noSleep), pins
}

func TestFirstScanReportsConnectionsAsChanges(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	pins.Patch(2, 0)
	pins.Patch(2, 3)

	graph, changes, err := s.Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if graph[2] != 0b10010 {
		t.Errorf("graph[2]: got %05b, want 10010", graph[2])
	}
	if changes[2] != 0b10010 {
		t.Errorf("changes[2]: got %05b, want 10010", changes[2])
	}
	for _, out := range []int{0, 1, 3, 4} {
		if graph[out] != 0 || changes[out] != 0 {
			t.Errorf("output %d: expected no connection and no change, got graph=%05b changes=%05b", out, graph[out], changes[out])
		}
	}
}

func TestInputZeroIsMostSignificant(t *testing.T) {
	tests := []struct {
		in   int
		want uint32
	}{
		{0, 0b10000},
		{1, 0b01000},
		{2, 0b00100},
		{3, 0b00010},
		{4, 0b00001},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("input%d", tt.in), func(t *testing.T) {
			s, pins := newTestScanner(t, 5, 1)
			pins.Patch(0, tt.in)

			graph, _, err := s.Scan()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if graph[0] != tt.want {
				t.Errorf("got %05b, want %05b", graph[0], tt.want)
			}
		})
	}
}

func TestSecondScanWithoutChangesIsQuiet(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	pins.Patch(0, 0)
	pins.Patch(3, 4)
	pins.Patch(4, 1)

	first, _, err := s.Scan()
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	second, changes, err := s.Scan()
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}

	for out := range changes {
		if changes[out] != 0 {
			t.Errorf("output %d: expected no change, got %05b", out, changes[out])
		}
		if first[out] != second[out] {
			t.Errorf("output %d: graph moved from %05b to %05b", out, first[out], second[out])
		}
	}
	if changes.Any() {
		t.Error("Any() should be false for an unchanged patch bay")
	}
}

func TestChangesAreXORWithPreviousScan(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	rng := rand.New(rand.NewSource(1))

	prev := make(Matrix, 5)
	for cycle := 0; cycle < 20; cycle++ {
		pins.UnpatchAll()
		for out := 0; out < 5; out++ {
			for in := 0; in < 5; in++ {
				if rng.Intn(3) == 0 {
					pins.Patch(out, in)
				}
			}
		}

		graph, changes, err := s.Scan()
		if err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		for out := range graph {
			if changes[out] != prev[out]^graph[out] {
				t.Errorf("cycle %d output %d: changes %05b != %05b ^ %05b", cycle, out, changes[out], prev[out], graph[out])
			}
		}
		prev = graph
	}
}

func TestUnpatchReportsRemovedEdge(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	pins.Patch(0, 0)

	if _, _, err := s.Scan(); err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	pins.Unpatch(0, 0)
	graph, changes, err := s.Scan()
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}

	if graph[0] != 0 {
		t.Errorf("graph[0]: got %05b, want 00000", graph[0])
	}
	if changes[0] != 0b10000 {
		t.Errorf("changes[0]: got %05b, want 10000", changes[0])
	}

	c := s.Counts()
	if c.Scans != 2 || c.EdgesAdded != 1 || c.EdgesRemoved != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestScanMeasurementSequence(t *testing.T) {
	pins := gpio.NewFakePinSet(2, 2)
	var slept []time.Duration
	s := NewScanner(pins, 2*time.Millisecond, func(d time.Duration) { slept = append(slept, d) })

	if _, _, err := s.Scan(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var want []string
	for out := 0; out < 2; out++ {
		for in := 0; in < 2; in++ {
			want = append(want,
				gpio.OpFloatAll,
				fmt.Sprintf("%s %d %d", gpio.OpSelect, out, in),
				fmt.Sprintf("%s %d", gpio.OpRead, in),
				gpio.OpDriveAllLow,
			)
		}
	}
	if len(pins.Ops) != len(want) {
		t.Fatalf("expected %d ops, got %d: %v", len(want), len(pins.Ops), pins.Ops)
	}
	for i := range want {
		if pins.Ops[i] != want[i] {
			t.Errorf("op %d: got %q, want %q", i, pins.Ops[i], want[i])
		}
	}

	// One settle after select and one after the drain, per pair.
	if len(slept) != 8 {
		t.Fatalf("expected 8 settle waits, got %d", len(slept))
	}
	for i, d := range slept {
		if d != 2*time.Millisecond {
			t.Errorf("wait %d: got %v, want 2ms", i, d)
		}
	}
}

func TestScanLeavesPinsQuiescent(t *testing.T) {
	s, pins := newTestScanner(t, 3, 3)
	pins.Patch(1, 1)

	if _, _, err := s.Scan(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range pins.Pulls() {
		if p != gpio.PullDown {
			t.Errorf("input %d: expected pull-down after scan, got %v", i, p)
		}
	}
	for i, low := range pins.DrivenLow() {
		if !low {
			t.Errorf("output %d: expected driven low after scan", i)
		}
	}
}

func TestScanErrorKeepsPreviousState(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	pins.Patch(1, 2)

	before, _, err := s.Scan()
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}

	pins.Unpatch(1, 2)
	pins.ReadError = errors.New("simulated read error")
	if _, _, err := s.Scan(); !errors.Is(err, pins.ReadError) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}

	after := s.Matrix()
	for out := range before {
		if before[out] != after[out] {
			t.Errorf("output %d: state changed on failed scan: %05b -> %05b", out, before[out], after[out])
		}
	}
	if s.Counts().Scans != 1 {
		t.Errorf("failed scan should not be counted, got %d", s.Counts().Scans)
	}
}

func TestScanWriteError(t *testing.T) {
	s, pins := newTestScanner(t, 2, 2)
	pins.WriteError = errors.New("simulated write error")

	if _, _, err := s.Scan(); !errors.Is(err, pins.WriteError) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestScanReturnsCopies(t *testing.T) {
	s, pins := newTestScanner(t, 5, 5)
	pins.Patch(0, 0)

	graph, changes, _ := s.Scan()
	graph[0] = 0
	changes[0] = 0

	if s.Matrix()[0] != 0b10000 {
		t.Error("mutating the returned matrix changed scanner state")
	}
	if s.Changes()[0] != 0b10000 {
		t.Error("mutating the returned changes changed scanner state")
	}
}

func TestMatrixEdges(t *testing.T) {
	m := Matrix{0b10010, 0, 0b00001}

	edges := m.Edges(5)
	want := []Edge{{0, 0}, {0, 3}, {2, 4}}
	if len(edges) != len(want) {
		t.Fatalf("expected %d edges, got %v", len(want), edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d: got %+v, want %+v", i, edges[i], want[i])
		}
	}

	if !m.Connected(0, 3, 5) {
		t.Error("expected 0-3 connected")
	}
	if m.Connected(1, 3, 5) {
		t.Error("expected 1-3 not connected")
	}
}

func TestFormatBits(t *testing.T) {
	tests := []struct {
		v     uint32
		width int
		want  string
	}{
		{0, 5, "00000"},
		{0b10000, 5, "10000"},
		{0b101, 3, "101"},
		{1, 7, "0000001"},
	}
	for _, tt := range tests {
		if got := FormatBits(tt.v, tt.width); got != tt.want {
			t.Errorf("FormatBits(%b, %d): got %q, want %q", tt.v, tt.width, got, tt.want)
		}
	}
}
