// Package status provides a thread-safe status tracker for the patchbay daemon.
// The scan loop writes it; HTTP handlers and MQTT system events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/patchbay/internal/patch"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Driver      string
	InputLines  []int
	OutputLines []int
	Controllers []uint8
	MIDIDevice  string
	MIDIChannel int
	LoopDelayMs float64
	PaceMs      float64
	SettleMs    float64
	ResyncMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// TransmitCounts tracks outbound activity since startup.
type TransmitCounts struct {
	Sent    int
	Failed  int
	Resyncs int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Matrix        patch.Matrix
	Scan          patch.Counts
	Transmit      TransmitCounts
	LastResync    time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one scan has completed.
func (s Snapshot) Ready() bool {
	return s.Scan.Scans > 0
}

// Width returns the number of inputs.
func (s Snapshot) Width() int {
	return len(s.Config.InputLines)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest scan and transmit state.
// Called from runLoop after every cycle.
func (t *Tracker) Update(m patch.Matrix, scan patch.Counts, tx TransmitCounts, lastResync time.Time) {
	m = append(patch.Matrix(nil), m...)
	t.mu.Lock()
	t.snap.Matrix = m
	t.snap.Scan = scan
	t.snap.Transmit = tx
	t.snap.LastResync = lastResync
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
