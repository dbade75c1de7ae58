package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/patchbay/internal/patch"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	Outputs       []OutputJSON `json:"outputs"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastResync    string       `json:"last_resync,omitempty"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// OutputJSON is the state of one output jack.
type OutputJSON struct {
	Output     int    `json:"output"`
	Line       int    `json:"line"`
	Controller uint8  `json:"controller"`
	Value      uint32 `json:"value"`
	Bits       string `json:"bits"`
	Inputs     []int  `json:"inputs"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of scan and transmit counters.
type CountsJSON struct {
	Scans        int `json:"scans"`
	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Resyncs      int `json:"resyncs"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Driver      string  `json:"driver"`
	Inputs      []int   `json:"inputs"`
	MIDIDevice  string  `json:"midi_device,omitempty"`
	MIDIChannel int     `json:"midi_channel"`
	LoopDelayMs float64 `json:"loop_delay_ms"`
	PaceMs      float64 `json:"pace_ms"`
	SettleMs    float64 `json:"settle_ms"`
	ResyncMs    int64   `json:"resync_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
}

// Outputs returns one entry per configured output, in jack order.
func Outputs(snap Snapshot) []OutputJSON {
	width := snap.Width()
	outs := make([]OutputJSON, len(snap.Config.OutputLines))
	for i, line := range snap.Config.OutputLines {
		o := OutputJSON{Output: i, Line: line, Inputs: []int{}}
		if i < len(snap.Config.Controllers) {
			o.Controller = snap.Config.Controllers[i]
		}
		if i < len(snap.Matrix) {
			o.Value = snap.Matrix[i]
			for in := 0; in < width; in++ {
				if snap.Matrix.Connected(i, in, width) {
					o.Inputs = append(o.Inputs, in)
				}
			}
		}
		o.Bits = patch.FormatBits(o.Value, width)
		outs[i] = o
	}
	return outs
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		Outputs:       Outputs(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Scans:        snap.Scan.Scans,
			EdgesAdded:   snap.Scan.EdgesAdded,
			EdgesRemoved: snap.Scan.EdgesRemoved,
			Sent:         snap.Transmit.Sent,
			Failed:       snap.Transmit.Failed,
			Resyncs:      snap.Transmit.Resyncs,
		},
		Config: ConfigJSON{
			Driver:      snap.Config.Driver,
			Inputs:      snap.Config.InputLines,
			MIDIDevice:  snap.Config.MIDIDevice,
			MIDIChannel: snap.Config.MIDIChannel,
			LoopDelayMs: snap.Config.LoopDelayMs,
			PaceMs:      snap.Config.PaceMs,
			SettleMs:    snap.Config.SettleMs,
			ResyncMs:    snap.Config.ResyncMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastResync.IsZero() {
		inner.LastResync = snap.LastResync.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
