package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/patchbay/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Patchbay</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.matrix th, table.matrix td { width: auto; text-align: center; }
.on { color: green; font-weight: bold; }
.off { color: #ccc; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Patchbay</h1>

<h2>Patches</h2>
{{if .Ready}}
<table class="matrix">
<tr><th>out / cc</th>{{range .InputLines}}<th>in {{.}}</th>{{end}}<th>bits</th></tr>
{{range .Rows}}<tr><th>{{.Line}} / {{.Controller}}</th>{{range .Cells}}<td class="{{if .}}on{{else}}off{{end}}">{{if .}}&#9679;{{else}}&middot;{{end}}</td>{{end}}<td>{{.Bits}}</td></tr>
{{end}}</table>
{{else}}
<p>No scan completed yet.</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>MIDI</th><td>{{if .Config.MIDIDevice}}{{.Config.MIDIDevice}} (channel {{.Config.MIDIChannel}}){{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Scans</th><td>{{.Scan.Scans}}</td></tr>
<tr><th>Patched</th><td>{{.Scan.EdgesAdded}}</td></tr>
<tr><th>Unpatched</th><td>{{.Scan.EdgesRemoved}}</td></tr>
<tr><th>Sent</th><td>{{.Transmit.Sent}}</td></tr>
<tr><th>Failed</th><td>{{.Transmit.Failed}}</td></tr>
<tr><th>Resyncs</th><td>{{.Transmit.Resyncs}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Driver</th><td>{{.Config.Driver}}</td></tr>
<tr><th>Loop</th><td>{{.Config.LoopDelayMs}}ms</td></tr>
<tr><th>Settle</th><td>{{.Config.SettleMs}}ms</td></tr>
<tr><th>Pace</th><td>{{.Config.PaceMs}}ms</td></tr>
<tr><th>Resync</th><td>{{.Config.ResyncMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/matrix.json">matrix</a></p>
</body>
</html>
`

type matrixRow struct {
	Line       int
	Controller uint8
	Bits       string
	Cells      []bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	width := snap.Width()
	outs := status.Outputs(snap)
	rows := make([]matrixRow, len(outs))
	for i, o := range outs {
		cells := make([]bool, width)
		for _, in := range o.Inputs {
			cells[in] = true
		}
		rows[i] = matrixRow{Line: o.Line, Controller: o.Controller, Bits: o.Bits, Cells: cells}
	}

	// Snapshot has Uptime() and Ready() methods but the template wants fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Ready      bool
		InputLines []int
		Rows       []matrixRow
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Ready:      snap.Ready(),
		InputLines: snap.Config.InputLines,
		Rows:       rows,
	}
	indexTmpl.Execute(w, data)
}
