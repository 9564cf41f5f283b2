package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/tank-controller/internal/status"
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
	// relative renders t against the snapshot time; zero renders as "never".
	"relative": func(t, now time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.RelTime(t, now, "ago", "from now")
	},
	"litres": func(v uint32) string {
		return humanize.Comma(int64(v)) + " L"
	},
	"mask": func(m uint32) string {
		return fmt.Sprintf("%020b", m)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Tank Controller</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.display { background: #1d3b1d; color: #b6f5b6; padding: 0.6em 1em; white-space: pre; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Tank Controller</h1>

{{if .Polled}}<div id="display" class="display">{{.Line1}}
{{.Line2}}</div>{{else}}<p>Waiting for first sensor read.</p>{{end}}

<h2>Water</h2>
<table>
<tr><th>Level</th><td id="level">{{if .Polled}}{{.Result.Level}}%{{else}}unknown{{end}}</td></tr>
<tr><th>Error</th><td class="{{if eq .Result.Error.String "NONE"}}idle{{else}}error{{end}}">{{.Result.Error}}</td></tr>
<tr><th>Thresholds</th><td>{{.Settings.Thresholds.Low}}% / {{.Settings.Thresholds.High}}% (margin {{.Config.Margin}}%)</td></tr>
<tr><th>Inlet</th><td id="inlet" class="{{if .Result.InletActive}}active{{else}}idle{{end}}">{{if .Result.InletActive}}ACTIVE{{else}}IDLE{{end}} ({{if .Settings.Modes.InletAuto}}auto{{else}}manual{{end}})</td></tr>
<tr><th>Outlet</th><td id="outlet" class="{{if .Result.OutletActive}}active{{else}}idle{{end}}">{{if .Result.OutletActive}}ACTIVE{{else}}IDLE{{end}} ({{if .Settings.Modes.OutletAuto}}auto{{else}}manual{{end}})</td></tr>
<tr><th>Tank volume</th><td>{{litres .Settings.TankVolume}}</td></tr>
</table>

<h2>Sensor</h2>
<table>
<tr><th>Link</th><td class="{{if .SensorConnected}}connected{{else}}disconnected{{end}}">{{if .SensorConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Last poll</th><td>{{relative .LastPoll .Now}}</td></tr>
<tr><th>Segments</th><td>{{mask .Mask}}</td></tr>
</table>

<h2>Pumps</h2>
<table>
<tr><th>Pump</th><td>runtime / dose / last / next</td></tr>
{{range .Pumps}}<tr><th>#{{.Index}} {{.Role}} (pin {{.Pin}})</th><td>{{.Runtime}}{{if eq .Role "dosing"}} / {{.AmountMl}} ml every {{.IntervalDays}} d / {{relative .LastDose $.Now}} / {{relative .NextDose $.Now}}{{end}}</td></tr>
{{end}}</table>

<h2>Event Counts</h2>
<table>
<tr><th>Inlet starts</th><td>{{.Counts.InletOn}}</td></tr>
<tr><th>Outlet starts</th><td>{{.Counts.OutletOn}}</td></tr>
<tr><th>Doses</th><td>{{.Counts.Doses}}</td></tr>
<tr><th>Sensor errors</th><td>{{.Counts.SensorErrors}}</td></tr>
<tr><th>Pump timeouts</th><td>{{.Counts.PumpTimeouts}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Pump limit</th><td>{{.Config.PumpLimitMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	line1, line2 := snap.Lines()
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Line1  string
		Line2  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Line1:    line1,
		Line2:    line2,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
