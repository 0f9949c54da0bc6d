package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/car-alarm/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Car Alarm</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.alert { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Car Alarm ({{.Mode}})</h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{if or (eq .State "TRIGGERED") (eq .State "WARNING_SIREN")}}alert{{end}}">{{.State}}</td></tr>
<tr><th>Arm delay</th><td>{{.Alarm.ArmDelay}} min</td></tr>
<tr><th>Counter</th><td>{{.Alarm.Counter}}</td></tr>
</table>

<h2>Outputs</h2>
<table>
<tr><th>LED</th><td class="{{if .Outputs.LED}}on{{else}}off{{end}}">{{onOff .Outputs.LED}}</td></tr>
<tr><th>Siren</th><td class="{{if .Outputs.Siren}}alert{{else}}off{{end}}">{{onOff .Outputs.Siren}}</td></tr>
<tr><th>Relay</th><td class="{{if .Outputs.Relay}}alert{{else}}off{{end}}">{{onOff .Outputs.Relay}}</td></tr>
</table>

<h2>Sensors</h2>
<table>
<tr><th>Door</th><td>{{onOff .Inputs.Door}}</td></tr>
<tr><th>Secret key</th><td>{{onOff .Inputs.SecretKey}}</td></tr>
<tr><th>Ignition</th><td>{{onOff .Inputs.Ignition}}</td></tr>
<tr><th>Jumpers</th><td>{{if .Inputs.Jumper1}}1{{else}}0{{end}}{{if .Inputs.Jumper2}}1{{else}}0{{end}}</td></tr>
</table>

<h2>State Entries</h2>
<table>
<tr><th>Disarmed</th><td>{{.Alarm.Counts.Disarmed}}</td></tr>
<tr><th>Counting down</th><td>{{.Alarm.Counts.CountingDown}}</td></tr>
<tr><th>Countdown expired</th><td>{{.Alarm.Counts.CountdownExpired}}</td></tr>
<tr><th>Warning siren</th><td>{{.Alarm.Counts.WarningSiren}}</td></tr>
<tr><th>Triggered</th><td>{{.Alarm.Counts.Triggered}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Siren warning</th><td>{{.Config.SirenWarningMs}}ms</td></tr>
<tr><th>Watchdog</th><td>{{if eq .Config.WatchdogMs 0}}disabled{{else}}{{.Config.WatchdogMs}}ms{{end}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and a State value, but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		State  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		State:    snap.Alarm.State.String(),
	}
	indexTmpl.Execute(w, data)
}
