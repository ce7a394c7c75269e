package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"statusClass": func(ready bool, s logic.Status) string {
		switch {
		case !ready:
			return "unknown"
		case s == logic.StatusHeating:
			return "heating"
		case s == logic.StatusCooling:
			return "cooling"
		default:
			return "off"
		}
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	// temp renders a °C value on the configured display scale.
	"temp": func(fahrenheit bool, v float64) string {
		if fahrenheit {
			return fmt.Sprintf("%.1f°F", logic.CelsiusToFahrenheit(v))
		}
		return fmt.Sprintf("%.1f°C", v)
	},
	// delta renders a temperature difference, which has no 32° offset.
	"delta": func(fahrenheit bool, v float64) string {
		if fahrenheit {
			return fmt.Sprintf("%.1f°F", logic.RoundTenth(v*9/5))
		}
		return fmt.Sprintf("%.1f°C", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nido</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.heating { color: #c40; font-weight: bold; }
.cooling { color: #06c; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.error { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Nido</h1>

<h2>Thermostat</h2>
<table>
<tr><th>Status</th><td id="status" class="{{statusClass .Ready .Status}}">{{if .Ready}}{{orUnknown (printf "%s" .Status)}}{{else}}UNKNOWN{{end}}</td></tr>
{{if .Ready}}<tr><th>For</th><td id="since">{{duration .InStatus}}</td></tr>{{end}}
<tr><th>Mode</th><td id="mode">{{orUnknown (printf "%s" .Mode)}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{if .HasTemperature}}{{temp .Fahrenheit .Temperature}}{{else}}-{{end}}</td></tr>
<tr><th>Set point</th><td id="set-point">{{temp .Fahrenheit .SetPoint}}</td></tr>
<tr><th>Hysteresis</th><td id="hysteresis">{{delta .Fahrenheit .Hysteresis}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}}</td></tr>{{end}}
<tr><th>Heating time</th><td id="heating-time">{{duration .HeatingTime}}</td></tr>
<tr><th>Last cycle</th><td>{{if .LastCycle.IsZero}}never{{else}}{{.LastCycle.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>HEAT ON</th><td>{{.Counts.HeatOn}}</td></tr>
<tr><th>HEAT OFF</th><td>{{.Counts.HeatOff}}</td></tr>
<tr><th>COOL ON</th><td>{{.Counts.CoolOn}}</td></tr>
<tr><th>COOL OFF</th><td>{{.Counts.CoolOff}}</td></tr>
<tr><th>Faults</th><td>{{.Counts.Faults}}</td></tr>
<tr><th>Sensor errors</th><td>{{.Counts.SensorErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Config</th><td>{{.Config.ConfigPath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/weather.json">Weather</a></p>
</body>
</html>
`

// renderHTML writes the status page. Temperatures are held in °C and shown
// in °F when fahrenheit is set.
func renderHTML(w io.Writer, snap status.Snapshot, fahrenheit bool) {
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		InStatus   time.Duration
		Fahrenheit bool
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		InStatus:   snap.Now.Sub(snap.StatusSince),
		Fahrenheit: fahrenheit,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
