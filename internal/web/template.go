package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/kbd-matrix/internal/status"
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
	"modeOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Keyboard Matrix</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.grid { width: auto; }
table.grid td, table.grid th { width: auto; text-align: center; border: 1px solid #ddd; }
.down { background: #2a2; color: white; font-weight: bold; }
.up { color: #bbb; }
.active { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Keyboard Matrix</h1>

<h2>Keys</h2>
<table class="grid" id="matrix">
<tr><th></th>{{range .ColIndex}}<th>C{{.}}</th>{{end}}</tr>
{{range $r, $row := .Grid}}<tr><th>R{{$r}}</th>{{range $row}}<td class="{{if .}}down{{else}}up{{end}}">{{if .}}&#9632;{{else}}&middot;{{end}}</td>{{end}}</tr>
{{end}}</table>

<h2>Scanner</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq (modeOrUnknown (printf "%s" .Mode)) "ACTIVE"}}active{{else}}idle{{end}}">{{modeOrUnknown (printf "%s" .Mode)}}</td></tr>
<tr><th>Presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Releases</th><td>{{.Counts.Releases}}</td></tr>
<tr><th>Scan cycles</th><td>{{.Counts.ScanCycles}}</td></tr>
<tr><th>Ghosting vetoes</th><td>{{.Counts.GhostCycles}}</td></tr>
<tr><th>Wakeups</th><td>{{.Counts.Wakeups}}</td></tr>
{{with .LastEvent}}<tr><th>Last event</th><td>C{{.Col}} R{{.Row}} {{if .Pressed}}PRESSED{{else}}RELEASED{{end}} at {{.Time.UTC.Format "15:04:05.000"}}</td></tr>{{end}}
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
<tr><th>Matrix</th><td>{{.Config.Rows}} rows x {{.Config.Cols}} columns</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms (idle after {{.Config.IdleTimeoutMs}}ms)</td></tr>
<tr><th>Debounce</th><td>down {{.Config.DebounceDownMs}}ms, up {{.Config.DebounceUpMs}}ms</td></tr>
<tr><th>Ghosting check</th><td>{{if .Config.GhostingCheck}}on{{else}}off{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// grid lays the stable snapshot out row by row for display.
func grid(snap status.Snapshot) [][]bool {
	g := make([][]bool, snap.Config.Rows)
	for r := range g {
		g[r] = make([]bool, snap.Config.Cols)
		for c := range g[r] {
			g[r][c] = snap.IsPressed(c, r)
		}
	}
	return g
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	cols := make([]int, snap.Config.Cols)
	for i := range cols {
		cols[i] = i
	}
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Grid     [][]bool
		ColIndex []int
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Grid:     grid(snap),
		ColIndex: cols,
	}
	return indexTmpl.Execute(w, data)
}
