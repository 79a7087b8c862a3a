package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
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
	"onoff": func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	},
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.bar { background: #eee; height: 1.2em; }
.bar div { background: #3a7bd5; height: 100%; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>{{.Config.Name}}<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Tank</h2>
<div class="bar"><div id="level-bar" style="width: {{printf "%.0f" .Sensor.Level}}%"></div></div>
<table>
<tr><th>Level</th><td id="level">{{printf "%.1f" .Sensor.Level}} %</td></tr>
<tr><th>Volume</th><td id="volume">{{printf "%.1f" .Sensor.Volume}} l</td></tr>
<tr><th>Voltage</th><td id="voltage">{{printf "%.2f" .Sensor.Voltage}} V</td></tr>
<tr><th>Current</th><td id="current">{{printf "%.2f" .Sensor.Current}} mA</td></tr>
<tr><th>Temperature</th><td id="temperature">{{printf "%.1f" .Sensor.Temperature}} °C</td></tr>
<tr><th>Reading</th><td>{{if .Sensor.Valid}}valid{{else}}waiting{{end}}</td></tr>
</table>

<h2>Outputs</h2>
<table>
{{range .Relays}}<tr><th>Channel {{.Channel}}</th><td id="relay-{{.Channel}}" class="{{if .On}}on{{else}}off{{end}}">{{onoff .On}}{{if .Remaining}} ({{ms .Remaining}} ms left){{end}}</td></tr>
{{end}}<tr><th>Automation</th><td>{{.Automation.Mode}}</td></tr>
<tr><th>Filling</th><td id="filling">{{onoff .Automation.Filling}}</td></tr>
<tr><th>Pumping</th><td id="pumping">{{onoff .Automation.Pumping}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Wi-Fi</th><td class="{{if .Network.Connected}}connected{{else}}disconnected{{end}}">{{.Network.State}}{{if .Network.SSID}} ({{.Network.SSID}}){{end}}</td></tr>
<tr><th>Signal</th><td>{{.Network.RSSI}} dBm</td></tr>
<tr><th>Access point</th><td>{{if .Network.APActive}}active{{else}}off{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddress}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/api/events">Events</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text) { var el = document.getElementById(id); if (el) el.textContent = text; }
  function onoff(v) { return v ? "ON" : "OFF"; }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).data.status;
        set("level", s.sensor.level.toFixed(1) + " %");
        set("volume", s.sensor.volume.toFixed(1) + " l");
        set("voltage", s.sensor.voltage.toFixed(2) + " V");
        set("current", s.sensor.current.toFixed(2) + " mA");
        set("temperature", s.sensor.temperature.toFixed(1) + " °C");
        document.getElementById("level-bar").style.width = s.sensor.level.toFixed(0) + "%";
        s.relays.forEach(function(r) {
          var el = document.getElementById("relay-" + r.channel);
          if (!el) return;
          el.textContent = onoff(r.state) + (r.remaining_ms > 0 ? " (" + r.remaining_ms + " ms left)" : "");
          el.className = r.state ? "on" : "off";
        });
        set("filling", onoff(s.automation.filling));
        set("pumping", onoff(s.automation.pumping));
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
