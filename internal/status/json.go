package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Mode          string         `json:"mode"`
	Pressed       []KeyJSON      `json:"pressed"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// KeyJSON identifies a key by matrix position.
type KeyJSON struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// LastEventJSON is the most recent confirmed transition.
type LastEventJSON struct {
	Column    int    `json:"column"`
	Row       int    `json:"row"`
	Pressed   bool   `json:"pressed"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counters.
type CountsJSON struct {
	Presses     int `json:"presses"`
	Releases    int `json:"releases"`
	ScanCycles  int `json:"scan_cycles"`
	GhostCycles int `json:"ghost_cycles"`
	Wakeups     int `json:"wakeups"`
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
	Rows           int    `json:"rows"`
	Cols           int    `json:"cols"`
	PollMs         int64  `json:"poll_ms"`
	IdleTimeoutMs  int64  `json:"idle_timeout_ms"`
	DebounceDownMs int64  `json:"debounce_down_ms"`
	DebounceUpMs   int64  `json:"debounce_up_ms"`
	SettleUs       int64  `json:"settle_us"`
	GhostingCheck  bool   `json:"ghosting_check"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	pressed := []KeyJSON{}
	for _, k := range snap.Pressed() {
		pressed = append(pressed, KeyJSON{Column: k.Col, Row: k.Row})
	}

	inner := StatusInner{
		Mode:          mode,
		Pressed:       pressed,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Presses:     snap.Counts.Presses,
			Releases:    snap.Counts.Releases,
			ScanCycles:  snap.Counts.ScanCycles,
			GhostCycles: snap.Counts.GhostCycles,
			Wakeups:     snap.Counts.Wakeups,
		},
		Config: ConfigJSON{
			Rows:           snap.Config.Rows,
			Cols:           snap.Config.Cols,
			PollMs:         snap.Config.PollMs,
			IdleTimeoutMs:  snap.Config.IdleTimeoutMs,
			DebounceDownMs: snap.Config.DebounceDownMs,
			DebounceUpMs:   snap.Config.DebounceUpMs,
			SettleUs:       snap.Config.SettleUs,
			GhostingCheck:  snap.Config.GhostingCheck,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}

	if e := snap.LastEvent; e != nil {
		inner.LastEvent = &LastEventJSON{
			Column:    e.Col,
			Row:       e.Row,
			Pressed:   e.Pressed,
			Timestamp: e.Time.UTC().Format(time.RFC3339Nano),
		}
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
