package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/nido/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Mode          string       `json:"mode"`
	TempC         *float64     `json:"temp_c"`
	SetPointC     float64      `json:"set_point_c"`
	HysteresisC   float64      `json:"hysteresis_c"`
	LastError     string       `json:"last_error,omitempty"`
	Ready         bool         `json:"ready"`
	LastCycle     string       `json:"last_cycle,omitempty"`
	StatusSince   string       `json:"status_since,omitempty"`
	HeatingSecs   int64        `json:"heating_seconds"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	HeatOn       int `json:"heat_on"`
	HeatOff      int `json:"heat_off"`
	CoolOn       int `json:"cool_on"`
	CoolOff      int `json:"cool_off"`
	Faults       int `json:"faults"`
	SensorErrors int `json:"sensor_errors"`
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
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	ConfigPath  string `json:"config_path"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Status)
	if !snap.Ready || state == "" {
		state = "UNKNOWN"
	}
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		Mode:          mode,
		SetPointC:     snap.SetPoint,
		HysteresisC:   snap.Hysteresis,
		LastError:     snap.LastError,
		Ready:         snap.Ready,
		HeatingSecs:   int64(snap.HeatingTime / time.Second),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			HeatOn:       snap.Counts.HeatOn,
			HeatOff:      snap.Counts.HeatOff,
			CoolOn:       snap.Counts.CoolOn,
			CoolOff:      snap.Counts.CoolOff,
			Faults:       snap.Counts.Faults,
			SensorErrors: snap.Counts.SensorErrors,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}
	if snap.HasTemperature {
		t := logic.RoundTenth(snap.Temperature)
		inner.TempC = &t
	}
	if !snap.LastCycle.IsZero() {
		inner.LastCycle = snap.LastCycle.UTC().Format(time.RFC3339)
	}
	if !snap.StatusSince.IsZero() {
		inner.StatusSince = snap.StatusSince.UTC().Format(time.RFC3339)
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
