// Package status provides a thread-safe status tracker for the nido daemon.
// It is read by HTTP handlers and formatted into MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/nido/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
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
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	ConfigPath  string
}

// Control is the outcome of the most recent control cycle.
type Control struct {
	Status      logic.Status
	Mode        logic.Mode
	Temperature float64
	// HasTemperature is false when the sensor read failed.
	HasTemperature bool
	SetPoint       float64
	Hysteresis     float64
	LastError      string // empty after a clean cycle
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Control
	Ready         bool // at least one cycle has run
	Counts        logic.EventCounts
	LastCycle     time.Time
	StatusSince   time.Time     // first cycle that reported the current status
	HeatingTime   time.Duration // total time spent Heating since startup
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

// Update records a finished control cycle and the running event counts.
// Called from the control loop after every cycle. The interval since the
// previous cycle is credited to HeatingTime when that cycle left the
// heat output on.
func (t *Tracker) Update(c Control, counts logic.EventCounts, at time.Time) {
	t.mu.Lock()
	prev := t.snap
	if prev.Ready && prev.Status == logic.StatusHeating && at.After(prev.LastCycle) {
		t.snap.HeatingTime += at.Sub(prev.LastCycle)
	}
	if !prev.Ready || prev.Status != c.Status {
		t.snap.StatusSince = at
	}
	t.snap.Control = c
	t.snap.Counts = counts
	t.snap.LastCycle = at
	t.snap.Ready = true
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
