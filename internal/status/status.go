// Package status provides a thread-safe status tracker for the car-alarm daemon.
// It is written by the main loop and read by the HTTP handlers and telemetry.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/car-alarm/internal/logic"
)

// Mode is the boot-time operating mode.
type Mode string

const (
	ModeAlarm Mode = "ALARM"
	ModeDebug Mode = "DEBUG"
)

// Config contains daemon configuration for display.
type Config struct {
	Chip           string
	TickMs         int64
	SirenWarningMs int64
	BlinkOnsetMs   int64
	WatchdogMs     int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          Mode
	Alarm         logic.Snapshot
	Inputs        logic.Input
	Outputs       logic.Outputs
	Ticks         uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
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
func NewTracker(startTime time.Time, mode Mode, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      mode,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the result of one tick.
// Called from the run loop on every tick.
func (t *Tracker) Update(alarm logic.Snapshot, in logic.Input, out logic.Outputs) {
	t.mu.Lock()
	t.snap.Alarm = alarm
	t.snap.Inputs = in
	t.snap.Outputs = out
	t.snap.Ticks++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
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
