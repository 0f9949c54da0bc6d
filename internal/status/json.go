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
	Event           string      `json:"event,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Mode            string      `json:"mode"`
	State           string      `json:"state"`
	ArmDelayMinutes int         `json:"arm_delay_minutes"`
	Counter         uint16      `json:"counter"`
	Outputs         OutputsJSON `json:"outputs"`
	Sensors         SensorsJSON `json:"sensors"`
	Ticks           uint64      `json:"ticks"`
	UptimeSeconds   int64       `json:"uptime_seconds"`
	StartTime       string      `json:"start_time"`
	Timestamp       string      `json:"timestamp"`
	MQTT            MQTTStatus  `json:"mqtt"`
	Counts          CountsJSON  `json:"state_entries"`
	Config          ConfigJSON  `json:"config"`
}

// OutputsJSON is the JSON representation of the actuator levels.
type OutputsJSON struct {
	LED   bool `json:"led"`
	Siren bool `json:"siren"`
	Relay bool `json:"relay"`
}

// SensorsJSON is the JSON representation of the last sensor sample.
type SensorsJSON struct {
	Door      bool `json:"door"`
	SecretKey bool `json:"secret_key"`
	Ignition  bool `json:"ignition"`
	Jumper1   bool `json:"jumper1"`
	Jumper2   bool `json:"jumper2"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of state entry counts.
type CountsJSON struct {
	Disarmed         int `json:"disarmed"`
	CountingDown     int `json:"counting_down"`
	CountdownExpired int `json:"countdown_expired"`
	WarningSiren     int `json:"warning_siren"`
	Triggered        int `json:"triggered"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip           string `json:"chip"`
	TickMs         int64  `json:"tick_ms"`
	SirenWarningMs int64  `json:"siren_warning_ms"`
	BlinkOnsetMs   int64  `json:"blink_onset_ms"`
	WatchdogMs     int64  `json:"watchdog_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Mode:            string(snap.Mode),
		State:           snap.Alarm.State.String(),
		ArmDelayMinutes: snap.Alarm.ArmDelay,
		Counter:         snap.Alarm.Counter,
		Outputs: OutputsJSON{
			LED:   snap.Outputs.LED,
			Siren: snap.Outputs.Siren,
			Relay: snap.Outputs.Relay,
		},
		Sensors: SensorsJSON{
			Door:      snap.Inputs.Door,
			SecretKey: snap.Inputs.SecretKey,
			Ignition:  snap.Inputs.Ignition,
			Jumper1:   snap.Inputs.Jumper1,
			Jumper2:   snap.Inputs.Jumper2,
		},
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Disarmed:         snap.Alarm.Counts.Disarmed,
			CountingDown:     snap.Alarm.Counts.CountingDown,
			CountdownExpired: snap.Alarm.Counts.CountdownExpired,
			WarningSiren:     snap.Alarm.Counts.WarningSiren,
			Triggered:        snap.Alarm.Counts.Triggered,
		},
		Config: ConfigJSON{
			Chip:           snap.Config.Chip,
			TickMs:         snap.Config.TickMs,
			SirenWarningMs: snap.Config.SirenWarningMs,
			BlinkOnsetMs:   snap.Config.BlinkOnsetMs,
			WatchdogMs:     snap.Config.WatchdogMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
