package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/car-alarm/internal/config"
	"github.com/sweeney/car-alarm/internal/gpio"
	"github.com/sweeney/car-alarm/internal/logic"
	"github.com/sweeney/car-alarm/internal/mqtt"
	"github.com/sweeney/car-alarm/internal/status"
)

var loopStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample gpio.Sample, n int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

func concat(parts ...[]gpio.Sample) []gpio.Sample {
	var out []gpio.Sample
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// faultDevice wraps a FakeDevice and returns errors for a range of Read() calls.
type faultDevice struct {
	*gpio.FakeDevice
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (d *faultDevice) Read() (gpio.Sample, error) {
	i := d.call
	d.call++
	if i >= d.faultStart && i < d.faultEnd {
		return gpio.Sample{}, errors.New("gpio fault")
	}
	return d.FakeDevice.Read()
}

func newMachine(t *testing.T) *logic.Machine {
	t.Helper()
	m, err := logic.NewMachine(logic.DefaultConfig(), logic.Input{Time: loopStart})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func newTracker(mode status.Mode) *status.Tracker {
	return status.NewTracker(loopStart, mode, status.Config{TickMs: 20})
}

// runRunLoop drives runLoop for nTicks ticks and then delivers signal.
// A nil pub runs the loop without telemetry.
func runRunLoop(t *testing.T, d loopDeps, pub *mqtt.FakePublisher, ctrl controller, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	d.tick = tick
	d.sig = sig
	if d.kick == nil {
		d.kick = func() {}
	}
	if d.now == nil {
		d.now = fakeClock(loopStart, 20*time.Millisecond)
	}
	if d.tracker == nil {
		d.tracker = newTracker(status.ModeAlarm)
	}
	if pub != nil {
		d.publisher = pub
		d.mqttStatus = pub
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), d, ctrl)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopTriggeredAtBoot(t *testing.T) {
	dev := gpio.NewFakeDevice(repeat(gpio.Sample{}, 3))
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, loopDeps{device: dev}, pub, newMachine(t), 3, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 transitions, got %d", len(pub.Events))
	}
	for i, w := range dev.Writes[:3] {
		if w != (gpio.Levels{Siren: true}) {
			t.Errorf("write %d: expected siren only, got %+v", i, w)
		}
	}
}

func TestRunLoopRelayFollowsIgnition(t *testing.T) {
	samples := concat(repeat(gpio.Sample{}, 2), repeat(gpio.Sample{Ignition: true}, 2))
	dev := gpio.NewFakeDevice(samples)

	err := runRunLoop(t, loopDeps{device: dev}, nil, newMachine(t), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if dev.Writes[1].Relay {
		t.Error("relay energised with ignition off")
	}
	if !dev.Writes[3].Relay || !dev.Writes[3].Siren {
		t.Errorf("expected siren and relay with ignition on, got %+v", dev.Writes[3])
	}
}

func TestRunLoopSecretKeyDisarms(t *testing.T) {
	samples := concat(repeat(gpio.Sample{}, 2), []gpio.Sample{{SecretKey: true}, {}})
	dev := gpio.NewFakeDevice(samples)
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, loopDeps{device: dev}, pub, newMachine(t), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(pub.Events))
	}
	e := pub.Events[0]
	if e.From != logic.StateTriggered || e.To != logic.StateDisarmed {
		t.Errorf("expected TRIGGERED -> DISARMED, got %s -> %s", e.From, e.To)
	}
	// Tick 3 at 20ms per tick; the clock is read once before the first tick.
	if want := loopStart.Add(60 * time.Millisecond); !e.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", e.Timestamp, want)
	}
	if dev.Writes[3] != (gpio.Levels{LED: true}) {
		t.Errorf("expected steady LED after disarm, got %+v", dev.Writes[3])
	}
}

func TestRunLoopFullArmingSequence(t *testing.T) {
	const minuteTicks = 3000
	const sirenTicks = 150

	samples := concat(
		[]gpio.Sample{{SecretKey: true}, {Door: true}},
		repeat(gpio.Sample{}, minuteTicks),
		repeat(gpio.Sample{Ignition: true}, 1+sirenTicks),
	)
	dev := gpio.NewFakeDevice(samples)
	pub := mqtt.NewFakePublisher()
	tracker := newTracker(status.ModeAlarm)

	err := runRunLoop(t, loopDeps{device: dev, tracker: tracker}, pub, newMachine(t), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []logic.State{
		logic.StateDisarmed,
		logic.StateCountingDown,
		logic.StateCountdownExpired,
		logic.StateWarningSiren,
		logic.StateTriggered,
	}
	if len(pub.Events) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(pub.Events))
	}
	for i, s := range want {
		if pub.Events[i].To != s {
			t.Errorf("transition %d: expected %s, got %s", i, s, pub.Events[i].To)
		}
	}
	if len(pub.Payloads) != len(want) {
		t.Errorf("expected %d payloads, got %d", len(want), len(pub.Payloads))
	}

	last := dev.Writes[len(samples)-1]
	if last != (gpio.Levels{Siren: true, Relay: true}) {
		t.Errorf("expected siren and relay at the end, got %+v", last)
	}

	snap := tracker.Snapshot()
	if snap.Ticks != uint64(len(samples)) {
		t.Errorf("tracker ticks: got %d, want %d", snap.Ticks, len(samples))
	}
	if snap.Alarm.State != logic.StateTriggered {
		t.Errorf("tracker state: got %s, want TRIGGERED", snap.Alarm.State)
	}
	// One entry at boot and one when the relay cut in.
	if snap.Alarm.Counts.Triggered != 2 {
		t.Errorf("tracker triggered entries: got %d, want 2", snap.Alarm.Counts.Triggered)
	}
}

func TestRunLoopDebugMode(t *testing.T) {
	samples := []gpio.Sample{{Door: true}, {}, {Ignition: true}, {SecretKey: true}, {}}
	dev := gpio.NewFakeDevice(samples)
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, loopDeps{device: dev, tracker: newTracker(status.ModeDebug)}, pub, debugController{}, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	all := gpio.Levels{LED: true, Siren: true, Relay: true}
	want := []gpio.Levels{all, {}, all, all, {}}
	for i, w := range want {
		if dev.Writes[i] != w {
			t.Errorf("write %d: got %+v, want %+v", i, dev.Writes[i], w)
		}
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected no transitions in debug mode, got %d", len(pub.Events))
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	dev := &faultDevice{
		FakeDevice: gpio.NewFakeDevice(repeat(gpio.Sample{}, 6)),
		faultStart: 2,
		faultEnd:   4,
	}

	err := runRunLoop(t, loopDeps{device: dev}, nil, newMachine(t), 6, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// 4 good ticks plus the shutdown write.
	if len(dev.Writes) != 5 {
		t.Errorf("expected 5 writes, got %d", len(dev.Writes))
	}
}

func TestRunLoopPublishError(t *testing.T) {
	samples := []gpio.Sample{{SecretKey: true}, {Door: true}, {}}
	dev := gpio.NewFakeDevice(samples)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	m := newMachine(t)

	err := runRunLoop(t, loopDeps{device: dev}, pub, m, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if m.State() != logic.StateCountingDown {
		t.Errorf("expected COUNTING_DOWN despite publish errors, got %s", m.State())
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	dev := gpio.NewFakeDevice(repeat(gpio.Sample{}, 10))
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, loopDeps{device: dev, heartbeat: 100 * time.Millisecond}, pub, newMachine(t), 10, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	got := pub.SystemEventNames()
	want := []string{"HEARTBEAT", "HEARTBEAT", "SHUTDOWN"}
	if len(got) != len(want) {
		t.Fatalf("system events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("system event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if pub.SystemEvents[0].Retained {
		t.Error("heartbeat should not be retained")
	}
}

func TestRunLoopShutdown(t *testing.T) {
	tests := []struct {
		signal os.Signal
		reason string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			dev := gpio.NewFakeDevice(repeat(gpio.Sample{}, 2))
			pub := mqtt.NewFakePublisher()

			err := runRunLoop(t, loopDeps{device: dev}, pub, newMachine(t), 2, tt.signal)
			if err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
			}
			e := pub.SystemEvents[0]
			if e.Event != "SHUTDOWN" || e.Reason != tt.reason || !e.Retained {
				t.Errorf("unexpected shutdown event: %+v", e)
			}
			if dev.Last() != (gpio.Levels{}) {
				t.Errorf("expected outputs low after shutdown, got %+v", dev.Last())
			}
		})
	}
}

func TestRunLoopKicksWatchdogEveryTick(t *testing.T) {
	kicks := 0
	dev := gpio.NewFakeDevice(repeat(gpio.Sample{}, 7))

	err := runRunLoop(t, loopDeps{device: dev, kick: func() { kicks++ }}, nil, newMachine(t), 7, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if kicks != 7 {
		t.Errorf("expected 7 kicks, got %d", kicks)
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	dev := gpio.NewFakeDevice(repeat(gpio.Sample{}, 1))
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := newTracker(status.ModeAlarm)

	err := runRunLoop(t, loopDeps{device: dev, tracker: tracker}, pub, newMachine(t), 1, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
}

func TestFormatSample(t *testing.T) {
	got := formatSample(gpio.Sample{Door: true, Jumper1: true})
	want := "door: ON, secret key: OFF, ignition: OFF, debug: OFF, jumpers: 10 (5 min)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "car-alarm.yaml")
	contents := "broker: tcp://file:1883\nhttp: \":8080\"\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Set("broker", "tcp://flag:1883"))

	cfg, err := loadConfig(cmd, rootFlags{configPath: path, broker: "tcp://flag:1883"})
	require.NoError(t, err)

	require.Equal(t, "tcp://flag:1883", cfg.Broker)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigRejectsBadLevel(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Set("log-level", "loud"))

	path := filepath.Join(t.TempDir(), "car-alarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick: 20ms\n"), 0o600))

	_, err := loadConfig(cmd, rootFlags{configPath: path, logLevel: "loud"})
	require.Error(t, err)
}

func TestLoadConfigRejectsFatalLevel(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Set("log-level", "fatal"))

	path := filepath.Join(t.TempDir(), "car-alarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick: 20ms\n"), 0o600))

	_, err := loadConfig(cmd, rootFlags{configPath: path, logLevel: "fatal"})
	require.Error(t, err)
}

func TestSaveConfigWritesMergedSettings(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.yaml")
	out := filepath.Join(dir, "out.yaml")
	require.NoError(t, os.WriteFile(in, []byte("tick: 10ms\n"), 0o600))

	var stdout bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", in, "--broker", "tcp://flag:1883", "--save-config", out})
	require.NoError(t, cmd.Execute())

	saved, err := config.Load(out)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, saved.Tick)
	require.Equal(t, "tcp://flag:1883", saved.Broker)
	require.Contains(t, stdout.String(), out)
}
