// Command car-alarm runs the car alarm state machine on Linux GPIO lines.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/car-alarm/internal/config"
	"github.com/sweeney/car-alarm/internal/gpio"
	"github.com/sweeney/car-alarm/internal/logger"
	"github.com/sweeney/car-alarm/internal/logic"
	"github.com/sweeney/car-alarm/internal/mqtt"
	"github.com/sweeney/car-alarm/internal/status"
	"github.com/sweeney/car-alarm/internal/watchdog"
	"github.com/sweeney/car-alarm/internal/web"
)

// exitWatchdog is the exit status after a watchdog expiry.
const exitWatchdog = 3

func main() {
	ctx := logger.ToContext(context.Background(), logger.Logger())
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, printState bool) error {
	device, err := gpio.NewRealDevice(cfg.Chip, cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer device.Close()

	// The debug jumper and the delay jumpers are sampled once at boot.
	boot, err := device.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}

	if printState {
		fmt.Println(formatSample(boot))
		return nil
	}

	mode := status.ModeAlarm
	if boot.Debug {
		mode = status.ModeDebug
	}
	ctx = logger.WithName(ctx, string(mode))

	var ctrl controller
	if mode == status.ModeDebug {
		logger.Warnf(ctx, "debug jumper fitted: state machine disabled, outputs follow sensors")
		ctrl = debugController{}
	} else {
		m, err := logic.NewMachine(cfg.Timing(), toInput(boot, time.Now()))
		if err != nil {
			return fmt.Errorf("init state machine: %w", err)
		}
		logger.InfoKV(ctx, "armed at boot", "state", m.State(), "arm_delay_minutes", m.ArmDelay())
		ctrl = m
	}

	tracker := status.NewTracker(time.Now(), mode, status.Config{
		Chip:           cfg.Chip,
		TickMs:         cfg.Tick.Milliseconds(),
		SirenWarningMs: cfg.SirenWarning.Milliseconds(),
		BlinkOnsetMs:   cfg.BlinkOnset.Milliseconds(),
		WatchdogMs:     cfg.Watchdog.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
	})

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	kick := func() {}
	if cfg.Watchdog > 0 {
		// The loop may still be using the lines, so they are left to the
		// kernel to release when the process exits.
		wd := watchdog.New(cfg.Watchdog, func() {
			logger.ErrorKV(ctx, "watchdog expired, restarting", "timeout", cfg.Watchdog)
			os.Exit(exitWatchdog)
		})
		go wd.Run(loopCtx)
		kick = wd.Kick
	}

	d := loopDeps{
		device:    device,
		tracker:   tracker,
		kick:      kick,
		heartbeat: cfg.Heartbeat,
		now:       time.Now,
	}

	if cfg.Broker != "" {
		publisher := mqtt.NewRealPublisher(ctx, cfg.Broker)
		defer publisher.Close()
		d.publisher = publisher
		d.mqttStatus = publisher

		startup := mqtt.SystemEvent{
			Timestamp:  time.Now(),
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Warnf(ctx, "failed to publish startup event: %v", err)
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(ctx, "http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof(ctx, "http status server listening on %s", cfg.HTTPAddr)
	}

	logger.InfoKV(ctx, "started",
		"tick", cfg.Tick, "siren_warning", cfg.SirenWarning, "watchdog", cfg.Watchdog, "broker", cfg.Broker,
		"log_level", logger.Level())

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	d.tick = ticker.C

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	d.sig = sigCh

	err = runLoop(loopCtx, d, ctrl)
	// Stop the watchdog before the deferred cleanup, which may wait on the broker.
	cancel()
	return err
}

// controller is the per-tick logic: the alarm state machine, or the debug
// pass-through when the debug jumper was fitted at boot.
type controller interface {
	Step(in logic.Input) logic.Outputs
	Transitions() []logic.Event
	Snapshot() logic.Snapshot
}

type debugController struct{}

func (debugController) Step(in logic.Input) logic.Outputs { return logic.DebugOutputs(in) }
func (debugController) Transitions() []logic.Event { return nil }
func (debugController) Snapshot() logic.Snapshot { return logic.Snapshot{} }

// loopDeps are the collaborators of runLoop. publisher and mqttStatus may be nil.
type loopDeps struct {
	device     gpio.Device
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	kick       func()
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
}

func runLoop(ctx context.Context, d loopDeps, ctrl controller) error {
	lastHeartbeat := d.now()

	for {
		select {
		case s := <-d.sig:
			shutdown(ctx, d, s)
			return nil

		case <-d.tick:
			d.kick()
			t := d.now()

			sample, err := d.device.Read()
			if err != nil {
				// Outputs keep their last levels until the next good sample.
				logger.WarnKV(ctx, "gpio read error, tick skipped", "err", err)
				continue
			}

			in := toInput(sample, t)
			out := ctrl.Step(in)
			if err := d.device.Write(toLevels(out)); err != nil {
				logger.WarnKV(ctx, "gpio write error", "err", err)
			}

			for _, event := range ctrl.Transitions() {
				logger.InfoKV(ctx, "state changed",
					"from", event.From, "to", event.To, "arm_delay_minutes", event.ArmDelay,
					"led", event.Outputs.LED, "siren", event.Outputs.Siren, "relay", event.Outputs.Relay)
				if d.publisher == nil {
					continue
				}
				if err := d.publisher.Publish(event); err != nil {
					logger.Warnf(ctx, "publish error: %v", err)
				}
			}

			d.tracker.Update(ctrl.Snapshot(), in, out)
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}

			if d.publisher != nil && d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				hb := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := d.publisher.PublishSystem(hb); err != nil {
					logger.Warnf(ctx, "heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func shutdown(ctx context.Context, d loopDeps, s os.Signal) {
	logger.Infof(ctx, "received %v, shutting down", s)

	if err := d.device.Write(gpio.Levels{}); err != nil {
		logger.Warnf(ctx, "gpio write error: %v", err)
	}

	if d.publisher == nil {
		return
	}

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName),
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		logger.Warnf(ctx, "failed to publish shutdown event: %v", err)
	}
}

func toInput(s gpio.Sample, t time.Time) logic.Input {
	return logic.Input{
		Door:      s.Door,
		SecretKey: s.SecretKey,
		Ignition:  s.Ignition,
		Debug:     s.Debug,
		Jumper1:   s.Jumper1,
		Jumper2:   s.Jumper2,
		Time:      t,
	}
}

func toLevels(o logic.Outputs) gpio.Levels {
	return gpio.Levels{LED: o.LED, Siren: o.Siren, Relay: o.Relay}
}

func formatSample(s gpio.Sample) string {
	return fmt.Sprintf("door: %s, secret key: %s, ignition: %s, debug: %s, jumpers: %s%s (%d min)",
		stateString(s.Door), stateString(s.SecretKey), stateString(s.Ignition), stateString(s.Debug),
		levelString(s.Jumper1), levelString(s.Jumper2), logic.DelayMinutes(s.Jumper1, s.Jumper2))
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func levelString(high bool) string {
	if high {
		return "1"
	}
	return "0"
}
