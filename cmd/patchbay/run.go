package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/patchbay/internal/config"
	"github.com/sweeney/patchbay/internal/gpio"
	"github.com/sweeney/patchbay/internal/midi"
	"github.com/sweeney/patchbay/internal/mqtt"
	"github.com/sweeney/patchbay/internal/patch"
	"github.com/sweeney/patchbay/internal/status"
	"github.com/sweeney/patchbay/internal/transmit"
	"github.com/sweeney/patchbay/internal/web"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the patch bay continuously and announce changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.String("midi-device", "", `raw MIDI device to write control changes to ("" disables)`)
	f.Int("midi-channel", 0, "MIDI channel (0-15)")
	f.String("broker", "", `MQTT broker address ("" disables)`)
	f.String("http", "", `HTTP status address ("" disables)`)
	f.Bool("debug", false, "print every sent event to stdout")
	f.Duration("loop-delay", 0, "pause between scans")
	f.Duration("pace", 0, "minimum gap between two sent events")
	f.Duration("resync", 0, "interval after which every output is re-sent")
	f.Duration("heartbeat", 0, "heartbeat interval (0 to disable)")
	return cmd
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	pins, err := openPins(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	// Quiescent state before the first scan.
	if err := pins.DriveAllLow(); err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	width := len(cfg.Inputs)
	var sinks transmit.Sinks

	if cfg.MIDIDevice != "" {
		ms, err := midi.Open(cfg.MIDIDevice, uint8(cfg.MIDIChannel))
		if err != nil {
			return err
		}
		defer ms.Close()
		sinks = append(sinks, ms)
		logger.Info("midi output open", "device", cfg.MIDIDevice, "channel", cfg.MIDIChannel)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		rp, err := mqtt.NewRealPublisher(cfg.Broker, width, logger.WithPrefix("mqtt"))
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher, mqttStatus = rp, rp
		sinks = append(sinks, rp)
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if publisher != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		err := publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		})
		if err != nil {
			logger.Warn("failed to publish startup event", "err", err)
		}
	}

	if cfg.HTTPAddr != "" {
		weblog := logger.WithPrefix("web")
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				weblog.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		weblog.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	var debug io.Writer
	if cfg.Debug {
		debug = os.Stdout
	}

	l := &loop{
		scanner: patch.NewScanner(pins, time.Duration(cfg.Settle), time.Sleep),
		tx: transmit.New(sinks, cfg.PatchOutputs(), transmit.Options{
			Pace:   time.Duration(cfg.Pace),
			Width:  width,
			Debug:  debug,
			Logger: logger.WithPrefix("transmit"),
		}),
		pins:       pins,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		logger:     logger.WithPrefix("scan"),
		loopDelay:  time.Duration(cfg.LoopDelay),
		resync:     time.Duration(cfg.Resync),
		heartbeat:  time.Duration(cfg.Heartbeat),
		now:        time.Now,
		after:      time.After,
	}

	logger.Info("started",
		"driver", cfg.Driver,
		"inputs", len(cfg.Inputs),
		"outputs", len(cfg.Outputs),
		"loop", time.Duration(cfg.LoopDelay),
		"resync", time.Duration(cfg.Resync))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return l.run(sigCh)
}

// loop is the scan and transmit cycle. It runs on a single goroutine.
// publisher, mqttStatus and tracker may be nil.
type loop struct {
	scanner    *patch.Scanner
	tx         *transmit.Transmitter
	pins       gpio.PinSet
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	logger     *log.Logger

	loopDelay time.Duration
	resync    time.Duration
	heartbeat time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	resyncs int
}

// run scans until a signal arrives or the hardware fails. The first scan is
// announced in full; afterwards only changed outputs are sent, plus every
// output once per resync interval.
func (l *loop) run(sig <-chan os.Signal) error {
	start := l.now()
	lastResync := start
	lastHeartbeat := start
	forceAll := true

	for {
		select {
		case s := <-sig:
			return l.shutdown(s)
		case <-l.after(l.loopDelay):
		}

		graph, changes, err := l.scanner.Scan()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		t := l.now()
		if t.Sub(lastResync) > l.resync {
			forceAll = true
			lastResync = t
			l.resyncs++
			l.logger.Debug("resync", "count", l.resyncs)
		}

		if changes.Any() {
			l.logger.Debug("patch changed", "matrix", graph, "changes", changes)
		}
		l.tx.Emit(graph, changes, forceAll)
		forceAll = false

		if l.tracker == nil {
			continue
		}
		l.updateTracker(graph, lastResync)

		if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
			lastHeartbeat = t
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			l.publishSystem("HEARTBEAT", "")
		}
	}
}

func (l *loop) updateTracker(graph patch.Matrix, lastResync time.Time) {
	l.tracker.Update(graph, l.scanner.Counts(), status.TransmitCounts{
		Sent:    l.tx.Sent(),
		Failed:  l.tx.Failed(),
		Resyncs: l.resyncs,
	}, lastResync)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) shutdown(s os.Signal) error {
	name := signalName(s)
	l.logger.Info("shutting down", "signal", name)

	if err := l.pins.DriveAllLow(); err != nil {
		l.logger.Error("failed to drive pins low", "err", err)
	}
	l.publishSystem("SHUTDOWN", name)
	return nil
}

func (l *loop) publishSystem(event, reason string) {
	if l.publisher == nil {
		return
	}
	ev := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     event,
		Reason:    reason,
		Retained:  event != "HEARTBEAT",
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		ev.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	if err := l.publisher.PublishSystem(ev); err != nil {
		l.logger.Warn("system event publish failed", "event", event, "err", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
