// Command patchbay scans a matrix of patch-bay jacks over GPIO and announces
// which inputs each output is patched to, as MIDI control changes and MQTT
// events.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sweeney/patchbay/internal/config"
	"github.com/sweeney/patchbay/internal/gpio"
	"github.com/sweeney/patchbay/internal/status"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "patchbay",
		Short: "Patch bay connectivity scanner",
		Long: `Scans every output/input jack pair of a patch bay wired to GPIO lines
and reports the patch cords it finds.

Examples:
  patchbay run                                  # Scan forever, send MIDI and MQTT
  patchbay run --broker tcp://10.0.0.2:1883     # Also publish to MQTT
  patchbay scan --driver periph                 # Print one scan and exit`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "JSON config file overlaying the defaults")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("driver", "", "GPIO driver (cdev, periph, rpio, fake)")
	pf.String("chip", "", "GPIO character device for the cdev driver")
	pf.Duration("settle", 0, "settle delay after each pin change")

	root.AddCommand(newRunCmd(), newScanCmd())
	return root
}

// loadConfig builds the configuration: defaults, then the --config file,
// then any flag set on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	str := func(name string, dst *string) {
		if f.Lookup(name) != nil && f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	dur := func(name string, dst *config.Duration) {
		if f.Lookup(name) != nil && f.Changed(name) {
			d, _ := f.GetDuration(name)
			*dst = config.Duration(d)
		}
	}

	str("log-level", &cfg.LogLevel)
	str("driver", &cfg.Driver)
	str("chip", &cfg.Chip)
	str("midi-device", &cfg.MIDIDevice)
	str("broker", &cfg.Broker)
	str("http", &cfg.HTTPAddr)
	dur("settle", &cfg.Settle)
	dur("loop-delay", &cfg.LoopDelay)
	dur("pace", &cfg.Pace)
	dur("resync", &cfg.Resync)
	dur("heartbeat", &cfg.Heartbeat)
	if f.Lookup("midi-channel") != nil && f.Changed("midi-channel") {
		cfg.MIDIChannel, _ = f.GetInt("midi-channel")
	}
	if f.Lookup("debug") != nil && f.Changed("debug") {
		cfg.Debug, _ = f.GetBool("debug")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	})
}

// openPins requests the configured lines from the selected driver.
func openPins(cfg config.Config) (gpio.PinSet, error) {
	outs := cfg.OutputLines()
	switch cfg.Driver {
	case config.DriverPeriph:
		return gpio.NewPeriphPinSet(cfg.Inputs, outs)
	case config.DriverRpio:
		return gpio.NewRpioPinSet(cfg.Inputs, outs)
	case config.DriverFake:
		return gpio.NewFakePinSet(len(cfg.Inputs), len(outs)), nil
	default:
		return gpio.NewCdevPinSet(cfg.Chip, cfg.Inputs, outs)
	}
}

func statusConfig(cfg config.Config) status.Config {
	ctrls := make([]uint8, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		ctrls[i] = uint8(o.Controller)
	}
	ms := func(d config.Duration) float64 {
		return float64(d) / 1e6
	}
	return status.Config{
		Driver:      cfg.Driver,
		InputLines:  cfg.Inputs,
		OutputLines: cfg.OutputLines(),
		Controllers: ctrls,
		MIDIDevice:  cfg.MIDIDevice,
		MIDIChannel: cfg.MIDIChannel,
		LoopDelayMs: ms(cfg.LoopDelay),
		PaceMs:      ms(cfg.Pace),
		SettleMs:    ms(cfg.Settle),
		ResyncMs:    int64(ms(cfg.Resync)),
		HeartbeatMs: int64(ms(cfg.Heartbeat)),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
