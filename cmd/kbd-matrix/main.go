// Command kbd-matrix scans a GPIO keyboard matrix and publishes debounced key
// events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/kbd-matrix/internal/config"
	"github.com/sweeney/kbd-matrix/internal/gpio"
	"github.com/sweeney/kbd-matrix/internal/matrix"
	"github.com/sweeney/kbd-matrix/internal/mqtt"
	"github.com/sweeney/kbd-matrix/internal/status"
	"github.com/sweeney/kbd-matrix/internal/web"
)

// eventQueue is the number of confirmed key events that may wait for the
// publish loop before the scanner blocks.
const eventQueue = 64

type options struct {
	configPath string
	printState bool
	// overrides holds flags set explicitly on the command line, by name.
	overrides map[string]string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("kbd-matrix", flag.ContinueOnError)
	configPath := fs.String("config", "/etc/kbd-matrix.toml", "Config file (.toml, .yaml or .yml); missing file means defaults")
	printState := fs.Bool("print-state", false, "Scan the matrix once, print pressed keys and exit")
	fs.String("broker", "", "MQTT broker address (overrides config)")
	fs.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	fs.Duration("heartbeat", 0, "Heartbeat interval (overrides config, 0 disables)")
	fs.String("chip", "", "GPIO chip name (overrides config)")
	fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.String("log-format", "", "Log format: text or json (overrides config)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		configPath: *configPath,
		printState: *printState,
		overrides:  make(map[string]string),
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "print-state":
		default:
			opts.overrides[f.Name] = f.Value.String()
		}
	})
	return opts, nil
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func applyOverrides(cfg *config.Config, overrides map[string]string) error {
	for name, v := range overrides {
		switch name {
		case "broker":
			cfg.MQTT.Broker = v
		case "http":
			if v == "off" {
				v = ""
			}
			cfg.HTTP.Addr = v
		case "heartbeat":
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
			// Round partial seconds up so a short interval never disables it.
			cfg.MQTT.HeartbeatSec = int((d + time.Second - 1) / time.Second)
		case "chip":
			cfg.GPIO.Chip = v
		case "log-level":
			cfg.Log.Level = v
		case "log-format":
			cfg.Log.Format = v
		default:
			return fmt.Errorf("unknown override %q", name)
		}
	}
	return nil
}

// loadConfig reads the file and environment, applies flag overrides, then
// validates once so a flag can fix a bad file value.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Read(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(cfg, opts.overrides); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(c config.LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, opts.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	mcfg := cfg.Matrix.Matrix()
	wake := matrix.NewWake()

	// Initialize GPIO
	hw, err := gpio.NewRealMatrix(cfg.GPIO.Lines(), wake.Signal)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer hw.Close()

	// Print state mode
	if printState {
		snap, _ := matrix.NewScanner(hw, mcfg).Scan()
		fmt.Print(formatGrid(snap, mcfg.Rows))
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Options())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	heartbeat := cfg.MQTT.Heartbeat()
	tracker := status.NewTracker(time.Now(), status.ConfigFrom(mcfg, heartbeat, cfg.MQTT.Broker, cfg.HTTP.Addr))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan matrix.Event, eventQueue)
	sink := matrix.SinkFunc(func(e matrix.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})

	poller, err := matrix.NewPoller(mcfg, hw, sink, wake, nil)
	if err != nil {
		return err
	}
	poller.OnMode = tracker.SetMode
	poller.OnCycle = tracker.RecordCycle

	pollDone := make(chan error, 1)
	go func() {
		pollDone <- poller.Run(ctx)
	}()
	// Scan once at startup so keys held at boot are seen without an edge.
	wake.Signal()

	log.Infof("started: matrix=%dx%d poll=%v idle=%v debounce=%v/%v broker=%s heartbeat=%v",
		mcfg.Rows, mcfg.Cols, mcfg.PollPeriod, mcfg.IdleTimeout, mcfg.DebounceDown, mcfg.DebounceUp,
		cfg.MQTT.Broker, heartbeat)

	var hb <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		hb = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(events, publisher, publisher, tracker, time.Now, hb, sigCh)

	cancel()
	if perr := <-pollDone; perr != nil && !errors.Is(perr, context.Canceled) {
		log.Errorf("scanner stopped: %v", perr)
	}
	if n := publisher.Buffered(); n > 0 {
		log.Warnf("%d buffered messages not delivered", n)
	}
	return err
}

// runLoop publishes confirmed key events, emits heartbeats and handles shutdown.
// It returns nil after a signal has been handled.
func runLoop(events <-chan matrix.Event, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			name := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    name,
				Retained:  true,
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", name)
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnf("failed to publish shutdown event: %v", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case e := <-events:
			log.Infof("key: col=%d row=%d %s", e.Col, e.Row, mqtt.StateString(e.Pressed))
			tracker.RecordEvent(e)
			if err := publisher.Publish(e); err != nil {
				// Don't crash on publish failure
				log.Warnf("publish error: %v", err)
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

		case <-heartbeat:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Infof("heartbeat: uptime=%v mode=%s presses=%d releases=%d cycles=%d ghost=%d wakeups=%d",
				snap.Uptime().Truncate(time.Second), snap.Mode, snap.Counts.Presses, snap.Counts.Releases,
				snap.Counts.ScanCycles, snap.Counts.GhostCycles, snap.Counts.Wakeups)

			hbEvent := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Warnf("heartbeat publish error: %v", err)
			}
		}
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

// formatGrid renders a raw scan as one line per row, 'X' for a closed switch.
func formatGrid(snap matrix.Snapshot, rows int) string {
	var b strings.Builder
	b.WriteString("    ")
	for c := range snap {
		fmt.Fprintf(&b, "%d", c%10)
	}
	b.WriteByte('\n')
	for r := 0; r < rows; r++ {
		fmt.Fprintf(&b, "R%-2d ", r)
		for _, mask := range snap {
			if mask&(1<<uint(r)) != 0 {
				b.WriteByte('X')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
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
