package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Gamer08YT/ByteWaterlevel/internal/analog"
	"github.com/Gamer08YT/ByteWaterlevel/internal/automation"
	"github.com/Gamer08YT/ByteWaterlevel/internal/clock"
	"github.com/Gamer08YT/ByteWaterlevel/internal/config"
	"github.com/Gamer08YT/ByteWaterlevel/internal/control"
	"github.com/Gamer08YT/ByteWaterlevel/internal/discovery"
	"github.com/Gamer08YT/ByteWaterlevel/internal/gpio"
	"github.com/Gamer08YT/ByteWaterlevel/internal/journal"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/mqtt"
	"github.com/Gamer08YT/ByteWaterlevel/internal/network"
	"github.com/Gamer08YT/ByteWaterlevel/internal/relay"
	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
	"github.com/Gamer08YT/ByteWaterlevel/internal/update"
	"github.com/Gamer08YT/ByteWaterlevel/internal/version"
	"github.com/Gamer08YT/ByteWaterlevel/internal/web"
)

const (
	updateInterval  = 6 * time.Hour
	shutdownTimeout = 5 * time.Second
)

func runDaemon(cmd *cobra.Command, args []string) error {
	p, err := config.Open(configPath)
	if err != nil {
		return err
	}
	log := logger.Get(levelFor(p))
	defer func() { _ = log.Sync() }()
	app := config.Load(p, log)

	// Hardware
	fill, err := gpio.NewRealOutput(app.Relay.Chip, app.Relay.Fill, app.Relay.ActiveLow)
	if err != nil {
		return fmt.Errorf("init fill relay: %w", err)
	}
	pump, err := gpio.NewRealOutput(app.Relay.Chip, app.Relay.Pump, app.Relay.ActiveLow)
	if err != nil {
		_ = fill.Close()
		return fmt.Errorf("init pump relay: %w", err)
	}
	clk := clock.NewMonotonic()
	relays := relay.New(clk, log.Named("relay"), fill, pump)
	defer func() {
		if err := relays.Close(); err != nil {
			log.Warnw("relay_close_failed", "err", err)
		}
	}()

	var led gpio.Output
	if app.LED.Enabled {
		out, err := gpio.NewRealOutput(app.Relay.Chip, app.LED.Pin, false)
		if err != nil {
			log.Warnw("led_unavailable", "pin", app.LED.Pin, "err", err)
		} else {
			led = out
			defer out.Close()
		}
	}

	adc, err := analog.NewSysfsReader(app.ADCPath)
	if err != nil {
		return fmt.Errorf("open adc: %w", err)
	}
	cache, err := sensor.New(app.Sensor, adc, thermometer(app.ThermalDev), log.Named("sensor"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var wg sync.WaitGroup

	radio := network.NewNMRadio(app.WiFi.Interface, app.WiFi.APInterface, network.ExecRunner, log.Named("wifi"))
	radio.Start(ctx)
	defer radio.Close()
	wifi := network.NewManager(app.WiFi.Config, radio, log.Named("wifi"))

	auto := automation.New(app.Auto, relays, cache, log.Named("automation"))

	// Telemetry
	mqttCfg := mqtt.Config{
		Host:     app.MQTT.Host,
		Port:     app.MQTT.Port,
		User:     app.MQTT.User,
		Password: app.MQTT.Password,
		ClientID: app.Name,
		Prefix:   app.MQTT.Prefix,
	}
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
		broker     string
		interval   time.Duration
	)
	if app.MQTT.Enabled {
		rp, err := mqtt.NewRealPublisher(mqttCfg, log.Named("mqtt"))
		if err != nil {
			log.Warnw("mqtt_disabled", "err", err)
		} else {
			publisher, mqttStatus = rp, rp
			broker = mqttCfg.Broker()
			interval = app.MQTT.Interval
		}
	}

	// Journal
	var (
		recorder *journal.Recorder
		events   web.EventLister
	)
	if app.JournalPath != "" {
		store, err := journal.Open(app.JournalPath)
		if err != nil {
			log.Warnw("journal_disabled", "path", app.JournalPath, "err", err)
		} else {
			defer store.Close()
			recorder = journal.NewRecorder(store, journal.DefaultQueueSize, log.Named("journal"))
			recorder.Start()
			defer recorder.Close()
			events = store
		}
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Name:         app.Name,
		Version:      version.Version,
		Broker:       broker,
		HTTPAddress:  app.Web.Address,
		TankCapacity: app.Sensor.TankCapacity,
		ScanMs:       cache.Config().ScanInterval.Milliseconds(),
	})

	deps := control.Deps{
		Clock:      clk,
		Relays:     relays,
		Sensor:     cache,
		Network:    wifi,
		Automation: auto,
		Tracker:    tracker,
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Journal:    recorder,
		LED:        led,
	}

	if app.OTA {
		adv := discovery.NewAdvertiser(app.WiFi.APSSID, webPort(app.Web.Address), version.Version, nil, log.Named("mdns"))
		deps.Advertiser = adv
		wg.Add(1)
		go func() {
			defer wg.Done()
			adv.Run(ctx)
		}()
	}

	var updates web.UpdateStatus
	checker := update.NewChecker(app.UpdateURL, version.Version, wifi.IsConnected, log.Named("update"))
	if checker.Enabled() {
		updates = checker
		wg.Add(1)
		go func() {
			defer wg.Done()
			checker.Run(ctx, updateInterval)
		}()
	}

	// The loop closes the publisher on shutdown.
	loop := control.New(control.Config{
		TelemetryInterval: interval,
		SSID:              app.WiFi.StationSSID,
		PublishQueue:      mqtt.DefaultQueueSize,
	}, deps, log.Named("control"))

	// Web
	gin.SetMode(gin.ReleaseMode)
	srv := web.New(app.Web.Address, web.Deps{
		Tracker:  tracker,
		Relays:   loop,
		Events:   events,
		Updates:  updates,
		Admin:    app.Admin.Enabled,
		Password: app.Admin.Password,
	}, log.Named("web"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http_server_failed", "err", err)
		}
	}()

	log.Infow("started",
		"version", version.Version,
		"name", app.Name,
		"mode", app.Auto.Mode.String(),
		"http", app.Web.Address,
		"broker", broker,
	)

	ticker := time.NewTicker(control.DefaultTickPeriod)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runErr := loop.Run(ctx, ticker.C, sigCh)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http_shutdown_failed", "err", err)
	}
	cancel()
	wg.Wait()
	return runErr
}

// levelFor returns --log-level when given, else log.level.
func levelFor(p *config.Provider) string {
	if logLevel != "" {
		return logLevel
	}
	return p.String("log.level")
}

// thermometer returns nil when no thermal zone is configured.
func thermometer(path string) analog.Thermometer {
	if path == "" {
		return nil
	}
	return analog.NewSysfsThermometer(path)
}

// webPort extracts the port of a listen address, 80 when absent.
func webPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return 80
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 80
	}
	return n
}
