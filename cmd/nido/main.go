// Command nido runs the thermostat: it reads the indoor temperature, drives
// the heat and cool relays, publishes state changes to MQTT and serves a
// status page and control API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/control"
	"github.com/sweeney/nido/internal/gpio"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/metrics"
	"github.com/sweeney/nido/internal/mqtt"
	"github.com/sweeney/nido/internal/scheduler"
	"github.com/sweeney/nido/internal/sensor"
	"github.com/sweeney/nido/internal/status"
	"github.com/sweeney/nido/internal/weather"
	"github.com/sweeney/nido/internal/web"
)

const defaultConfigPath = "/etc/nido/config.yaml"

// Environment overrides for flag defaults, optionally seeded from .env.
const (
	envConfig = "NIDO_CONFIG"
	envHTTP   = "NIDO_HTTP"
	envBroker = "NIDO_BROKER"
)

// piHelperEnv is where pi-helper writes the current network state.
const piHelperEnv = "/run/pi-helper.env"

type options struct {
	configPath      string
	httpAddr        string // "" uses web.port, "off" disables
	broker          string // "" uses mqtt.broker
	poll            time.Duration
	heartbeat       time.Duration
	weatherInterval time.Duration
	printState      bool
}

func main() {
	if err := loadEnvFile(".env"); err != nil {
		log.Printf("env: %v", err)
	}

	var o options
	flag.StringVar(&o.configPath, "config", envOr(envConfig, defaultConfigPath), "Path to the YAML configuration file")
	flag.StringVar(&o.httpAddr, "http", os.Getenv(envHTTP), `HTTP address (default ":<web.port>", "off" disables)`)
	flag.StringVar(&o.broker, "broker", os.Getenv(envBroker), "MQTT broker address (default mqtt.broker from config)")
	flag.DurationVar(&o.poll, "poll", 0, "Control interval (default daemon.poll_interval from config)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.weatherInterval, "weather-interval", scheduler.DefaultInterval, "Outdoor conditions refresh interval")
	flag.BoolVar(&o.printState, "print-state", false, "Print current relay state and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	store := config.NewStore(o.configPath, nil)
	st, err := store.Settings()
	if err != nil {
		return fmt.Errorf("load config %s: %w", o.configPath, err)
	}

	if o.printState {
		heat, cool, err := gpio.ReadLines(st.HeatPin, st.CoolPin)
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatState(heat, cool))
		return nil
	}

	// Initialize GPIO; both relays start released.
	act, err := gpio.NewRealActuator(st.HeatPin, st.CoolPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer act.Close()

	engine := control.NewEngine(act, sensor.NewFileReader(st.SensorPath), store)

	broker := o.broker
	if broker == "" {
		broker = st.Broker
	}
	poll := o.poll
	if poll <= 0 {
		poll = st.PollInterval
	}
	httpAddr := o.httpAddr
	if httpAddr == "" {
		httpAddr = fmt.Sprintf(":%d", st.HTTPPort)
	}
	if httpAddr == "off" {
		httpAddr = ""
	}

	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      poll.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPAddr:    httpAddr,
		ConfigPath:  o.configPath,
	})
	if net := readNetworkInfo(piHelperEnv); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New()

	// Outdoor conditions are informational; they never feed the control decision.
	provider := weather.NewHTTPProvider(nil, weather.DefaultBaseURL, store)
	cache := weather.NewCache(provider, weather.Location{
		Lat: st.Location.Lat,
		Lon: st.Location.Lon,
		Zip: st.Location.Zip,
	}, weather.WithObserver(m))
	sched := scheduler.New(scheduler.NewWeatherJob(cache, store, publisher, m, time.Now), o.weatherInterval)
	if err := sched.Start(); err != nil {
		log.Printf("scheduler: %v", err)
	}
	defer sched.Stop()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	wake := make(chan struct{}, 1)

	// Start HTTP server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, store,
			web.WithWeather(cache),
			web.WithMetrics(m.Handler()),
			web.WithWake(wake),
		)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", httpAddr)
	}

	log.Printf("started: config=%s poll=%v broker=%s heartbeat=%v heat_pin=%d cool_pin=%d",
		o.configPath, poll, broker, o.heartbeat, st.HeatPin, st.CoolPin)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		engine:     engine,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		heartbeat:  o.heartbeat,
		now:        time.Now,
		network:    func() *status.NetworkInfo { return readNetworkInfo(piHelperEnv) },
	}
	return l.run(ticker.C, wake, sigCh)
}

// loop owns the control cycle. Everything it touches is either owned by
// its goroutine or safe for concurrent use.
type loop struct {
	engine     *control.Engine
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	metrics    *metrics.Metrics      // may be nil
	heartbeat  time.Duration
	now        func() time.Time
	network    func() *status.NetworkInfo // may be nil

	counts        logic.EventCounts
	lastParams    logic.Params
	lastHeartbeat time.Time
}

// run cycles once immediately, then on every tick or wake until a signal
// arrives. On exit both outputs are driven inactive.
func (l *loop) run(tick <-chan time.Time, wake <-chan struct{}, sig <-chan os.Signal) error {
	l.lastHeartbeat = l.now()
	l.cycle()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(signalName(s))
			return nil

		case <-wake:
			log.Printf("control: configuration changed, re-evaluating")
			l.cycle()

		case <-tick:
			l.cycle()
		}
	}
}

func (l *loop) cycle() {
	t := l.now()
	res, err := l.engine.Cycle()

	var (
		se *control.SensorError
		pe *control.ParamsError
	)
	params := res.Params
	if errors.As(err, &se) || errors.As(err, &pe) {
		params = l.lastParams
	} else {
		l.lastParams = params
	}

	for _, et := range logic.Transitions(res.Previous, res.Status) {
		l.publish(logic.Event{
			Timestamp:   t,
			Type:        et,
			Status:      res.Status,
			Mode:        params.Mode,
			Temperature: res.Temperature,
			SetPoint:    params.SetPoint,
		})
	}

	lastErr := ""
	if err != nil {
		lastErr = err.Error()
		log.Printf("control: %v", err)
		switch {
		case se != nil:
			l.counts.SensorErrors++
		case errors.Is(err, control.ErrHardwareFault):
			l.publish(logic.Event{
				Timestamp:   t,
				Type:        logic.EventFault,
				Status:      res.Status,
				Mode:        params.Mode,
				Temperature: res.Temperature,
				SetPoint:    params.SetPoint,
				Detail:      err.Error(),
			})
		}
	} else if res.Changed() {
		log.Printf("control: %s -> %s (%.1f°C, set point %.1f°C, mode %s)",
			res.Previous, res.Status, res.Temperature, params.SetPoint, params.Mode)
	}

	if l.metrics != nil {
		l.metrics.ObserveCycle(res, err)
	}

	if l.tracker != nil {
		l.tracker.Update(status.Control{
			Status:         res.Status,
			Mode:           params.Mode,
			Temperature:    res.Temperature,
			HasTemperature: se == nil,
			SetPoint:       params.SetPoint,
			Hysteresis:     params.Hysteresis,
			LastError:      lastErr,
		}, l.counts, t)
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}

	if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
		l.lastHeartbeat = t
		l.sendHeartbeat(t)
	}
}

// publish sends a thermostat event. Publish failures never stop the loop.
func (l *loop) publish(e logic.Event) {
	l.counts.Add(e.Type)
	if l.metrics != nil && e.Type != logic.EventFault {
		l.metrics.ObserveTransition(e.Type)
	}
	log.Printf("event: %s (status=%s mode=%s temp=%.1f)", e.Type, e.Status, e.Mode, e.Temperature)
	if err := l.publisher.Publish(e); err != nil {
		log.Printf("publish error: %v", err)
	}
}

func (l *loop) sendHeartbeat(t time.Time) {
	log.Printf("heartbeat: heat_on=%d heat_off=%d cool_on=%d cool_off=%d faults=%d sensor_errors=%d",
		l.counts.HeatOn, l.counts.HeatOff, l.counts.CoolOn, l.counts.CoolOff, l.counts.Faults, l.counts.SensorErrors)

	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if l.network != nil {
			if net := l.network(); net != nil {
				l.tracker.SetNetwork(net)
			}
		}
		hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) shutdown(reason string) {
	if err := l.engine.Shutdown(); err != nil {
		log.Printf("control: shutdown outputs: %v", err)
	}

	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
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

// readNetworkInfo reads the pi-helper env file at path, falling back to the
// process environment for anything the file does not set. It returns nil
// when no network status is known.
func readNetworkInfo(path string) *status.NetworkInfo {
	file, err := godotenv.Read(path)
	if err != nil {
		file = nil
	}
	get := func(key string) string {
		if v, ok := file[key]; ok {
			return v
		}
		return os.Getenv(key)
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// loadEnvFile seeds the environment from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func formatState(heat, cool bool) string {
	s, err := logic.StatusFromLines(heat, cool)
	state := string(s)
	if err != nil {
		state = "FAULT"
	}
	return fmt.Sprintf("Heat: %s, Cool: %s, Status: %s", onOff(heat), onOff(cool), state)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
