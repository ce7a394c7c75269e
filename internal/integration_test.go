package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/control"
	"github.com/sweeney/nido/internal/gpio"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/mqtt"
	"github.com/sweeney/nido/internal/scheduler"
	"github.com/sweeney/nido/internal/sensor"
	"github.com/sweeney/nido/internal/status"
	"github.com/sweeney/nido/internal/weather"
	"github.com/sweeney/nido/internal/web"
)

const configYAML = `GPIO:
    heat_pin: 17
    cool_pin: 27
sensor:
    path: /tmp/in_temp_input
web:
    port: 8080
    secret_key: s3cret
weather:
    api_key: abc123
config:
    location: "94107"
    set_temperature: 21
    mode_set: Heat
`

func writeConfig(t *testing.T, content string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.NewStore(path, nil)
}

// cycle runs one control cycle and publishes what changed, the way the
// daemon loop does.
func cycle(t *testing.T, e *control.Engine, pub *mqtt.FakePublisher, now time.Time) (control.Result, error) {
	t.Helper()
	res, err := e.Cycle()
	for _, et := range logic.Transitions(res.Previous, res.Status) {
		pub.Publish(logic.Event{
			Timestamp:   now,
			Type:        et,
			Status:      res.Status,
			Mode:        res.Params.Mode,
			Temperature: res.Temperature,
			SetPoint:    res.Params.SetPoint,
		})
	}
	return res, err
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"secret":"s3cret"}`))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// TestIntegrationFullFlow drives the thermostat from a real configuration
// file, changes it through the HTTP API and checks what reaches MQTT.
func TestIntegrationFullFlow(t *testing.T) {
	store := writeConfig(t, configYAML)
	act := gpio.NewFakeActuator()
	reader := sensor.NewFakeReader(19.0, 19.0, 19.0, 19.0)
	engine := control.NewEngine(act, reader, store)
	publisher := mqtt.NewFakePublisher()

	tracker := status.NewTracker(time.Now(), status.Config{})
	wake := make(chan struct{}, 1)
	srv := httptest.NewServer(web.New("", tracker, store, web.WithWake(wake)).Handler())
	defer srv.Close()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// 1. Cold room, Heat mode: heat comes on.
	if _, err := cycle(t, engine, publisher, start); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if !act.Heat {
		t.Fatal("cycle 1: expected heat on")
	}

	// Defaults were written back on first read.
	p, err := store.ControlParams()
	if err != nil {
		t.Fatalf("control params: %v", err)
	}
	if p.Hysteresis != logic.DefaultHysteresis {
		t.Errorf("expected backfilled hysteresis %v, got %v", logic.DefaultHysteresis, p.Hysteresis)
	}

	// 2. Lower the set point in Fahrenheit; still below the band.
	if code := post(t, srv.URL+"/api/set_temp/68/F"); code != http.StatusOK {
		t.Fatalf("set_temp: expected 200, got %d", code)
	}
	select {
	case <-wake:
	default:
		t.Error("set_temp should wake the control loop")
	}
	res, err := cycle(t, engine, publisher, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if res.Params.SetPoint != 20 {
		t.Errorf("expected set point 20, got %v", res.Params.SetPoint)
	}
	if res.Changed() {
		t.Errorf("cycle 2: unexpected change %+v", res)
	}

	// 3. Switch off through the API: heat is released.
	if code := post(t, srv.URL+"/api/set_mode/off"); code != http.StatusOK {
		t.Fatalf("set_mode: expected 200, got %d", code)
	}
	if _, err := cycle(t, engine, publisher, start.Add(2*time.Minute)); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if act.Heat || act.Cool {
		t.Error("cycle 3: expected both outputs off")
	}

	// 4. Cool is not enabled in modes_available.
	if code := post(t, srv.URL+"/api/set_mode/Cool"); code != http.StatusBadRequest {
		t.Errorf("set_mode Cool: expected 400, got %d", code)
	}

	want := []logic.EventType{logic.EventHeatOn, logic.EventHeatOff}
	got := publisher.EventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if publisher.Events[1].Mode != logic.ModeOff {
		t.Errorf("HEAT_OFF should report mode Off, got %s", publisher.Events[1].Mode)
	}

	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Nido.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Nido.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}

	// The file on disk carries the API changes.
	p, err = config.NewStore(store.Path(), nil).ControlParams()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Mode != logic.ModeOff || p.SetPoint != 20 {
		t.Errorf("expected Off at 20, got %+v", p)
	}
}

// TestIntegrationBrokenConfigFailsSafe verifies that a configuration that
// cannot be validated releases the outputs.
func TestIntegrationBrokenConfigFailsSafe(t *testing.T) {
	store := writeConfig(t, configYAML)
	act := gpio.NewFakeActuator()
	engine := control.NewEngine(act, sensor.NewFakeReader(19.0), store)
	publisher := mqtt.NewFakePublisher()

	if _, err := cycle(t, engine, publisher, time.Now()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if !act.Heat {
		t.Fatal("expected heat on")
	}

	broken := strings.Replace(configYAML, "    heat_pin: 17\n", "", 1)
	if err := os.WriteFile(store.Path(), []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := cycle(t, engine, publisher, time.Now())
	var pe *control.ParamsError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParamsError, got %v", err)
	}
	if !config.IsSchemaError(err) {
		t.Errorf("expected schema error, got %v", err)
	}
	if act.Heat || act.Cool {
		t.Error("outputs must be off while the configuration is broken")
	}
	if got := publisher.EventTypes(); len(got) != 2 || got[1] != logic.EventHeatOff {
		t.Errorf("expected HEAT_ON then HEAT_OFF, got %v", got)
	}
}

// TestIntegrationWeather wires the remote service, cache, scheduler job and
// status page together against a local test server.
func TestIntegrationWeather(t *testing.T) {
	var requests atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if want := "/api/abc123/conditions/q/94107.json"; r.URL.Path != want {
			t.Errorf("path: got %q, want %q", r.URL.Path, want)
		}
		fmt.Fprint(w, `{"current_observation":{
			"display_location":{"full":"San Francisco, CA","city":"San Francisco","state":"CA","zip":"94107","country":"US","latitude":"37.77","longitude":"-122.39"},
			"temp_c":14.2,"relative_humidity":"65%","pressure_mb":"1014","weather":"Partly Cloudy","icon_url":"http://icons.example/partlycloudy.gif"}}`)
	}))
	defer remote.Close()

	store := writeConfig(t, configYAML)
	loc, err := store.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}

	cache := weather.NewCache(
		weather.NewHTTPProvider(remote.Client(), remote.URL, store),
		weather.Location{Lat: loc.Lat, Lon: loc.Lon, Zip: loc.Zip},
	)
	publisher := mqtt.NewFakePublisher()
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	job := scheduler.NewWeatherJob(cache, store, publisher, nil, func() time.Time { return now })

	job.Run()
	job.Run()

	if n := requests.Load(); n != 1 {
		t.Errorf("expected 1 remote request within the TTL, got %d", n)
	}
	if len(publisher.WeatherEvents) != 1 {
		t.Fatalf("expected 1 weather event, got %d", len(publisher.WeatherEvents))
	}
	if c := publisher.WeatherEvents[0].Conditions; c == nil || c.TempC != 14.2 {
		t.Errorf("unexpected conditions %+v", c)
	}

	tracker := status.NewTracker(now, status.Config{})
	srv := httptest.NewServer(web.New("", tracker, store,
		web.WithWeather(cache),
		web.WithClock(func() time.Time { return now.Add(30 * time.Second) }),
	).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/weather.json")
	if err != nil {
		t.Fatalf("GET /weather.json: %v", err)
	}
	defer resp.Body.Close()
	var body web.WeatherJSON
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Weather == nil || body.Weather.Description != "Partly Cloudy" {
		t.Errorf("unexpected weather %+v", body.Weather)
	}
	if body.RetrievalAge != 30 {
		t.Errorf("expected retrieval age 30, got %d", body.RetrievalAge)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("status page should be served from the cache, got %d requests", n)
	}

	// A context that is already done never reaches the remote service on a hit.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := cache.Get(ctx, now.Unix()+60); res.Fetched || res.Conditions == nil {
		t.Errorf("expected cached conditions, got %+v", res)
	}
}

// TestIntegrationSetConfig changes the config section through the API and
// checks the next cycle runs on the new settings.
func TestIntegrationSetConfig(t *testing.T) {
	store := writeConfig(t, configYAML)
	act := gpio.NewFakeActuator()
	engine := control.NewEngine(act, sensor.NewFakeReader(22.0, 22.0), store)
	publisher := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})
	wake := make(chan struct{}, 1)
	srv := httptest.NewServer(web.New("", tracker, store, web.WithWake(wake)).Handler())
	defer srv.Close()

	if _, err := cycle(t, engine, publisher, time.Now()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if act.Heat {
		t.Fatal("cycle 1: 22° is above a 21° set point")
	}

	body := `{"secret":"s3cret","config":{"set_temperature":23,"celsius":false,"location":[37.77,-122.42]}}`
	resp, err := http.Post(srv.URL+"/api/set_config", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST set_config: %v", err)
	}
	var got struct {
		Message string         `json:"message"`
		Config  map[string]any `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set_config: expected 200, got %d", resp.StatusCode)
	}
	if got.Config["set_temperature"] != 23.0 || got.Config["celsius"] != false {
		t.Errorf("unexpected config in response: %v", got.Config)
	}
	select {
	case <-wake:
	default:
		t.Error("set_config should wake the control loop")
	}

	if _, err := cycle(t, engine, publisher, time.Now()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if !act.Heat {
		t.Error("cycle 2: expected heat on below the new set point")
	}

	st, err := store.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if st.Celsius || st.Location.Lat == nil {
		t.Errorf("expected celsius false and coordinates, got %+v", st)
	}
}
