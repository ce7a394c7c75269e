// Package web provides the HTTP status page and control API for the nido daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/status"
	"github.com/sweeney/nido/internal/weather"
)

// ConfigStore is the part of config.Store the API needs.
type ConfigStore interface {
	Settings() (config.Settings, error)
	Modes() ([]logic.Mode, error)
	SetMode(m logic.Mode) error
	SetTemperature(celsius float64) error
	ConfigSection() (map[string]any, error)
	UpdateConfig(u config.Update) error
}

const routeSetConfig = "set_config"

// WeatherSource serves cached outdoor conditions.
type WeatherSource interface {
	Get(ctx context.Context, now int64) weather.Result
}

// Option configures optional routes.
type Option func(*Server)

// WithWeather enables /weather.json.
func WithWeather(w WeatherSource) Option {
	return func(s *Server) { s.weather = w }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithWake registers a channel that is signalled after every successful
// configuration change. Sends never block.
func WithWake(wake chan<- struct{}) Option {
	return func(s *Server) { s.wake = wake }
}

// WithClock overrides time.Now for the weather endpoint.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server serves the status page, JSON views and the control API.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	store      ConfigStore
	weather    WeatherSource
	metrics    http.Handler
	wake       chan<- struct{}
	now        func() time.Time

	writeMu sync.Mutex // serialises configuration writes
}

// New creates a Server that reads state from the given tracker and
// applies API changes to store.
func New(addr string, tracker *status.Tracker, store ConfigStore, opts ...Option) *Server {
	s := &Server{tracker: tracker, store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handlers.LoggingHandler(log.Writer(), s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	if s.weather != nil {
		r.HandleFunc("/weather.json", s.handleWeather).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Methods(http.MethodPost).Subrouter()
	api.Use(s.requireSecret)
	api.HandleFunc("/set_mode/{mode}", s.handleSetMode)
	api.HandleFunc(`/set_temp/{temp:[0-9]*\.?[0-9]+}/{scale:[cCfF]}`, s.handleSetTemp)
	api.HandleFunc("/get_config", s.handleGetConfig)
	api.HandleFunc("/set_config", s.handleSetConfig).Name(routeSetConfig)

	return r
}

// Handler returns the root handler, including access logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.fahrenheit())
}

// fahrenheit reports whether the page should show °F. An unreadable
// config falls back to °C.
func (s *Server) fahrenheit() bool {
	st, err := s.store.Settings()
	if err != nil {
		log.Printf("web: load settings: %v", err)
		return false
	}
	return !st.Celsius
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	res := s.weather.Get(r.Context(), s.now().Unix())
	writeJSON(w, http.StatusOK, formatWeather(res))
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	mode, err := logic.ParseMode(mux.Vars(r)["mode"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid mode.")
		return
	}

	s.writeMu.Lock()
	err = s.store.SetMode(mode)
	s.writeMu.Unlock()
	if err != nil {
		if errors.Is(err, config.ErrModeUnavailable) {
			writeError(w, http.StatusBadRequest, "Invalid mode.")
			return
		}
		log.Printf("web: set mode %s: %v", mode, err)
		writeError(w, http.StatusInternalServerError, "Invalid configuration setting(s).")
		return
	}

	log.Printf("web: mode set to %s", mode)
	s.notify()
	writeJSON(w, http.StatusOK, apiResponse{
		Version: config.SchemaVersion,
		Message: updatedMessage,
		Mode:    string(mode),
	})
}

func (s *Server) handleSetTemp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	celsius, err := parseTemperature(vars["temp"], vars["scale"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid temperature.")
		return
	}

	s.writeMu.Lock()
	err = s.store.SetTemperature(celsius)
	s.writeMu.Unlock()
	if err != nil {
		log.Printf("web: set temperature %.1f: %v", celsius, err)
		writeError(w, http.StatusInternalServerError, "Invalid configuration setting(s).")
		return
	}

	log.Printf("web: set point changed to %.1f°C", celsius)
	s.notify()
	writeJSON(w, http.StatusOK, apiResponse{
		Version:        config.SchemaVersion,
		Message:        updatedMessage,
		SetTemperature: &celsius,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	section, err := s.store.ConfigSection()
	if err != nil {
		log.Printf("web: get config: %v", err)
		writeError(w, http.StatusInternalServerError, "Unable to retrieve config schema.")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Version: config.SchemaVersion, Config: section})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	raw, _ := r.Context().Value(configBodyKey).(json.RawMessage)
	req, err := decodeConfigRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid configuration setting(s).")
		return
	}
	u, err := req.update()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid configuration setting(s).")
		return
	}

	s.writeMu.Lock()
	err = s.store.UpdateConfig(u)
	var section map[string]any
	if err == nil {
		section, err = s.store.ConfigSection()
	}
	s.writeMu.Unlock()
	if err != nil {
		var ve *config.ValueError
		if errors.As(err, &ve) || errors.Is(err, config.ErrModeUnavailable) {
			writeError(w, http.StatusBadRequest, "Invalid configuration setting(s).")
			return
		}
		log.Printf("web: set config: %v", err)
		writeError(w, http.StatusInternalServerError, "Invalid configuration setting(s).")
		return
	}

	log.Printf("web: config updated")
	s.notify()
	writeJSON(w, http.StatusOK, apiResponse{
		Version: config.SchemaVersion,
		Message: updatedMessage,
		Config:  section,
	})
}

// notify wakes the control loop without blocking if a wake is already pending.
func (s *Server) notify() {
	if s.wake == nil {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
