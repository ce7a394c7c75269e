package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sweeney/nido/internal/logic"
)

var validate = validator.New()

// ErrModeUnavailable is returned when selecting a mode that is not enabled.
var ErrModeUnavailable = errors.New("mode not available")

// Location is the configured place for weather lookups. At most one of
// the coordinate pair and Zip is normally set.
type Location struct {
	Lat *float64
	Lon *float64
	Zip string
}

// Settings is the typed view of the daemon settings.
type Settings struct {
	HeatPin        int           `validate:"gte=0"`
	CoolPin        int           `validate:"gte=0,nefield=HeatPin"`
	SensorPath     string        `validate:"required"`
	HTTPPort       int           `validate:"gt=0,lte=65535"`
	SecretKey      string        `validate:"required"`
	Broker         string        `validate:"required"`
	PollInterval   time.Duration `validate:"gt=0"`
	Celsius        bool
	ModesAvailable []logic.Mode
	Location       Location
}

type controlView struct {
	SetPoint   float64
	Hysteresis float64 `validate:"gte=0"`
	Mode       string  `validate:"oneof=Off Heat Cool Heat_Cool"`
}

// ControlParams returns the parameters for one control decision, read
// fresh from disk.
func (s *Store) ControlParams() (logic.Params, error) {
	doc, err := s.Current()
	if err != nil {
		return logic.Params{}, err
	}
	return controlParams(doc)
}

func controlParams(doc Document) (logic.Params, error) {
	var v controlView
	var err error

	if v.SetPoint, err = getFloat(doc, SectionConfig, "set_temperature"); err != nil {
		return logic.Params{}, err
	}
	if v.Hysteresis, err = getFloat(doc, SectionBehavior, "hysteresis"); err != nil {
		return logic.Params{}, err
	}
	mode, err := getString(doc, SectionConfig, "mode_set")
	if err != nil {
		return logic.Params{}, err
	}
	m, err := logic.ParseMode(mode)
	if err != nil {
		return logic.Params{}, &ValueError{Key: Key{SectionConfig, "mode_set"}, Err: err}
	}
	v.Mode = string(m)

	if err := validate.Struct(v); err != nil {
		return logic.Params{}, fmt.Errorf("control settings: %w", err)
	}
	return logic.Params{SetPoint: v.SetPoint, Hysteresis: v.Hysteresis, Mode: m}, nil
}

// Settings returns the typed daemon settings.
func (s *Store) Settings() (Settings, error) {
	doc, err := s.Current()
	if err != nil {
		return Settings{}, err
	}
	return settings(doc)
}

func settings(doc Document) (Settings, error) {
	var st Settings
	var err error

	if st.HeatPin, err = getInt(doc, SectionGPIO, "heat_pin"); err != nil {
		return Settings{}, err
	}
	if st.CoolPin, err = getInt(doc, SectionGPIO, "cool_pin"); err != nil {
		return Settings{}, err
	}
	if st.SensorPath, err = getString(doc, SectionSensor, "path"); err != nil {
		return Settings{}, err
	}
	if st.HTTPPort, err = getInt(doc, SectionWeb, "port"); err != nil {
		return Settings{}, err
	}
	if st.SecretKey, err = getString(doc, SectionWeb, "secret_key"); err != nil {
		return Settings{}, err
	}
	if st.Broker, err = getString(doc, SectionMQTT, "broker"); err != nil {
		return Settings{}, err
	}
	seconds, err := getInt(doc, SectionDaemon, "poll_interval")
	if err != nil {
		return Settings{}, err
	}
	st.PollInterval = time.Duration(seconds) * time.Second
	if st.Celsius, err = getBool(doc, SectionConfig, "celsius"); err != nil {
		return Settings{}, err
	}
	if st.ModesAvailable, err = modesAvailable(doc); err != nil {
		return Settings{}, err
	}
	if st.Location, err = location(doc); err != nil {
		return Settings{}, err
	}

	if err := validate.Struct(st); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	return st, nil
}

// APIKey returns the weather service credential.
func (s *Store) APIKey() (string, error) {
	doc, err := s.Current()
	if err != nil {
		return "", err
	}
	return getString(doc, SectionWeather, "api_key")
}

// Location returns the configured weather location.
func (s *Store) Location() (Location, error) {
	doc, err := s.Current()
	if err != nil {
		return Location{}, err
	}
	return location(doc)
}

// Modes returns the modes a user may select.
func (s *Store) Modes() ([]logic.Mode, error) {
	doc, err := s.Current()
	if err != nil {
		return nil, err
	}
	enabled, err := modesAvailable(doc)
	if err != nil {
		return nil, err
	}
	return logic.ListModes(enabled), nil
}

// SetMode selects m if it is one of the available modes.
func (s *Store) SetMode(m logic.Mode) error {
	return s.update(func(doc Document) error {
		if err := checkModeAvailable(doc, m); err != nil {
			return err
		}
		doc.Set(SectionConfig, "mode_set", string(m))
		return nil
	})
}

func checkModeAvailable(doc Document, m logic.Mode) error {
	enabled, err := modesAvailable(doc)
	if err != nil {
		return err
	}
	for _, avail := range logic.ListModes(enabled) {
		if avail == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModeUnavailable, m)
}

// Update is a partial change to the config section. Nil fields are left
// as they are.
type Update struct {
	Location       *Location
	Celsius        *bool
	ModesAvailable []logic.Mode
	Mode           *logic.Mode
	SetTemperature *float64
}

// ConfigSection returns a copy of the user-facing config section.
func (s *Store) ConfigSection() (map[string]any, error) {
	doc, err := s.Current()
	if err != nil {
		return nil, err
	}
	section := doc.Clone()[SectionConfig]
	if section == nil {
		section = map[string]any{}
	}
	return section, nil
}

// UpdateConfig applies u to the config section. Nothing is written unless
// the resulting document still yields valid settings and control
// parameters, and the selected mode is still one of the available modes.
func (s *Store) UpdateConfig(u Update) error {
	return s.update(func(doc Document) error {
		if u.Location != nil {
			doc.Set(SectionConfig, "location", u.Location.value())
		}
		if u.Celsius != nil {
			doc.Set(SectionConfig, "celsius", *u.Celsius)
		}
		if u.ModesAvailable != nil {
			names := make([]any, len(u.ModesAvailable))
			for i, m := range u.ModesAvailable {
				names[i] = string(m)
			}
			doc.Set(SectionConfig, "modes_available", names)
		}
		if u.SetTemperature != nil {
			t := *u.SetTemperature
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return &ValueError{Key: Key{SectionConfig, "set_temperature"}, Err: errNonFinite}
			}
			doc.Set(SectionConfig, "set_temperature", logic.RoundTenth(t))
		}
		if u.Mode != nil {
			doc.Set(SectionConfig, "mode_set", string(*u.Mode))
		}

		if _, err := settings(doc); err != nil {
			return err
		}
		p, err := controlParams(doc)
		if err != nil {
			return err
		}
		return checkModeAvailable(doc, p.Mode)
	})
}

// SetTemperature stores a new set point in °C, rounded to 0.1.
func (s *Store) SetTemperature(celsius float64) error {
	return s.update(func(doc Document) error {
		doc.Set(SectionConfig, "set_temperature", logic.RoundTenth(celsius))
		return nil
	})
}

func modesAvailable(doc Document) ([]logic.Mode, error) {
	key := Key{SectionConfig, "modes_available"}
	raw, ok := doc.Get(key.Section, key.Setting)
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &ValueError{Key: key, Err: fmt.Errorf("expected list, got %T", raw)}
	}

	var modes []logic.Mode
	for _, item := range list {
		name, enabled, err := modeEntry(item)
		if err != nil {
			return nil, &ValueError{Key: key, Err: err}
		}
		if !enabled {
			continue
		}
		m, err := logic.ParseMode(name)
		if err != nil {
			return nil, &ValueError{Key: key, Err: err}
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func (l Location) value() any {
	if l.Lat != nil && l.Lon != nil {
		return []any{*l.Lat, *l.Lon}
	}
	return l.Zip
}

// modeEntry reads one modes_available item: a mode name, or the older
// [name, enabled] pair.
func modeEntry(item any) (string, bool, error) {
	switch v := item.(type) {
	case string:
		return v, true, nil
	case []any:
		if len(v) != 2 {
			return "", false, fmt.Errorf("expected [mode, enabled], got %d values", len(v))
		}
		name, ok := v[0].(string)
		if !ok {
			return "", false, fmt.Errorf("expected mode name, got %T", v[0])
		}
		enabled, ok := v[1].(bool)
		if !ok {
			return "", false, fmt.Errorf("expected bool for %s, got %T", name, v[1])
		}
		return name, enabled, nil
	default:
		return "", false, fmt.Errorf("expected mode name, got %T", item)
	}
}

// location accepts a [lat, lon] pair or a postal code.
func location(doc Document) (Location, error) {
	key := Key{SectionConfig, "location"}
	raw, ok := doc.Get(key.Section, key.Setting)
	if !ok {
		return Location{}, nil
	}

	switch v := raw.(type) {
	case []any:
		if len(v) != 2 {
			return Location{}, &ValueError{Key: key, Err: fmt.Errorf("expected [lat, lon], got %d values", len(v))}
		}
		lat, err := toFloat(v[0])
		if err != nil {
			return Location{}, &ValueError{Key: key, Err: err}
		}
		lon, err := toFloat(v[1])
		if err != nil {
			return Location{}, &ValueError{Key: key, Err: err}
		}
		return Location{Lat: &lat, Lon: &lon}, nil
	case string:
		return Location{Zip: v}, nil
	case int:
		return Location{Zip: strconv.Itoa(v)}, nil
	default:
		return Location{}, &ValueError{Key: key, Err: fmt.Errorf("unsupported type %T", raw)}
	}
}

func lookup(doc Document, section, setting string) (any, error) {
	v, ok := doc.Get(section, setting)
	if !ok {
		return nil, &SchemaError{Missing: []Key{{section, setting}}}
	}
	return v, nil
}

func getFloat(doc Document, section, setting string) (float64, error) {
	raw, err := lookup(doc, section, setting)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(raw)
	if err != nil {
		return 0, &ValueError{Key: Key{section, setting}, Err: err}
	}
	return f, nil
}

func getInt(doc Document, section, setting string) (int, error) {
	raw, err := lookup(doc, section, setting)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &ValueError{Key: Key{section, setting}, Err: err}
		}
		return n, nil
	default:
		return 0, &ValueError{Key: Key{section, setting}, Err: fmt.Errorf("expected integer, got %T", raw)}
	}
}

func getString(doc Document, section, setting string) (string, error) {
	raw, err := lookup(doc, section, setting)
	if err != nil {
		return "", err
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	default:
		return "", &ValueError{Key: Key{section, setting}, Err: fmt.Errorf("expected string, got %T", raw)}
	}
}

func getBool(doc Document, section, setting string) (bool, error) {
	raw, err := lookup(doc, section, setting)
	if err != nil {
		return false, err
	}
	b, ok := raw.(bool)
	if !ok {
		return false, &ValueError{Key: Key{section, setting}, Err: fmt.Errorf("expected bool, got %T", raw)}
	}
	return b, nil
}

var errNonFinite = errors.New("not a finite number")

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		return float64(n), nil
	case string:
		var err error
		if f, err = strconv.ParseFloat(n, 64); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	// YAML's .nan and .inf decode to float64 without error.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v: %w", f, errNonFinite)
	}
	return f, nil
}
