package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/weather"
)

const updatedMessage = "Configuration updated successfully."

// maxRequestBody bounds API request bodies.
const maxRequestBody = 4 << 10

var validate = validator.New()

// apiRequest is the body every API call must carry. Config is only
// accepted by set_config.
type apiRequest struct {
	Secret string          `json:"secret" validate:"required"`
	Config json.RawMessage `json:"config,omitempty"`
}

type ctxKey int

const configBodyKey ctxKey = 0

// configRequest is the config object of a set_config call. Absent fields
// are left unchanged.
type configRequest struct {
	Location       *locationField `json:"location"`
	Celsius        *bool          `json:"celsius"`
	ModesAvailable []string       `json:"modes_available" validate:"omitempty,dive,oneof=Heat Cool"`
	Mode           *string        `json:"mode_set"`
	SetTemperature *float64       `json:"set_temperature"`
}

func (c configRequest) empty() bool {
	return c.Location == nil && c.Celsius == nil && c.ModesAvailable == nil &&
		c.Mode == nil && c.SetTemperature == nil
}

// update converts the request into a store update.
func (c configRequest) update() (config.Update, error) {
	var u config.Update
	if c.Location != nil {
		loc := config.Location(*c.Location)
		u.Location = &loc
	}
	u.Celsius = c.Celsius
	if c.ModesAvailable != nil {
		u.ModesAvailable = make([]logic.Mode, 0, len(c.ModesAvailable))
		for _, name := range c.ModesAvailable {
			m, err := logic.ParseMode(name)
			if err != nil {
				return config.Update{}, err
			}
			u.ModesAvailable = append(u.ModesAvailable, m)
		}
	}
	if c.Mode != nil {
		m, err := logic.ParseMode(*c.Mode)
		if err != nil {
			return config.Update{}, err
		}
		u.Mode = &m
	}
	u.SetTemperature = c.SetTemperature
	return u, nil
}

// locationField is either a [lat, lon] pair or a postal code string.
type locationField config.Location

func (l *locationField) UnmarshalJSON(b []byte) error {
	var zip string
	if err := json.Unmarshal(b, &zip); err == nil {
		if zip == "" {
			return fmt.Errorf("empty postal code")
		}
		*l = locationField{Zip: zip}
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("location must be [lat, lon] or a postal code")
	}
	if len(pair) != 2 {
		return fmt.Errorf("expected [lat, lon], got %d values", len(pair))
	}
	if pair[0] < -90 || pair[0] > 90 || pair[1] < -180 || pair[1] > 180 {
		return fmt.Errorf("coordinates out of range: %v", pair)
	}
	*l = locationField{Lat: &pair[0], Lon: &pair[1]}
	return nil
}

func decodeConfigRequest(raw json.RawMessage) (configRequest, error) {
	var c configRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return configRequest{}, err
	}
	if c.empty() {
		return configRequest{}, fmt.Errorf("no settings given")
	}
	if err := validate.Struct(c); err != nil {
		return configRequest{}, err
	}
	return c, nil
}

// apiResponse is returned by the control API.
type apiResponse struct {
	Version        string         `json:"version"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	Mode           string         `json:"mode_set,omitempty"`
	SetTemperature *float64       `json:"set_temperature,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

// WeatherJSON is the /weather.json body.
type WeatherJSON struct {
	Version      string              `json:"version"`
	Weather      *weather.Conditions `json:"weather"`
	RetrievalAge int64               `json:"retrieval_age"`
	Error        string              `json:"error,omitempty"`
}

func formatWeather(res weather.Result) WeatherJSON {
	wj := WeatherJSON{
		Version:      config.SchemaVersion,
		Weather:      res.Conditions,
		RetrievalAge: res.AgeSeconds,
	}
	if res.Err != nil {
		wj.Error = res.Err.Error()
	}
	return wj
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("web: encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiResponse{Version: config.SchemaVersion, Error: msg})
}

// requireSecret rejects API calls whose JSON body does not carry the
// configured web.secret_key. The body may contain nothing else.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "JSON in request was invalid.")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "JSON in request was invalid.")
			return
		}
		if len(req.Config) > 0 && routeName(r) != routeSetConfig {
			writeError(w, http.StatusBadRequest, "JSON in request was invalid.")
			return
		}

		st, err := s.store.Settings()
		if err != nil {
			log.Printf("web: load settings: %v", err)
			writeError(w, http.StatusInternalServerError, "Server configuration unavailable.")
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(st.SecretKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "Invalid secret.")
			return
		}
		if len(req.Config) > 0 {
			r = r.WithContext(context.WithValue(r.Context(), configBodyKey, req.Config))
		}
		next.ServeHTTP(w, r)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// parseTemperature converts a path temperature in scale C or F to °C,
// rounded to 0.1.
func parseTemperature(raw, scale string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", raw, err)
	}
	v = logic.RoundTenth(v)

	switch strings.ToUpper(scale) {
	case "C":
		return v, nil
	case "F":
		return logic.FahrenheitToCelsius(v), nil
	default:
		return 0, fmt.Errorf("unknown scale %q", scale)
	}
}
