package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// number accepts a JSON number or a string such as "1013" or "65%".
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		// ParseFloat accepts "NaN" and "Inf", which json.Marshal refuses.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%q is not a finite number", s)
		}
		*n = number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type observation struct {
	DisplayLocation *struct {
		Full      string `json:"full"`
		City      string `json:"city"`
		State     string `json:"state"`
		Zip       string `json:"zip"`
		Country   string `json:"country"`
		Latitude  number `json:"latitude"`
		Longitude number `json:"longitude"`
	} `json:"display_location"`
	TempC            *number `json:"temp_c"`
	RelativeHumidity *number `json:"relative_humidity"`
	PressureMb       *number `json:"pressure_mb"`
	Weather          *string `json:"weather"`
	IconURL          string  `json:"icon_url"`
}

type conditionsResponse struct {
	Response *struct {
		Error *struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"response"`
	CurrentObservation *observation `json:"current_observation"`
}

const maxErrorBody = 512

// Parse extracts Conditions from a conditions response. It returns a
// *RemoteError when the service reported an error and a *ParseError when
// the payload does not have the expected shape.
func Parse(raw []byte) (Conditions, error) {
	var resp conditionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Conditions{}, &ParseError{Err: err}
	}

	obs := resp.CurrentObservation
	if obs == nil {
		if resp.Response != nil && resp.Response.Error != nil {
			return Conditions{}, &RemoteError{
				Type:        resp.Response.Error.Type,
				Description: resp.Response.Error.Description,
			}
		}
		return Conditions{}, &ParseError{Err: fmt.Errorf("unknown weather API error, response: %s", truncate(raw))}
	}

	if err := obs.check(); err != nil {
		return Conditions{}, &ParseError{Err: err}
	}

	loc := obs.DisplayLocation
	return Conditions{
		Location: Place{
			Full:      loc.Full,
			City:      loc.City,
			State:     loc.State,
			Zip:       loc.Zip,
			Country:   loc.Country,
			Latitude:  float64(loc.Latitude),
			Longitude: float64(loc.Longitude),
		},
		TempC:       float64(*obs.TempC),
		Humidity:    float64(*obs.RelativeHumidity),
		PressureMb:  float64(*obs.PressureMb),
		Description: *obs.Weather,
		IconURL:     obs.IconURL,
	}, nil
}

func (o *observation) check() error {
	var missing []string
	if o.DisplayLocation == nil {
		missing = append(missing, "display_location")
	}
	if o.TempC == nil {
		missing = append(missing, "temp_c")
	}
	if o.RelativeHumidity == nil {
		missing = append(missing, "relative_humidity")
	}
	if o.PressureMb == nil {
		missing = append(missing, "pressure_mb")
	}
	if o.Weather == nil {
		missing = append(missing, "weather")
	}
	if len(missing) > 0 {
		return errors.New("missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func truncate(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		return string(b[:cut]) + "..."
	}
	return string(b)
}
