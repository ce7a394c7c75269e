// Package weather fetches outdoor conditions for display and caches them
// for a bounded time, degrading to stale data when the remote service is
// unavailable.
package weather

import (
	"strconv"
)

// Place describes where an observation was taken.
type Place struct {
	Full      string  `json:"full"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zip       string  `json:"zipcode"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Conditions is a single outdoor observation.
type Conditions struct {
	Location    Place   `json:"location"`
	TempC       float64 `json:"temp_c"`
	Humidity    float64 `json:"relative_humidity"`
	PressureMb  float64 `json:"pressure_mb"`
	Description string  `json:"description"`
	IconURL     string  `json:"icon_url,omitempty"`
}

// Location selects what to ask the remote service for.
type Location struct {
	Lat *float64
	Lon *float64
	Zip string
}

// Query returns the location query: coordinates win over a postal code,
// which wins over locating the caller by IP address.
func (l Location) Query() string {
	switch {
	case l.Lat != nil && l.Lon != nil:
		return formatCoord(*l.Lat) + "," + formatCoord(*l.Lon)
	case l.Zip != "":
		return l.Zip
	default:
		return "autoip"
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Result is what a cache lookup returns. Conditions may be set together
// with Err when stale data is served after a failed refresh.
type Result struct {
	Conditions *Conditions
	AgeSeconds int64
	Err        error
	Fetched    bool // a remote call was made
}
