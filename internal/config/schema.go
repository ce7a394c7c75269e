// Package config loads, validates, defaults and persists the thermostat
// configuration document.
//
// The document is re-read from disk on every access; nothing is cached in
// memory, so edits made by the HTTP API or by hand take effect on the next
// control cycle.
package config

import (
	"sort"

	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/sensor"
)

// SchemaVersion identifies the layout described by DefaultSchema.
const SchemaVersion = "1.0"

// Setting describes one key of the document.
type Setting struct {
	Required bool
	Default  any // nil means no default
}

// Schema maps section name to setting name to its rules.
// It is built once and never mutated.
type Schema struct {
	Version  string
	Sections map[string]map[string]Setting
}

// Document is the persisted configuration: sections of settings.
type Document map[string]map[string]any

// Key names a single setting.
type Key struct {
	Section string
	Setting string
}

func (k Key) String() string {
	return k.Section + "." + k.Setting
}

// Section and setting names used by the daemon.
const (
	SectionGPIO     = "GPIO"
	SectionBehavior = "behavior"
	SectionSensor   = "sensor"
	SectionWeb      = "web"
	SectionWeather  = "weather"
	SectionMQTT     = "mqtt"
	SectionConfig   = "config"
	SectionDaemon   = "daemon"
)

// DefaultSchema returns the v1.0 schema.
func DefaultSchema() *Schema {
	return &Schema{
		Version: SchemaVersion,
		Sections: map[string]map[string]Setting{
			SectionGPIO: {
				"heat_pin": {Required: true},
				"cool_pin": {Required: true},
			},
			SectionBehavior: {
				"hysteresis": {Default: logic.DefaultHysteresis},
			},
			SectionSensor: {
				"path": {Default: sensor.DefaultPath},
			},
			SectionWeb: {
				"port":       {Default: 8080},
				"secret_key": {Required: true},
			},
			SectionWeather: {
				"api_key": {Required: true},
			},
			SectionMQTT: {
				"broker": {Default: "tcp://127.0.0.1:1883"},
			},
			SectionConfig: {
				"location":        {},
				"celsius":         {Default: true},
				"modes_available": {Default: []any{string(logic.ModeHeat)}},
				"set_temperature": {Default: 21},
				"mode_set":        {Default: string(logic.ModeOff)},
			},
			SectionDaemon: {
				"poll_interval": {Default: 300},
			},
		},
	}
}

// Keys returns every key of the schema in sorted order.
func (s *Schema) Keys() []Key {
	var keys []Key
	for section, settings := range s.Sections {
		for name := range settings {
			keys = append(keys, Key{Section: section, Setting: name})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Section != keys[j].Section {
			return keys[i].Section < keys[j].Section
		}
		return keys[i].Setting < keys[j].Setting
	})
	return keys
}

// Backfill checks doc against the schema. A required setting that is
// absent fails the whole call with a *SchemaError listing every missing
// key. An optional setting that is absent gets the schema default, and
// changed reports whether any default was inserted. Keys unknown to the
// schema are kept as they are. doc itself is never modified.
func (s *Schema) Backfill(doc Document) (out Document, changed bool, err error) {
	out = doc.Clone()

	var missing []Key
	for _, key := range s.Keys() {
		rule := s.Sections[key.Section][key.Setting]
		if out.Has(key.Section, key.Setting) {
			continue
		}
		if rule.Required {
			missing = append(missing, key)
			continue
		}
		if rule.Default == nil {
			continue
		}
		out.Set(key.Section, key.Setting, cloneValue(rule.Default))
		changed = true
	}

	if len(missing) > 0 {
		return nil, false, &SchemaError{Missing: missing}
	}
	return out, changed, nil
}

// Has reports whether section.setting is present with a non-null value.
func (d Document) Has(section, setting string) bool {
	settings, ok := d[section]
	if !ok || settings == nil {
		return false
	}
	v, ok := settings[setting]
	return ok && v != nil
}

// Get returns the raw value of section.setting.
func (d Document) Get(section, setting string) (any, bool) {
	if !d.Has(section, setting) {
		return nil, false
	}
	return d[section][setting], true
}

// Set stores v under section.setting, creating the section if needed.
func (d Document) Set(section, setting string, v any) {
	if d[section] == nil {
		d[section] = map[string]any{}
	}
	d[section][setting] = v
}

// Clone copies the document down to the setting level.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for section, settings := range d {
		if settings == nil {
			out[section] = nil
			continue
		}
		cp := make(map[string]any, len(settings))
		for k, v := range settings {
			cp[k] = cloneValue(v)
		}
		out[section] = cp
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, e := range t {
			cp[k] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}
