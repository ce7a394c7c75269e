package config

import "log"

// legacySections maps section names used by older config files to the
// names the daemon reads now.
var legacySections = map[string]string{
	"flask":        SectionWeb,
	"wunderground": SectionWeather,
}

// migrateLegacy moves settings from legacy sections into their current
// sections. A setting already present under the current name wins. The
// legacy section is dropped. doc itself is never modified.
func migrateLegacy(doc Document) (Document, bool) {
	var out Document
	for old, current := range legacySections {
		settings, ok := doc[old]
		if !ok {
			continue
		}
		if out == nil {
			out = doc.Clone()
		}
		for name, v := range settings {
			if out.Has(current, name) || v == nil {
				continue
			}
			out.Set(current, name, cloneValue(v))
			log.Printf("config: moved %s.%s to %s.%s", old, name, current, name)
		}
		delete(out, old)
	}
	if out == nil {
		return doc, false
	}
	return out, true
}
