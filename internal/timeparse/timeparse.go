// Package timeparse handles the loosely formatted date strings accepted by
// the ingestion and query endpoints, and local-time conversion for display.
package timeparse

import (
	"fmt"
	"time"
)

// layoutsByLength maps input length to candidate layouts. Length 10 is
// ambiguous: the dashed date form is tried first, then compact date+hour.
var layoutsByLength = map[int][]string{
	4:  {"2006"},
	6:  {"200601"},
	8:  {"20060102"},
	10: {"2006-01-02", "2006010215"},
	12: {"200601021504"},
	13: {"2006-01-02-15"},
	14: {"20060102150405"},
	16: {"2006-01-02-15-04"},
	19: {"2006-01-02-15-04-05"},
}

// Parse interprets a date string whose length selects its format. It returns
// ok=false for empty input, unrecognized lengths, and format mismatches;
// callers treat absence as "use default". Only parse failures are swallowed,
// never other error kinds.
func Parse(s string) (time.Time, bool) {
	layouts, known := layoutsByLength[len(s)]
	if !known {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ToLocal converts a stored UTC instant to the given IANA zone for display,
// honoring DST rules at that date. Stored values remain UTC.
func ToLocal(t time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	return t.In(loc), nil
}
