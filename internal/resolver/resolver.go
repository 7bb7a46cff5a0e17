// Package resolver treats geocoding, timezone lookup, and sun-times
// computation as an external capability: coordinates in, place metadata out.
package resolver

import (
	"context"
	"time"
)

// Place is the result of resolving station coordinates.
type Place struct {
	Name       string
	Timezone   string // IANA zone identifier
	SunriseUTC time.Time
	SunsetUTC  time.Time
}

// Resolver resolves station coordinates to a place name, timezone, and
// today's sunrise/sunset. Implementations must respect the context deadline.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon string) (Place, error)
}
