package domain

import (
	"sync"
	"time"
)

// SentinelStrikeDistanceKm is the default strike distance, far enough that
// it can never satisfy the storm proximity check.
const SentinelStrikeDistanceKm = 9999.0

// Location is a point-in-time snapshot of the station position, its resolved
// place name and timezone, and today's sun times (UTC).
type Location struct {
	Latitude   string // decimal degrees
	Longitude  string // decimal degrees
	PlaceName  string
	Timezone   string // IANA zone identifier
	SunriseUTC time.Time
	SunsetUTC  time.Time
}

// LocationState holds the station position for the life of the process.
// It is not persisted; a restart returns it to configured defaults. All
// access goes through the lock, held only across the read or write itself.
type LocationState struct {
	mu  sync.Mutex
	loc Location
}

// NewLocationState creates location state seeded with configured defaults.
func NewLocationState(defaults Location) *LocationState {
	return &LocationState{loc: defaults}
}

// Snapshot returns a copy of the current location.
func (s *LocationState) Snapshot() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Replace swaps in a newly resolved location wholesale.
func (s *LocationState) Replace(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = loc
}

// SetSunTimes updates only today's sunrise and sunset, leaving the position
// and place name intact. Used by the daily refresh job.
func (s *LocationState) SetSunTimes(sunrise, sunset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc.SunriseUTC = sunrise
	s.loc.SunsetUTC = sunset
}

// Strike is a snapshot of the most recent lightning report.
type Strike struct {
	Time       time.Time
	DistanceKm float64
}

// LightningState holds the most recent strike report for the life of the
// process. The zero strike time and sentinel distance mean "no strike seen."
type LightningState struct {
	mu     sync.Mutex
	strike Strike
}

// NewLightningState creates lightning state with no strike recorded.
func NewLightningState() *LightningState {
	return &LightningState{strike: Strike{DistanceKm: SentinelStrikeDistanceKm}}
}

// Snapshot returns a copy of the last strike.
func (s *LightningState) Snapshot() Strike {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strike
}

// Report overwrites the last strike unconditionally. Strike reports are
// assumed to arrive in order; there is no recency guard.
func (s *LightningState) Report(t time.Time, distanceKm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strike = Strike{Time: t, DistanceKm: distanceKm}
}
