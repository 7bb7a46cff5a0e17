package domain

import (
	"sync"
	"time"
)

// Scene is the derived display category used to pick a background asset.
type Scene string

const (
	SceneStorm  Scene = "storm"
	SceneRain   Scene = "rain"
	SceneSunset Scene = "sunset"
	SceneDay    Scene = "day"
	SceneNight  Scene = "night"
)

const (
	stormStrikeMaxAge      = 30 * time.Minute
	stormStrikeMaxDistance = 30.0 // km
	rainMinPrecipRate      = 1.0  // mm/hr
	sunsetHalfWindow       = 3600 * time.Second
)

// Asset returns the name of the background asset the scene selects.
func (s Scene) Asset() string {
	return "bg_" + string(s) + ".jpg"
}

// ClassifyScene derives the display scene from an observation and the current
// lightning and location snapshots, evaluated in strict priority order: storm,
// rain, sunset, day, night. First match wins; night is the terminal fallback.
// Pure function: identical inputs always yield the identical scene.
func ClassifyScene(obs *Observation, strike Strike, loc Location, now time.Time) Scene {
	if !strike.Time.IsZero() &&
		now.Sub(strike.Time) <= stormStrikeMaxAge &&
		strike.DistanceKm <= stormStrikeMaxDistance {
		return SceneStorm
	}
	if obs.PrecipRate >= rainMinPrecipRate {
		return SceneRain
	}
	if !loc.SunsetUTC.IsZero() {
		d := obs.Timestamp.Sub(loc.SunsetUTC)
		if d < 0 {
			d = -d
		}
		if d <= sunsetHalfWindow {
			return SceneSunset
		}
	}
	if !loc.SunriseUTC.IsZero() && !loc.SunsetUTC.IsZero() &&
		!obs.Timestamp.Before(loc.SunriseUTC) && !obs.Timestamp.After(loc.SunsetUTC) {
		return SceneDay
	}
	return SceneNight
}

// SceneKeeper tracks the active scene so callers only swap the displayed
// asset when the selection actually changes.
type SceneKeeper struct {
	mu      sync.Mutex
	current Scene
}

// NewSceneKeeper starts at night, matching an unlit display before the first
// observation arrives.
func NewSceneKeeper() *SceneKeeper {
	return &SceneKeeper{current: SceneNight}
}

// Current returns the active scene.
func (k *SceneKeeper) Current() Scene {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// Swap records the scene and reports whether it changed.
func (k *SceneKeeper) Swap(s Scene) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s == k.current {
		return false
	}
	k.current = s
	return true
}
