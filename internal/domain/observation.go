package domain

import "time"

// Observation is one weather-station reading. Values are stored in metric
// units (°C, mb, mm/hr); conversion to display units happens at query time.
// Observations are created once and never updated or deleted.
type Observation struct {
	ID               int64
	Timestamp        time.Time // always UTC
	Temperature      float64   // °C
	RelativeHumidity float64   // %
	Pressure         float64   // mb
	WindSpeed        float64
	WindGust         float64
	WindDirection    float64 // degrees, 0-360
	SolarRadiation   float64
	PrecipRate       float64 // mm/hr
	StrikeRate       float64 // strikes/hr
}

// CelsiusToFahrenheit converts a stored temperature for display.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32.0
}
