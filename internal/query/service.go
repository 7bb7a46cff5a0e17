// Package query serves the current-conditions and historical windows as
// normalized, unit- and timezone-converted observation lists.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/observability"
	"github.com/cdens/WxServer/internal/store"
	"github.com/cdens/WxServer/internal/timeparse"
)

// ClientCompact marks a reduced-width display; it only affects the FullAxes
// capability hint, never which observations are returned.
const ClientCompact = "compact"

// DisplayObservation is an observation prepared for presentation: local-time
// timestamp and Fahrenheit temperature. Stored values remain UTC and Celsius.
type DisplayObservation struct {
	ID               int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Temperature      float64   `json:"temperature_f"`
	RelativeHumidity float64   `json:"relative_humidity"`
	Pressure         float64   `json:"pressure_mb"`
	WindSpeed        float64   `json:"wind_speed"`
	WindGust         float64   `json:"wind_gust"`
	WindDirection    float64   `json:"wind_direction"`
	SolarRadiation   float64   `json:"solar_radiation"`
	PrecipRate       float64   `json:"precip_rate"`
	StrikeRate       float64   `json:"strike_rate"`
}

// WindowResult is the answer to a window query. When the window is empty,
// NoData is set with a human-readable message and the plot shows nothing;
// for the current window Latest still carries the newest observation
// system-wide so the conditions panel is never blank.
type WindowResult struct {
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	Observations []DisplayObservation `json:"observations"`
	Latest       *DisplayObservation  `json:"latest,omitempty"`
	NoData       bool                 `json:"no_data"`
	Message      string               `json:"message,omitempty"`
	FullAxes     bool                 `json:"full_axes"`
	EarliestDate string               `json:"earliest_date,omitempty"`
	LatestDate   string               `json:"latest_date,omitempty"`
}

// Service answers time-windowed observation queries.
type Service struct {
	store    store.Store
	location *domain.LocationState
	metrics  *observability.Metrics
	clock    clockwork.Clock
	logger   *slog.Logger

	lookback    time.Duration // current-conditions window
	historyDays int           // default historical window
}

// NewService creates a query service. lookback bounds the current-conditions
// window; historyDays is the default historical span.
func NewService(s store.Store, loc *domain.LocationState, m *observability.Metrics, clock clockwork.Clock, logger *slog.Logger, lookback time.Duration, historyDays int) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if lookback <= 0 {
		lookback = 4 * time.Hour
	}
	if historyDays <= 0 {
		historyDays = 14
	}
	return &Service{
		store:       s,
		location:    loc,
		metrics:     m,
		clock:       clock,
		logger:      logger,
		lookback:    lookback,
		historyDays: historyDays,
	}
}

// CurrentWindow returns the last few hours of observations. An empty window
// falls back to the single latest observation system-wide for the conditions
// panel while still reporting NoData for the plot.
func (s *Service) CurrentWindow(ctx context.Context, client string) (*WindowResult, error) {
	started := s.clock.Now()
	defer func() {
		s.metrics.QueryDuration.WithLabelValues("current").Observe(s.clock.Since(started).Seconds())
	}()

	end := s.clock.Now().UTC()
	start := end.Add(-s.lookback)

	obs, err := s.store.QueryRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying current window: %w", err)
	}

	zone := s.location.Snapshot().Timezone
	result := &WindowResult{
		Start:    s.toLocal(start, zone),
		End:      s.toLocal(end, zone),
		FullAxes: client != ClientCompact,
	}

	if len(obs) == 0 {
		result.NoData = true
		result.Message = domain.ErrNoData.Error()
		latest, err := s.store.Latest(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying latest observation: %w", err)
		}
		if latest != nil {
			d := s.display(latest, zone)
			result.Latest = &d
		}
		result.Observations = []DisplayObservation{}
		return result, nil
	}

	result.Observations = s.displayAll(obs, zone)
	last := result.Observations[len(result.Observations)-1]
	result.Latest = &last
	return result, nil
}

// HistoricalWindow returns observations between start and end, both given in
// any recognized date format. Missing bounds default to a window of
// historyDays; equal bounds widen by a day on each side so the window is
// never degenerate.
func (s *Service) HistoricalWindow(ctx context.Context, startStr, endStr, client string) (*WindowResult, error) {
	started := s.clock.Now()
	defer func() {
		s.metrics.QueryDuration.WithLabelValues("historical").Observe(s.clock.Since(started).Seconds())
	}()

	start, end := s.resolveWindow(startStr, endStr)

	obs, err := s.store.QueryRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying historical window: %w", err)
	}

	zone := s.location.Snapshot().Timezone
	result := &WindowResult{
		Start:        s.toLocal(start, zone),
		End:          s.toLocal(end, zone),
		Observations: s.displayAll(obs, zone),
		FullAxes:     client != ClientCompact,
	}
	if len(obs) == 0 {
		result.NoData = true
		result.Message = domain.ErrNoData.Error()
	}

	// Bound the date picker by the full extent of stored data.
	if earliest, err := s.store.Earliest(ctx); err == nil && earliest != nil {
		result.EarliestDate = s.toLocal(earliest.Timestamp, zone).Format(time.DateOnly)
	}
	if latest, err := s.store.Latest(ctx); err == nil && latest != nil {
		result.LatestDate = s.toLocal(latest.Timestamp, zone).Format(time.DateOnly)
	}

	return result, nil
}

// resolveWindow applies the default-window policy to optional bounds.
func (s *Service) resolveWindow(startStr, endStr string) (start, end time.Time) {
	start, haveStart := timeparse.Parse(startStr)
	end, haveEnd := timeparse.Parse(endStr)

	switch {
	case !haveStart && !haveEnd:
		end = s.clock.Now().UTC()
		start = end.AddDate(0, 0, -s.historyDays)
	case !haveStart:
		start = end.AddDate(0, 0, -s.historyDays)
	case !haveEnd:
		end = start.AddDate(0, 0, s.historyDays)
	case start.Equal(end):
		start = start.AddDate(0, 0, -1)
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

func (s *Service) displayAll(obs []domain.Observation, zone string) []DisplayObservation {
	out := make([]DisplayObservation, len(obs))
	for i := range obs {
		out[i] = s.display(&obs[i], zone)
	}
	return out
}

func (s *Service) display(o *domain.Observation, zone string) DisplayObservation {
	return DisplayObservation{
		ID:               o.ID,
		Timestamp:        s.toLocal(o.Timestamp, zone),
		Temperature:      domain.CelsiusToFahrenheit(o.Temperature),
		RelativeHumidity: o.RelativeHumidity,
		Pressure:         o.Pressure,
		WindSpeed:        o.WindSpeed,
		WindGust:         o.WindGust,
		WindDirection:    o.WindDirection,
		SolarRadiation:   o.SolarRadiation,
		PrecipRate:       o.PrecipRate,
		StrikeRate:       o.StrikeRate,
	}
}

// toLocal converts for display, keeping UTC when the configured zone cannot
// be loaded rather than dropping the observation.
func (s *Service) toLocal(t time.Time, zone string) time.Time {
	local, err := timeparse.ToLocal(t, zone)
	if err != nil {
		s.logger.Warn("timezone conversion failed, keeping UTC", "zone", zone, "error", err)
		return t
	}
	return local
}
