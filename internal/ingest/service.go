// Package ingest validates and commits sensor reports: observations,
// lightning strike reports, and station position updates.
package ingest

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/observability"
	"github.com/cdens/WxServer/internal/resolver"
	"github.com/cdens/WxServer/internal/store"
	"github.com/cdens/WxServer/internal/timeparse"
)

// Required numeric observation fields, checked in this order so the first
// absent one is the one named in the error.
var observationFields = []string{"ta", "rh", "pres", "wspd", "wdir", "solar", "precip", "strikes"}

// Ack acknowledges a committed write. Its content distinguishes success from
// the failure kinds independent of transport status codes.
type Ack struct {
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
	Place  string `json:"place,omitempty"`
}

// Service validates incoming sensor reports and applies their effects:
// observation appends, lightning state updates, and position resolution.
type Service struct {
	store     store.Store
	resolver  resolver.Resolver
	location  *domain.LocationState
	lightning *domain.LightningState
	scenes    *domain.SceneKeeper
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *slog.Logger

	credentialDigest string // lowercase hex SHA-1 of the shared sensor secret
	resolverTimeout  time.Duration
}

// Deps bundles the collaborators for NewService.
type Deps struct {
	Store     store.Store
	Resolver  resolver.Resolver
	Location  *domain.LocationState
	Lightning *domain.LightningState
	Scenes    *domain.SceneKeeper
	Metrics   *observability.Metrics
	Clock     clockwork.Clock
	Logger    *slog.Logger

	CredentialDigest string
	ResolverTimeout  time.Duration
}

// NewService creates an ingestion service.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.ResolverTimeout <= 0 {
		d.ResolverTimeout = 10 * time.Second
	}
	return &Service{
		store:            d.Store,
		resolver:         d.Resolver,
		location:         d.Location,
		lightning:        d.Lightning,
		scenes:           d.Scenes,
		metrics:          d.Metrics,
		clock:            d.Clock,
		logger:           d.Logger,
		credentialDigest: strings.ToLower(d.CredentialDigest),
		resolverTimeout:  d.ResolverTimeout,
	}
}

// Ingest validates and commits one observation. Order matters: credential
// first, then field extraction, then the append; nothing is written before
// every check passes. Scene classification runs after the commit as a
// best-effort side effect that can never fail the request.
func (s *Service) Ingest(ctx context.Context, fields url.Values) (Ack, error) {
	if err := s.checkCredential(fields.Get("credential")); err != nil {
		countErrorReason(s.metrics.IngestErrors, err)
		return Ack{}, err
	}

	if !fields.Has("date") {
		countErrorReason(s.metrics.IngestErrors, &domain.MissingFieldError{Field: "date"})
		return Ack{}, &domain.MissingFieldError{Field: "date"}
	}
	ts, ok := timeparse.Parse(fields.Get("date"))
	if !ok {
		// Unparseable dates fall back to receipt time; the parser's
		// contract is that absence means "use default".
		ts = s.clock.Now().UTC()
	}

	vals := make(map[string]float64, len(observationFields))
	for _, name := range observationFields {
		v, err := s.numericField(fields, name)
		if err != nil {
			countErrorReason(s.metrics.IngestErrors, err)
			return Ack{}, err
		}
		vals[name] = v
	}

	// Gust is optional on the live feed; legacy sensors report only speed.
	gust := vals["wspd"]
	if fields.Has("wgust") {
		v, err := s.numericField(fields, "wgust")
		if err != nil {
			countErrorReason(s.metrics.IngestErrors, err)
			return Ack{}, err
		}
		gust = v
	}

	obs := &domain.Observation{
		Timestamp:        ts,
		Temperature:      vals["ta"],
		RelativeHumidity: vals["rh"],
		Pressure:         vals["pres"],
		WindSpeed:        vals["wspd"],
		WindGust:         gust,
		WindDirection:    vals["wdir"],
		SolarRadiation:   vals["solar"],
		PrecipRate:       vals["precip"],
		StrikeRate:       vals["strikes"],
	}

	id, err := s.store.Append(ctx, obs)
	if err != nil {
		s.metrics.IngestErrors.WithLabelValues("storage").Inc()
		return Ack{}, fmt.Errorf("appending observation: %w", err)
	}
	s.metrics.ObservationsIngested.Inc()

	// A positive strike rate does not touch lightning state here; only the
	// dedicated strike-report path does.
	s.reclassify(obs)

	return Ack{Status: "ok", ID: id}, nil
}

// ReportStrike records a lightning strike. The report overwrites prior state
// unconditionally; reports are assumed to arrive in order.
func (s *Service) ReportStrike(ctx context.Context, fields url.Values) (Ack, error) {
	if err := s.checkCredential(fields.Get("credential")); err != nil {
		countErrorReason(s.metrics.StrikeErrors, err)
		return Ack{}, err
	}

	if !fields.Has("date") {
		countErrorReason(s.metrics.StrikeErrors, &domain.MissingFieldError{Field: "date"})
		return Ack{}, &domain.MissingFieldError{Field: "date"}
	}
	ts, ok := timeparse.Parse(fields.Get("date"))
	if !ok {
		ts = s.clock.Now().UTC()
	}

	dist, err := s.numericField(fields, "distance")
	if err != nil {
		countErrorReason(s.metrics.StrikeErrors, err)
		return Ack{}, err
	}
	km := math.Round(dist)

	s.lightning.Report(ts, km)
	s.metrics.StrikeReports.Inc()
	s.logger.Info("lightning strike reported", "time", ts, "distance_km", km)

	if latest, err := s.store.Latest(ctx); err == nil && latest != nil {
		s.reclassify(latest)
	}

	return Ack{Status: "ok"}, nil
}

// UpdatePosition resolves new station coordinates through the external
// geocode/timezone/sun-times capability and replaces the location wholesale.
// Resolver failure leaves the previous location untouched.
func (s *Service) UpdatePosition(ctx context.Context, fields url.Values) (Ack, error) {
	if err := s.checkCredential(fields.Get("credential")); err != nil {
		s.metrics.PositionUpdates.WithLabelValues("auth").Inc()
		return Ack{}, err
	}

	lat, err := s.coordinateField(fields, "latitude")
	if err != nil {
		s.metrics.PositionUpdates.WithLabelValues("validation").Inc()
		return Ack{}, err
	}
	lon, err := s.coordinateField(fields, "longitude")
	if err != nil {
		s.metrics.PositionUpdates.WithLabelValues("validation").Inc()
		return Ack{}, err
	}

	rctx, cancel := context.WithTimeout(ctx, s.resolverTimeout)
	defer cancel()

	started := s.clock.Now()
	place, err := s.resolver.Resolve(rctx, lat, lon)
	s.metrics.ResolverDuration.Observe(s.clock.Since(started).Seconds())
	if err != nil {
		outcome := "resolver_error"
		var re *domain.ResolverError
		if errors.As(err, &re) && re.Timeout {
			outcome = "resolver_timeout"
		}
		s.metrics.PositionUpdates.WithLabelValues(outcome).Inc()
		return Ack{}, err
	}

	s.location.Replace(domain.Location{
		Latitude:   lat,
		Longitude:  lon,
		PlaceName:  place.Name,
		Timezone:   place.Timezone,
		SunriseUTC: place.SunriseUTC,
		SunsetUTC:  place.SunsetUTC,
	})
	s.metrics.PositionUpdates.WithLabelValues("success").Inc()
	s.logger.Info("station position updated",
		"place", place.Name, "timezone", place.Timezone,
		"sunrise_utc", place.SunriseUTC, "sunset_utc", place.SunsetUTC)

	return Ack{Status: "ok", Place: place.Name}, nil
}

// RefreshSunTimes re-resolves today's sunrise and sunset for the current
// position. Run daily by the scheduler; on failure yesterday's values stand.
func (s *Service) RefreshSunTimes(ctx context.Context) error {
	loc := s.location.Snapshot()

	rctx, cancel := context.WithTimeout(ctx, s.resolverTimeout)
	defer cancel()

	place, err := s.resolver.Resolve(rctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("refreshing sun times: %w", err)
	}
	s.location.SetSunTimes(place.SunriseUTC, place.SunsetUTC)
	s.logger.Info("sun times refreshed",
		"sunrise_utc", place.SunriseUTC, "sunset_utc", place.SunsetUTC)
	return nil
}

// checkCredential compares the SHA-1 digest of the supplied secret against
// the configured digest in constant time. SHA-1 here is a documented
// weakness, acceptable only for a single trusted sensor feed.
func (s *Service) checkCredential(credential string) error {
	if credential == "" {
		return &domain.MissingFieldError{Field: "credential"}
	}
	sum := sha1.Sum([]byte(credential))
	digest := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(digest), []byte(s.credentialDigest)) != 1 {
		return domain.ErrBadCredential
	}
	return nil
}

func (s *Service) numericField(fields url.Values, name string) (float64, error) {
	if !fields.Has(name) {
		return 0, &domain.MissingFieldError{Field: name}
	}
	raw := strings.TrimSpace(fields.Get(name))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Value: raw}
	}
	return v, nil
}

// coordinateField validates a decimal-degree string but returns it verbatim;
// coordinates stay strings end to end.
func (s *Service) coordinateField(fields url.Values, name string) (string, error) {
	if !fields.Has(name) {
		return "", &domain.MissingFieldError{Field: name}
	}
	raw := strings.TrimSpace(fields.Get(name))
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", &domain.ValidationError{Field: name, Value: raw}
	}
	return raw, nil
}

// reclassify recomputes the display scene. Failures are logged and swallowed;
// the committed observation always outlives a classification problem.
func (s *Service) reclassify(obs *domain.Observation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scene classification panicked", "panic", r)
		}
	}()

	scene := domain.ClassifyScene(obs, s.lightning.Snapshot(), s.location.Snapshot(), s.clock.Now().UTC())
	s.metrics.SetCurrentScene(string(scene))
	if s.scenes.Swap(scene) {
		s.metrics.SceneChanges.WithLabelValues(string(scene)).Inc()
		s.logger.Info("scene changed", "scene", scene, "asset", scene.Asset())
	}
}

// countErrorReason buckets a rejected write by error kind.
func countErrorReason(vec *prometheus.CounterVec, err error) {
	var mf *domain.MissingFieldError
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrBadCredential):
		vec.WithLabelValues("auth").Inc()
	case errors.As(err, &mf):
		vec.WithLabelValues("missing_field").Inc()
	case errors.As(err, &ve):
		vec.WithLabelValues("validation").Inc()
	}
}
