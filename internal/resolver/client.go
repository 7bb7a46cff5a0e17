package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cdens/WxServer/internal/domain"
)

// Client implements Resolver against keyless public HTTP lookup services:
// a reverse geocoder for the place name, a timezone-by-coordinate lookup,
// and an astronomy service for today's sun times. A shared circuit breaker
// keeps a flapping upstream from stalling every position update.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	geocodeURL   string
	timezoneURL  string
	astronomyURL string
}

// NewClient creates a resolver client. Base URLs come from configuration so
// tests can point them at local fakes; timeout bounds each HTTP call.
func NewClient(geocodeURL, timezoneURL, astronomyURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "resolver",
			Timeout: 60 * time.Second,
		}),
		logger:       logger,
		geocodeURL:   geocodeURL,
		timezoneURL:  timezoneURL,
		astronomyURL: astronomyURL,
	}
}

// Resolve looks up place name, timezone, and sun times for the coordinates.
// The place name is best-effort: on failure it falls back to "lat, lon".
// Timezone and sun times are required for correctness; their failure returns
// a ResolverError and the caller must leave location state unchanged.
func (c *Client) Resolve(ctx context.Context, lat, lon string) (Place, error) {
	place := Place{Name: c.placeName(ctx, lat, lon)}

	tz, err := c.timezone(ctx, lat, lon)
	if err != nil {
		return Place{}, asResolverError(err)
	}
	place.Timezone = tz

	sunrise, sunset, err := c.sunTimes(ctx, lat, lon)
	if err != nil {
		return Place{}, asResolverError(err)
	}
	place.SunriseUTC = sunrise
	place.SunsetUTC = sunset

	return place, nil
}

func (c *Client) placeName(ctx context.Context, lat, lon string) string {
	fallback := fmt.Sprintf("%s, %s", lat, lon)

	var resp struct {
		DisplayName string `json:"display_name"`
	}
	params := url.Values{"lat": {lat}, "lon": {lon}, "format": {"json"}}
	if err := c.getJSON(ctx, c.geocodeURL+"?"+params.Encode(), &resp); err != nil {
		c.logger.Warn("place name lookup failed, using coordinates", "error", err)
		return fallback
	}
	if resp.DisplayName == "" {
		return fallback
	}
	return resp.DisplayName
}

func (c *Client) timezone(ctx context.Context, lat, lon string) (string, error) {
	var resp struct {
		TimeZone string `json:"timeZone"`
	}
	params := url.Values{"latitude": {lat}, "longitude": {lon}}
	if err := c.getJSON(ctx, c.timezoneURL+"?"+params.Encode(), &resp); err != nil {
		return "", fmt.Errorf("timezone lookup: %w", err)
	}
	if resp.TimeZone == "" {
		return "", errors.New("timezone lookup returned no zone")
	}
	if _, err := time.LoadLocation(resp.TimeZone); err != nil {
		return "", fmt.Errorf("timezone lookup returned unknown zone %q: %w", resp.TimeZone, err)
	}
	return resp.TimeZone, nil
}

func (c *Client) sunTimes(ctx context.Context, lat, lon string) (sunrise, sunset time.Time, err error) {
	var resp struct {
		Results struct {
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
		} `json:"results"`
		Status string `json:"status"`
	}
	params := url.Values{"lat": {lat}, "lng": {lon}, "formatted": {"0"}}
	if err := c.getJSON(ctx, c.astronomyURL+"?"+params.Encode(), &resp); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("sun times lookup: %w", err)
	}
	if resp.Status != "OK" {
		return time.Time{}, time.Time{}, fmt.Errorf("sun times lookup status %q", resp.Status)
	}
	sunrise, err = time.Parse(time.RFC3339, resp.Results.Sunrise)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing sunrise %q: %w", resp.Results.Sunrise, err)
	}
	sunset, err = time.Parse(time.RFC3339, resp.Results.Sunset)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing sunset %q: %w", resp.Results.Sunset, err)
	}
	return sunrise.UTC(), sunset.UTC(), nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, v any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return nil, nil
	})
	return err
}

// asResolverError wraps a lookup failure, flagging timeouts distinctly so
// callers can surface them instead of a generic failure.
func asResolverError(err error) *domain.ResolverError {
	var re *domain.ResolverError
	if errors.As(err, &re) {
		return re
	}
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if !timeout && errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &domain.ResolverError{Timeout: timeout, Err: err}
}
