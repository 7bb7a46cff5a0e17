package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdens/WxServer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func fakeUpstreams(t *testing.T, geocodeStatus int) (geocode, timezone, astronomy *httptest.Server) {
	t.Helper()
	geocode = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if geocodeStatus != http.StatusOK {
			w.WriteHeader(geocodeStatus)
			return
		}
		_, _ = w.Write([]byte(`{"display_name":"Newark, Delaware, United States"}`))
	}))
	timezone = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timeZone":"America/New_York"}`))
	}))
	astronomy = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"sunrise":"2024-06-15T09:38:00+00:00","sunset":"2024-06-16T00:28:00+00:00"},"status":"OK"}`))
	}))
	t.Cleanup(func() {
		geocode.Close()
		timezone.Close()
		astronomy.Close()
	})
	return geocode, timezone, astronomy
}

func TestClient_Resolve(t *testing.T) {
	geo, tzs, astro := fakeUpstreams(t, http.StatusOK)
	c := NewClient(geo.URL, tzs.URL, astro.URL, 5*time.Second, testLogger())

	place, err := c.Resolve(context.Background(), "39.68", "-75.75")
	require.NoError(t, err)
	assert.Equal(t, "Newark, Delaware, United States", place.Name)
	assert.Equal(t, "America/New_York", place.Timezone)
	assert.Equal(t, time.Date(2024, 6, 15, 9, 38, 0, 0, time.UTC), place.SunriseUTC)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 28, 0, 0, time.UTC), place.SunsetUTC)
}

func TestClient_Resolve_PlaceNameFallback(t *testing.T) {
	geo, tzs, astro := fakeUpstreams(t, http.StatusInternalServerError)
	c := NewClient(geo.URL, tzs.URL, astro.URL, 5*time.Second, testLogger())

	place, err := c.Resolve(context.Background(), "39.68", "-75.75")
	require.NoError(t, err)
	assert.Equal(t, "39.68, -75.75", place.Name)
	assert.Equal(t, "America/New_York", place.Timezone)
}

func TestClient_Resolve_TimezoneFailureAborts(t *testing.T) {
	geo, _, astro := fakeUpstreams(t, http.StatusOK)
	badTZ := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badTZ.Close()

	c := NewClient(geo.URL, badTZ.URL, astro.URL, 5*time.Second, testLogger())
	_, err := c.Resolve(context.Background(), "39.68", "-75.75")

	var re *domain.ResolverError
	require.True(t, errors.As(err, &re))
	assert.False(t, re.Timeout)
}

func TestClient_Resolve_UnknownZoneRejected(t *testing.T) {
	geo, _, astro := fakeUpstreams(t, http.StatusOK)
	badZone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timeZone":"Pluto/Darkside"}`))
	}))
	defer badZone.Close()

	c := NewClient(geo.URL, badZone.URL, astro.URL, 5*time.Second, testLogger())
	_, err := c.Resolve(context.Background(), "39.68", "-75.75")

	var re *domain.ResolverError
	require.True(t, errors.As(err, &re))
}

func TestClient_Resolve_TimeoutFlagged(t *testing.T) {
	geo, _, astro := fakeUpstreams(t, http.StatusOK)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"timeZone":"America/New_York"}`))
	}))
	defer slow.Close()

	c := NewClient(geo.URL, slow.URL, astro.URL, 20*time.Millisecond, testLogger())
	_, err := c.Resolve(context.Background(), "39.68", "-75.75")

	var re *domain.ResolverError
	require.True(t, errors.As(err, &re))
	assert.True(t, re.Timeout)
}
