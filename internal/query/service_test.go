package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/observability"
)

var queryNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	obs []domain.Observation
}

func (m *mockStore) Append(ctx context.Context, o *domain.Observation) (int64, error) {
	o.ID = int64(len(m.obs) + 1)
	m.obs = append(m.obs, *o)
	return o.ID, nil
}

func (m *mockStore) AppendBatch(ctx context.Context, obs []domain.Observation) error {
	for i := range obs {
		if _, err := m.Append(ctx, &obs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) QueryRange(ctx context.Context, start, end time.Time) ([]domain.Observation, error) {
	var out []domain.Observation
	for _, o := range m.obs {
		if !o.Timestamp.Before(start) && !o.Timestamp.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStore) Latest(ctx context.Context) (*domain.Observation, error) {
	if len(m.obs) == 0 {
		return nil, nil
	}
	o := m.obs[len(m.obs)-1]
	return &o, nil
}

func (m *mockStore) Earliest(ctx context.Context) (*domain.Observation, error) {
	if len(m.obs) == 0 {
		return nil, nil
	}
	o := m.obs[0]
	return &o, nil
}

func (m *mockStore) Count(ctx context.Context) (int, error) { return len(m.obs), nil }
func (m *mockStore) Close() error                           { return nil }

func newQueryService(s *mockStore, zone string) *Service {
	loc := domain.NewLocationState(domain.Location{Timezone: zone})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(s, loc, observability.NewMetricsForTesting(),
		clockwork.NewFakeClockAt(queryNow), logger, 4*time.Hour, 14)
}

func TestCurrentWindow(t *testing.T) {
	s := &mockStore{}
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: queryNow.Add(-26 * time.Hour), Temperature: 5,
	})
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: queryNow.Add(-3 * time.Hour), Temperature: 20,
	})
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: queryNow.Add(-1 * time.Hour), Temperature: 22,
	})

	svc := newQueryService(s, "UTC")
	res, err := svc.CurrentWindow(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, res.NoData)
	require.Len(t, res.Observations, 2)
	// 20C is 68F.
	assert.Equal(t, 68.0, res.Observations[0].Temperature)
	require.NotNil(t, res.Latest)
	assert.Equal(t, int64(3), res.Latest.ID)
	assert.True(t, res.FullAxes)
}

func TestCurrentWindowCompactClient(t *testing.T) {
	svc := newQueryService(&mockStore{}, "UTC")
	res, err := svc.CurrentWindow(context.Background(), ClientCompact)
	require.NoError(t, err)
	assert.False(t, res.FullAxes)
}

func TestCurrentWindowEmptyFallsBackToLatest(t *testing.T) {
	s := &mockStore{}
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: queryNow.Add(-48 * time.Hour), Temperature: 10,
	})

	svc := newQueryService(s, "UTC")
	res, err := svc.CurrentWindow(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, res.NoData)
	assert.Equal(t, "no data available in this period", res.Message)
	// The plot is empty but the conditions panel still gets the newest
	// observation system-wide.
	assert.NotNil(t, res.Observations)
	assert.Empty(t, res.Observations)
	require.NotNil(t, res.Latest)
	assert.Equal(t, 50.0, res.Latest.Temperature)
}

func TestCurrentWindowTrulyEmptyStore(t *testing.T) {
	svc := newQueryService(&mockStore{}, "UTC")
	res, err := svc.CurrentWindow(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Nil(t, res.Latest)
}

func TestHistoricalWindow(t *testing.T) {
	s := &mockStore{}
	for d := 1; d <= 20; d++ {
		ts := time.Date(2024, 1, d, 6, 0, 0, 0, time.UTC)
		_, _ = s.Append(context.Background(), &domain.Observation{Timestamp: ts, Temperature: 0})
	}

	svc := newQueryService(s, "UTC")
	res, err := svc.HistoricalWindow(context.Background(), "20240105", "20240110", "")
	require.NoError(t, err)

	// Bounds parse to midnight instants, so the day-10 reading at 06:00 lies
	// past the end bound and days 5 through 9 are in the window.
	require.Len(t, res.Observations, 5)
	assert.Equal(t, int64(5), res.Observations[0].ID)
	assert.Equal(t, int64(9), res.Observations[4].ID)

	assert.Equal(t, "2024-01-01", res.EarliestDate)
	assert.Equal(t, "2024-01-20", res.LatestDate)
}

func TestHistoricalWindowEndBoundInclusive(t *testing.T) {
	s := &mockStore{}
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Temperature: 0,
	})

	svc := newQueryService(s, "UTC")
	res, err := svc.HistoricalWindow(context.Background(), "20240105", "20240110", "")
	require.NoError(t, err)

	// A reading exactly at the end instant is inside the window.
	require.Len(t, res.Observations, 1)
	assert.False(t, res.NoData)
}

func TestHistoricalWindowEmpty(t *testing.T) {
	svc := newQueryService(&mockStore{}, "UTC")
	res, err := svc.HistoricalWindow(context.Background(), "20240105", "20240110", "")
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Equal(t, "no data available in this period", res.Message)
	assert.Empty(t, res.EarliestDate)
}

func TestResolveWindow(t *testing.T) {
	svc := newQueryService(&mockStore{}, "UTC")

	tests := []struct {
		name       string
		start, end string
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:      "both missing defaults to trailing history",
			wantStart: queryNow.AddDate(0, 0, -14),
			wantEnd:   queryNow,
		},
		{
			name:      "missing start backfills from end",
			end:       "20240110",
			wantStart: time.Date(2023, 12, 27, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "missing end extends from start",
			start:     "20240101",
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "equal bounds widen a day each way",
			start:     "20240101",
			end:       "20240101",
			wantStart: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "unparseable start treated as missing",
			start:     "whenever",
			end:       "20240110",
			wantStart: time.Date(2023, 12, 27, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := svc.resolveWindow(tt.start, tt.end)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestDisplayTimezoneConversion(t *testing.T) {
	s := &mockStore{}
	// 2024-01-15 03:00 UTC is 2024-01-14 22:00 in New York (EST).
	_, _ = s.Append(context.Background(), &domain.Observation{
		Timestamp: time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC), Temperature: 0,
	})

	svc := newQueryService(s, "America/New_York")
	res, err := svc.HistoricalWindow(context.Background(), "20240114", "20240116", "")
	require.NoError(t, err)

	require.Len(t, res.Observations, 1)
	got := res.Observations[0].Timestamp
	assert.Equal(t, 22, got.Hour())
	assert.Equal(t, 14, got.Day())
	// 0C is 32F.
	assert.Equal(t, 32.0, res.Observations[0].Temperature)
}

func TestDisplayBadZoneKeepsUTC(t *testing.T) {
	s := &mockStore{}
	ts := time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)
	_, _ = s.Append(context.Background(), &domain.Observation{Timestamp: ts, Temperature: 0})

	svc := newQueryService(s, "Not/AZone")
	res, err := svc.HistoricalWindow(context.Background(), "20240114", "20240116", "")
	require.NoError(t, err)

	require.Len(t, res.Observations, 1)
	assert.True(t, res.Observations[0].Timestamp.Equal(ts))
}
