package store

import (
	"context"
	"time"

	"github.com/cdens/WxServer/internal/domain"
)

// Store is the append-only observation time series. Both the SQLite and
// PostgreSQL implementations satisfy this interface.
type Store interface {
	// Append persists a single observation, assigning id = max(id)+1 (1 for
	// an empty table). The id computation and insert happen in one
	// transaction so concurrent appends cannot produce duplicate ids.
	// Ids are never reused. The assigned id is written back to obs.ID.
	Append(ctx context.Context, obs *domain.Observation) (int64, error)

	// AppendBatch persists many observations in a single transaction with
	// the same id assignment rule, in slice order. Used by bulk import.
	AppendBatch(ctx context.Context, obs []domain.Observation) error

	// QueryRange returns observations with start <= timestamp <= end,
	// ordered by timestamp ascending. An empty window yields an empty
	// slice, never an error.
	QueryRange(ctx context.Context, start, end time.Time) ([]domain.Observation, error)

	// Latest returns the observation with the highest id, or nil when the
	// table is empty.
	Latest(ctx context.Context) (*domain.Observation, error)

	// Earliest returns the observation with the lowest id, or nil when the
	// table is empty. Bounds the date-picker display range.
	Earliest(ctx context.Context) (*domain.Observation, error)

	// Count returns the total number of stored observations.
	Count(ctx context.Context) (int, error)

	// Close closes the database connection.
	Close() error
}
