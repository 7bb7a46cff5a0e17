package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/cdens/WxServer/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const obsColumns = `id, timestamp, temperature, relative_humidity, pressure,
	wind_speed, wind_gust, wind_direction, solar_radiation, precip_rate, strike_rate`

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database, sets file permissions, and runs
// migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// Set pragmas for performance and safety.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := os.Chmod(dsn, 0600); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("setting file permissions: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying database connection for migration commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Append(ctx context.Context, obs *domain.Observation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is harmless

	id, err := nextID(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := insertObservation(ctx, tx, id, obs, "?"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	obs.ID = id
	return id, nil
}

func (s *SQLiteStore) AppendBatch(ctx context.Context, obs []domain.Observation) error {
	const batchSize = 500
	for i := 0; i < len(obs); i += batchSize {
		end := i + batchSize
		if end > len(obs) {
			end = len(obs)
		}
		if err := s.appendChunk(ctx, obs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) appendChunk(ctx context.Context, obs []domain.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := nextID(ctx, tx)
	if err != nil {
		return err
	}
	for i := range obs {
		if err := insertObservation(ctx, tx, id, &obs[i], "?"); err != nil {
			return err
		}
		obs[i].ID = id
		id++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) QueryRange(ctx context.Context, start, end time.Time) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+obsColumns+`
		FROM observations
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanObservations(rows)
}

func (s *SQLiteStore) Latest(ctx context.Context) (*domain.Observation, error) {
	return s.byIDOrder(ctx, "DESC")
}

func (s *SQLiteStore) Earliest(ctx context.Context) (*domain.Observation, error) {
	return s.byIDOrder(ctx, "ASC")
}

func (s *SQLiteStore) byIDOrder(ctx context.Context, dir string) (*domain.Observation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+obsColumns+`
		FROM observations
		ORDER BY id `+dir+`
		LIMIT 1`)

	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting observation by id order: %w", err)
	}
	return obs, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting observations: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Shared helpers ---

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextID computes max(id)+1 inside the caller's transaction.
func nextID(ctx context.Context, tx execer) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM observations`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("computing next id: %w", err)
	}
	return id, nil
}

func insertObservation(ctx context.Context, tx execer, id int64, obs *domain.Observation, placeholder string) error {
	q := `
		INSERT INTO observations (` + obsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if placeholder == "$" {
		q = replacePlaceholders(q)
	}
	_, err := tx.ExecContext(ctx, q,
		id, obs.Timestamp.UTC(),
		obs.Temperature, obs.RelativeHumidity, obs.Pressure,
		obs.WindSpeed, obs.WindGust, obs.WindDirection,
		obs.SolarRadiation, obs.PrecipRate, obs.StrikeRate,
	)
	if err != nil {
		return fmt.Errorf("inserting observation: %w", err)
	}
	return nil
}

// parseTimestamp handles both time.Time and string timestamp values coming
// back from the drivers.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05Z",
			"2006-01-02 15:04:05+00:00",
			"2006-01-02 15:04:05 +0000 UTC",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type: %T", v)
	}
}

func scanObservation(row scanner) (*domain.Observation, error) {
	var obs domain.Observation
	var tsRaw any
	err := row.Scan(
		&obs.ID, &tsRaw,
		&obs.Temperature, &obs.RelativeHumidity, &obs.Pressure,
		&obs.WindSpeed, &obs.WindGust, &obs.WindDirection,
		&obs.SolarRadiation, &obs.PrecipRate, &obs.StrikeRate,
	)
	if err != nil {
		return nil, err
	}
	obs.Timestamp, err = parseTimestamp(tsRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	return &obs, nil
}

func scanObservations(rows *sql.Rows) ([]domain.Observation, error) {
	result := []domain.Observation{}
	for rows.Next() {
		var obs domain.Observation
		var tsRaw any
		if err := rows.Scan(
			&obs.ID, &tsRaw,
			&obs.Temperature, &obs.RelativeHumidity, &obs.Pressure,
			&obs.WindSpeed, &obs.WindGust, &obs.WindDirection,
			&obs.SolarRadiation, &obs.PrecipRate, &obs.StrikeRate,
		); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		ts, err := parseTimestamp(tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		obs.Timestamp = ts
		result = append(result, obs)
	}
	return result, rows.Err()
}

// replacePlaceholders converts ? to $1, $2, $3 etc for postgres.
func replacePlaceholders(query string) string {
	result := make([]byte, 0, len(query))
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, fmt.Sprintf("$%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
