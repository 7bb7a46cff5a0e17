package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cdens/WxServer/internal/domain"
)

//go:embed pgmigrations/*.sql
var pgMigrations embed.FS

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection and runs migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	goose.SetBaseFS(pgMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "pgmigrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// DB returns the underlying database connection for migration commands.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, obs *domain.Observation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Read-committed max(id)+1 races between concurrent transactions;
	// an exclusive lock serializes id assignment.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE observations IN EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("locking observations: %w", err)
	}

	id, err := nextID(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := insertObservation(ctx, tx, id, obs, "$"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	obs.ID = id
	return id, nil
}

func (s *PostgresStore) AppendBatch(ctx context.Context, obs []domain.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `LOCK TABLE observations IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("locking observations: %w", err)
	}

	id, err := nextID(ctx, tx)
	if err != nil {
		return err
	}
	for i := range obs {
		if err := insertObservation(ctx, tx, id, &obs[i], "$"); err != nil {
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

func (s *PostgresStore) QueryRange(ctx context.Context, start, end time.Time) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, replacePlaceholders(`
		SELECT `+obsColumns+`
		FROM observations
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanObservations(rows)
}

func (s *PostgresStore) Latest(ctx context.Context) (*domain.Observation, error) {
	return s.byIDOrder(ctx, "DESC")
}

func (s *PostgresStore) Earliest(ctx context.Context) (*domain.Observation, error) {
	return s.byIDOrder(ctx, "ASC")
}

func (s *PostgresStore) byIDOrder(ctx context.Context, dir string) (*domain.Observation, error) {
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

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting observations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
