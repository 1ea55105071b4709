package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/chunkgen/internal/platform/logger"
	"github.com/phrazzld/chunkgen/internal/store"
	"github.com/phrazzld/chunkgen/internal/task"
)

// ProgressStore implements task.ProgressStore on the generation_progress
// table. The offset is stored in the position column.
type ProgressStore struct {
	db store.DBTX
}

// ProgressStore implements task.ProgressStore
var _ task.ProgressStore = (*ProgressStore)(nil)

// NewProgressStore creates a new ProgressStore
func NewProgressStore(db store.DBTX) *ProgressStore {
	return &ProgressStore{db: db}
}

// Open establishes a connection pool to url and verifies it with a ping.
func Open(ctx context.Context, url string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}

// Save upserts the record for p.Region.
func (s *ProgressStore) Save(ctx context.Context, p task.Progress) error {
	log := logger.FromContext(ctx)

	if p.Region == "" {
		return store.NewStoreError("progress", "save", "region is required", store.ErrInvalidEntity)
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO generation_progress (region, center_x, center_z, radius, position, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (region) DO UPDATE SET
			center_x = EXCLUDED.center_x,
			center_z = EXCLUDED.center_z,
			radius = EXCLUDED.radius,
			position = EXCLUDED.position,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.Region,
		p.CenterX,
		p.CenterZ,
		p.Radius,
		p.Offset,
		string(p.State),
		updatedAt,
	)
	if err != nil {
		log.Error("failed to save progress",
			"region", p.Region,
			"offset", p.Offset,
			"error", err)
		return store.NewStoreError("progress", "save", "upsert failed", MapError(err))
	}
	return nil
}

// Load returns the record for region.
func (s *ProgressStore) Load(ctx context.Context, region string) (task.Progress, error) {
	query := `
		SELECT region, center_x, center_z, radius, position, state, updated_at
		FROM generation_progress
		WHERE region = $1
	`

	p, err := scanProgress(s.db.QueryRowContext(ctx, query, region))
	if err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return task.Progress{}, fmt.Errorf("%w: %s", store.ErrProgressNotFound, region)
		}
		return task.Progress{}, store.NewStoreError("progress", "load", "query failed", mapped)
	}
	return p, nil
}

// Delete removes the record for region. Missing records are ignored.
func (s *ProgressStore) Delete(ctx context.Context, region string) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, `DELETE FROM generation_progress WHERE region = $1`, region)
	if err != nil {
		log.Error("failed to delete progress", "region", region, "error", err)
		return store.NewStoreError("progress", "delete", "delete failed", MapError(err))
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		log.Debug("no progress record to delete", "region", region)
	}
	return nil
}

// LoadAll returns every record ordered by region.
func (s *ProgressStore) LoadAll(ctx context.Context) ([]task.Progress, error) {
	query := `
		SELECT region, center_x, center_z, radius, position, state, updated_at
		FROM generation_progress
		ORDER BY region
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.NewStoreError("progress", "load_all", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []task.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, store.NewStoreError("progress", "load_all", "scan failed", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("progress", "load_all", "row iteration failed", MapError(err))
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (task.Progress, error) {
	var (
		p     task.Progress
		state string
	)
	if err := row.Scan(&p.Region, &p.CenterX, &p.CenterZ, &p.Radius, &p.Offset, &state, &p.UpdatedAt); err != nil {
		return task.Progress{}, err
	}
	p.State = task.State(state)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
