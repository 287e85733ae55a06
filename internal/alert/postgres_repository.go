package alert

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safetrail/safetrail/internal/detection"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL alert repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const alertColumns = `
	id, type, tourist_id, severity, lat, lng,
	description, confidence, detected_at, status, updated_at
`

// Get retrieves an alert by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	return r.scanAlert(r.pool.QueryRow(ctx, query, id))
}

// List retrieves alerts, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*Alert, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE ($1 = '' OR tourist_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY detected_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, opts.TouristID, string(opts.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Create stores a new alert.
func (r *PostgresRepository) Create(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, type, tourist_id, severity, lat, lng,
			description, confidence, detected_at, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Type,
		a.TouristID,
		a.Severity,
		a.Lat,
		a.Lng,
		a.Description,
		a.Confidence,
		a.DetectedAt,
		a.Status,
		a.UpdatedAt,
	)
	return err
}

// UpdateStatus persists a status change.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alerts SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, updatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// LatestOpen returns the most recent non-resolved alert for the tourist
// and type.
func (r *PostgresRepository) LatestOpen(ctx context.Context, touristID string, typ detection.Type) (*Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE tourist_id = $1 AND type = $2 AND status != 'resolved'
		ORDER BY detected_at DESC
		LIMIT 1
	`
	return r.scanAlert(r.pool.QueryRow(ctx, query, touristID, typ))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID,
		&a.Type,
		&a.TouristID,
		&a.Severity,
		&a.Lat,
		&a.Lng,
		&a.Description,
		&a.Confidence,
		&a.DetectedAt,
		&a.Status,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
