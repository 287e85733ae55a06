package geofence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL zone repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const zoneColumns = `
	id, name, center_lat, center_lng, radius_meters,
	safety_level, zone_type, description, risk_factors, last_updated
`

// Get retrieves a zone by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM geofence_zones WHERE id = $1`

	var zone Zone
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&zone.ID,
		&zone.Name,
		&zone.CenterLat,
		&zone.CenterLng,
		&zone.RadiusMeters,
		&zone.SafetyLevel,
		&zone.ZoneType,
		&zone.Description,
		&zone.RiskFactors,
		&zone.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}

	return &zone, nil
}

// List retrieves all zones.
func (r *PostgresRepository) List(ctx context.Context) ([]*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM geofence_zones ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []*Zone
	for rows.Next() {
		var zone Zone
		if err := rows.Scan(
			&zone.ID,
			&zone.Name,
			&zone.CenterLat,
			&zone.CenterLng,
			&zone.RadiusMeters,
			&zone.SafetyLevel,
			&zone.ZoneType,
			&zone.Description,
			&zone.RiskFactors,
			&zone.LastUpdated,
		); err != nil {
			return nil, err
		}
		zones = append(zones, &zone)
	}

	return zones, rows.Err()
}

// Upsert creates or replaces a zone.
func (r *PostgresRepository) Upsert(ctx context.Context, zone *Zone) error {
	query := `
		INSERT INTO geofence_zones (
			id, name, center_lat, center_lng, radius_meters,
			safety_level, zone_type, description, risk_factors, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			center_lat = EXCLUDED.center_lat,
			center_lng = EXCLUDED.center_lng,
			radius_meters = EXCLUDED.radius_meters,
			safety_level = EXCLUDED.safety_level,
			zone_type = EXCLUDED.zone_type,
			description = EXCLUDED.description,
			risk_factors = EXCLUDED.risk_factors,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.pool.Exec(ctx, query,
		zone.ID,
		zone.Name,
		zone.CenterLat,
		zone.CenterLng,
		zone.RadiusMeters,
		zone.SafetyLevel,
		zone.ZoneType,
		zone.Description,
		zone.RiskFactors,
		zone.LastUpdated,
	)
	return err
}

// Remove deletes a zone by ID.
func (r *PostgresRepository) Remove(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM geofence_zones WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
