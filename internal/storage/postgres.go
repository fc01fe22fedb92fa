package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfsight/querydeck/internal/models"
)

// PostgresBrandRepo implements BrandRepo using PostgreSQL.
type PostgresBrandRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresBrandRepo(pool *pgxpool.Pool) *PostgresBrandRepo {
	return &PostgresBrandRepo{pool: pool}
}

func (r *PostgresBrandRepo) ListAll(ctx context.Context) ([]*models.Brand, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, asins, created_at, updated_at
		FROM brands ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []*models.Brand
	for rows.Next() {
		var b models.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.ASINs, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		brands = append(brands, &b)
	}
	return brands, rows.Err()
}

func (r *PostgresBrandRepo) GetByID(ctx context.Context, id string) (*models.Brand, error) {
	var b models.Brand
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, asins, created_at, updated_at
		FROM brands WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.ASINs, &b.CreatedAt, &b.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}

func (r *PostgresBrandRepo) Upsert(ctx context.Context, b *models.Brand) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO brands (id, name, asins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			asins = EXCLUDED.asins,
			updated_at = EXCLUDED.updated_at
	`, b.ID, b.Name, b.ASINs, b.CreatedAt, b.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert brand: %w", err)
	}
	return nil
}

func (r *PostgresBrandRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete brand: %w", err)
	}
	return nil
}

// PostgresViewRepo implements ViewRepo using PostgreSQL. Filter and table
// state are stored as JSONB.
type PostgresViewRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresViewRepo(pool *pgxpool.Pool) *PostgresViewRepo {
	return &PostgresViewRepo{pool: pool}
}

func (r *PostgresViewRepo) ListAll(ctx context.Context) ([]*models.SavedView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, filter, table_state, created_at, updated_at
		FROM saved_views ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var views []*models.SavedView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *PostgresViewRepo) GetByID(ctx context.Context, id string) (*models.SavedView, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, filter, table_state, created_at, updated_at
		FROM saved_views WHERE id = $1
	`, id)

	v, err := scanView(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}
	return v, nil
}

func (r *PostgresViewRepo) Upsert(ctx context.Context, v *models.SavedView) error {
	filterJSON, err := json.Marshal(v.Filter)
	if err != nil {
		return fmt.Errorf("failed to marshal view filter: %w", err)
	}
	tableJSON, err := json.Marshal(v.Table)
	if err != nil {
		return fmt.Errorf("failed to marshal table state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO saved_views (id, name, filter, table_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			filter = EXCLUDED.filter,
			table_state = EXCLUDED.table_state,
			updated_at = EXCLUDED.updated_at
	`, v.ID, v.Name, filterJSON, tableJSON, v.CreatedAt, v.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert view: %w", err)
	}
	return nil
}

func (r *PostgresViewRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM saved_views WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	return nil
}

func scanView(row pgx.Row) (*models.SavedView, error) {
	var v models.SavedView
	var filterJSON, tableJSON []byte

	if err := row.Scan(&v.ID, &v.Name, &filterJSON, &tableJSON, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &v.Filter); err != nil {
			return nil, fmt.Errorf("failed to parse view filter: %w", err)
		}
	}
	if len(tableJSON) > 0 {
		if err := json.Unmarshal(tableJSON, &v.Table); err != nil {
			return nil, fmt.Errorf("failed to parse table state: %w", err)
		}
	}
	return &v, nil
}

// PostgresAnomalyRepo implements AnomalyRepo using PostgreSQL.
type PostgresAnomalyRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAnomalyRepo(pool *pgxpool.Pool) *PostgresAnomalyRepo {
	return &PostgresAnomalyRepo{pool: pool}
}

func (r *PostgresAnomalyRepo) List(ctx context.Context, since time.Time) ([]*models.Anomaly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identifier, marketplace, metric, current, previous, percent_change, severity, detected_at
		FROM anomalies
		WHERE detected_at >= $1
		ORDER BY detected_at DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []*models.Anomaly
	for rows.Next() {
		var a models.Anomaly
		var pct *float64
		if err := rows.Scan(&a.ID, &a.Identifier, &a.Marketplace, &a.Metric, &a.Current, &a.Previous, &pct, &a.Severity, &a.DetectedAt); err != nil {
			return nil, err
		}
		// NULL percent_change marks an unbounded increase from zero.
		if pct == nil {
			a.Percent = models.Change(math.Inf(1))
		} else {
			a.Percent = models.Change(*pct)
		}
		anomalies = append(anomalies, &a)
	}
	return anomalies, rows.Err()
}

func (r *PostgresAnomalyRepo) Save(ctx context.Context, a *models.Anomaly) error {
	var pct *float64
	if !a.Percent.IsUnbounded() {
		f := float64(a.Percent)
		pct = &f
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO anomalies (id, identifier, marketplace, metric, current, previous, percent_change, severity, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Identifier, a.Marketplace, a.Metric, a.Current, a.Previous, pct, a.Severity, a.DetectedAt)

	if err != nil {
		return fmt.Errorf("failed to save anomaly: %w", err)
	}
	return nil
}
