package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resumeup/backend/internal/domain"
)

// SchemeRepository holds the plan catalog. Reads dominate; writes come only
// from the admin upsert. Rows are normalized into fully resolved
// domain.Scheme values on the way out: the legacy duration_days fallback and
// the 30-day default are applied exactly once, at this boundary.
type SchemeRepository struct {
	db *pgxpool.Pool
}

// NewSchemeRepository creates a new SchemeRepository.
func NewSchemeRepository(db *pgxpool.Pool) *SchemeRepository {
	return &SchemeRepository{db: db}
}

func scanScheme(row pgx.Row) (*domain.Scheme, error) {
	var s domain.Scheme
	var days, legacyDays *int
	err := row.Scan(&s.SchemeID, &s.Level, &s.Type, &s.Name, &days, &legacyDays, &s.Points, &s.Price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan scheme: %w", err)
	}
	s.DurationDays = domain.ResolveDurationDays(days, legacyDays)
	return &s, nil
}

// FindBySchemeID returns a normalized scheme by catalog id, or nil if absent.
func (r *SchemeRepository) FindBySchemeID(ctx context.Context, schemeID int) (*domain.Scheme, error) {
	query := `
		SELECT scheme_id, level, type, name, days, duration_days, points, price
		FROM schemes WHERE scheme_id = $1
	`
	return scanScheme(r.db.QueryRow(ctx, query, schemeID))
}

// FindByLevelAndType returns the scheme a member at the given tier holds,
// used to price upgrades against the current plan.
func (r *SchemeRepository) FindByLevelAndType(ctx context.Context, level int, typ string) (*domain.Scheme, error) {
	query := `
		SELECT scheme_id, level, type, name, days, duration_days, points, price
		FROM schemes WHERE level = $1 AND type = $2
		ORDER BY scheme_id LIMIT 1
	`
	return scanScheme(r.db.QueryRow(ctx, query, level, typ))
}

// Upsert creates or replaces a catalog row. New rows only ever write the
// current days column; the legacy duration_days column is cleared so the
// fallback chain cannot resurrect a stale value.
func (r *SchemeRepository) Upsert(ctx context.Context, req *domain.SchemeUpsertRequest) error {
	query := `
		INSERT INTO schemes (scheme_id, level, type, name, days, duration_days, points, price)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
		ON CONFLICT (scheme_id) DO UPDATE SET
			level = EXCLUDED.level,
			type = EXCLUDED.type,
			name = EXCLUDED.name,
			days = EXCLUDED.days,
			duration_days = NULL,
			points = EXCLUDED.points,
			price = EXCLUDED.price
	`
	_, err := r.db.Exec(ctx, query, req.SchemeID, req.Level, req.Type, req.Name, req.Days, req.Points, req.Price)
	if err != nil {
		return fmt.Errorf("failed to upsert scheme %d: %w", req.SchemeID, err)
	}
	return nil
}

// ListAll returns the catalog ordered by level.
func (r *SchemeRepository) ListAll(ctx context.Context) ([]domain.Scheme, error) {
	query := `
		SELECT scheme_id, level, type, name, days, duration_days, points, price
		FROM schemes ORDER BY level, scheme_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemes: %w", err)
	}
	defer rows.Close()

	var schemes []domain.Scheme
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, *s)
	}
	return schemes, nil
}
