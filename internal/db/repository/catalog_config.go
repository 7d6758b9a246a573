package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"icegate/internal/domain"
)

// Compile-time check.
var _ domain.CatalogConfigRepository = (*CatalogConfigRepo)(nil)

const catalogConfigColumns = `id, name, properties, comment, created_at, updated_at`

// CatalogConfigRepo implements CatalogConfigRepository on the catalog_configs table.
type CatalogConfigRepo struct {
	db *sql.DB
}

// NewCatalogConfigRepo creates a new CatalogConfigRepo.
func NewCatalogConfigRepo(db *sql.DB) *CatalogConfigRepo {
	return &CatalogConfigRepo{db: db}
}

// Create inserts a new catalog definition.
func (r *CatalogConfigRepo) Create(ctx context.Context, cfg *domain.CatalogConfig) (*domain.CatalogConfig, error) {
	props, err := encodeProperties(cfg.Properties)
	if err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO catalog_configs (id, name, properties, comment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+catalogConfigColumns,
		domain.NewID(), cfg.Name, props, nullString(cfg.Comment), now, now)
	out, err := scanCatalogConfig(row)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return nil, domain.ErrConflict("catalog %q already exists", cfg.Name)
		}
		return nil, err
	}
	return out, nil
}

// Update replaces the properties of a catalog definition. A nil comment
// leaves the stored comment unchanged.
func (r *CatalogConfigRepo) Update(ctx context.Context, name string, props map[string]string, comment *string) (*domain.CatalogConfig, error) {
	encoded, err := encodeProperties(props)
	if err != nil {
		return nil, err
	}
	var c sql.NullString
	if comment != nil {
		c = nullString(*comment)
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE catalog_configs
		 SET properties = ?, comment = CASE WHEN ? THEN ? ELSE comment END, updated_at = ?
		 WHERE name = ?
		 RETURNING `+catalogConfigColumns,
		encoded, comment != nil, c, formatTime(time.Now()), name)
	out, err := scanCatalogConfig(row)
	if err != nil {
		return nil, notFoundAs(err, name)
	}
	return out, nil
}

// GetByName returns the catalog definition registered as name.
func (r *CatalogConfigRepo) GetByName(ctx context.Context, name string) (*domain.CatalogConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+catalogConfigColumns+` FROM catalog_configs WHERE name = ?`, name)
	out, err := scanCatalogConfig(row)
	if err != nil {
		return nil, notFoundAs(err, name)
	}
	return out, nil
}

// List returns all catalog definitions ordered by name.
func (r *CatalogConfigRepo) List(ctx context.Context) ([]domain.CatalogConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+catalogConfigColumns+` FROM catalog_configs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.CatalogConfig
	for rows.Next() {
		cfg, err := scanCatalogConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// Delete removes the catalog definition registered as name.
func (r *CatalogConfigRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM catalog_configs WHERE name = ?`, name)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("catalog %q not found", name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogConfig(row rowScanner) (*domain.CatalogConfig, error) {
	var (
		cfg                  domain.CatalogConfig
		props                string
		comment              sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &props, &comment, &createdAt, &updatedAt); err != nil {
		return nil, mapDBError(err)
	}
	if err := json.Unmarshal([]byte(props), &cfg.Properties); err != nil {
		return nil, fmt.Errorf("decode properties of catalog %q: %w", cfg.Name, err)
	}
	if cfg.Properties == nil {
		cfg.Properties = map[string]string{}
	}
	cfg.Comment = comment.String
	cfg.CreatedAt = parseTime(createdAt)
	cfg.UpdatedAt = parseTime(updatedAt)
	return &cfg, nil
}

func encodeProperties(props map[string]string) (string, error) {
	if props == nil {
		props = map[string]string{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode catalog properties: %w", err)
	}
	return string(b), nil
}

func notFoundAs(err error, name string) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return domain.ErrNotFound("catalog %q not found", name)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
