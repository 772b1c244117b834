package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists templates in PostgreSQL with JSONB element columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			elements JSONB NOT NULL DEFAULT '[]',
			canvas_width INTEGER NOT NULL,
			canvas_height INTEGER NOT NULL,
			background JSONB NOT NULL DEFAULT '{}',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_org ON templates(organization_id, updated_at DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

const pgColumns = `id, organization_id, name, elements, canvas_width, canvas_height, background, thumbnail_url, created_at, updated_at`

func scanPostgres(row pgx.Row) (*Template, error) {
	var (
		t                    Template
		elements, background []byte
	)
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &elements, &t.CanvasWidth, &t.CanvasHeight,
		&background, &t.ThumbnailURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeColumns(&t, elements, background); err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	return &t, nil
}

func (s *PostgresStore) List(ctx context.Context, orgID string) ([]*Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM templates WHERE organization_id = $1 ORDER BY updated_at DESC, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]*Template, 0)
	for rows.Next() {
		t, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Template, error) {
	t, err := scanPostgres(s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM templates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t *Template) error {
	elements, background, err := encodeColumns(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO templates (`+pgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OrganizationID, t.Name, elements, t.CanvasWidth, t.CanvasHeight,
		background, t.ThumbnailURL, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *Template) error {
	elements, background, err := encodeColumns(t)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE templates SET name = $1, elements = $2, canvas_width = $3, canvas_height = $4,
			background = $5, thumbnail_url = $6, updated_at = $7 WHERE id = $8`,
		t.Name, elements, t.CanvasWidth, t.CanvasHeight, background, t.ThumbnailURL, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
