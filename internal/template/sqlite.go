package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists templates in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time, otherwise SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			elements TEXT NOT NULL DEFAULT '[]',
			canvas_width INTEGER NOT NULL,
			canvas_height INTEGER NOT NULL,
			background TEXT NOT NULL DEFAULT '{}',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_org ON templates(organization_id, updated_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

const sqliteColumns = `id, organization_id, name, elements, canvas_width, canvas_height, background, thumbnail_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Template, error) {
	var (
		t                    Template
		elements, background string
		created, updated     string
	)
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &elements, &t.CanvasWidth, &t.CanvasHeight,
		&background, &t.ThumbnailURL, &created, &updated); err != nil {
		return nil, err
	}
	if err := decodeColumns(&t, []byte(elements), []byte(background)); err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("template %s: created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("template %s: updated_at: %w", t.ID, err)
	}
	return &t, nil
}

func (s *SQLiteStore) List(ctx context.Context, orgID string) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM templates WHERE organization_id = ? ORDER BY updated_at DESC, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]*Template, 0)
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanSQLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Create(ctx context.Context, t *Template) error {
	elements, background, err := encodeColumns(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, t.Name, string(elements), t.CanvasWidth, t.CanvasHeight,
		string(background), t.ThumbnailURL, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, t *Template) error {
	elements, background, err := encodeColumns(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, elements = ?, canvas_width = ?, canvas_height = ?,
			background = ?, thumbnail_url = ?, updated_at = ? WHERE id = ?`,
		t.Name, string(elements), t.CanvasWidth, t.CanvasHeight,
		string(background), t.ThumbnailURL, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// formatTime stores UTC with a fixed-width fraction so TEXT ordering matches time ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
