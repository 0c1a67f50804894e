// Package postgres provides a directory provider over a PostgreSQL
// "entries" table: one row per folder or file, linked by parent_id.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/retry"
	"github.com/foldergate/foldergate/internal/tree"
)

// maxDepth bounds the recursive subtree query.
const maxDepth = 256

// Provider reads the folder hierarchy from the entries table.
type Provider struct {
	db     *sql.DB
	policy retry.Policy
}

// New opens the database and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Provider, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Provider{db: db, policy: retry.DefaultPolicy()}, nil
}

// Migrate runs the *.up.sql files in migrationsDir in name order.
func (p *Provider) Migrate(ctx context.Context, migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := p.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// query runs a read with retries; connection-level failures are retried,
// anything the server rejected is not.
func (p *Provider) query(ctx context.Context, op string, q string, args ...any) (*sql.Rows, error) {
	rows, err := retry.DoValue(ctx, p.policy, func() (*sql.Rows, error) {
		rows, err := p.db.QueryContext(ctx, q, args...)
		if err != nil && isConnError(err) {
			return nil, retry.Transient(err)
		}
		return rows, err
	})
	metrics.RecordProviderOperation("postgres", op, err == nil)
	return rows, err
}

// ListTopLevel returns the folders with no parent, ordered by name.
func (p *Provider) ListTopLevel(ctx context.Context) ([]tree.Stub, error) {
	rows, err := p.query(ctx, "list_top_level",
		`SELECT id, name FROM entries WHERE parent_id IS NULL AND is_dir ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query top-level folders: %w", err)
	}
	defer rows.Close()

	var stubs []tree.Stub
	for rows.Next() {
		var s tree.Stub
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		stubs = append(stubs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return stubs, nil
}

// BuildSubtree loads every descendant of folderID in one recursive query.
// Rows arrive parents-first, so each folder exists before its children.
func (p *Provider) BuildSubtree(ctx context.Context, b *tree.Builder, folderID string) error {
	start := time.Now()
	rows, err := p.query(ctx, "build_subtree", `
		WITH RECURSIVE sub AS (
			SELECT id, parent_id, name, is_dir, 1 AS depth
			FROM entries WHERE parent_id = $1
			UNION ALL
			SELECT e.id, e.parent_id, e.name, e.is_dir, s.depth + 1
			FROM entries e JOIN sub s ON e.parent_id = s.id
			WHERE s.is_dir AND s.depth < $2
		)
		SELECT id, parent_id, name, is_dir FROM sub ORDER BY depth, name, id`,
		folderID, maxDepth)
	if err != nil {
		return fmt.Errorf("query subtree %s: %w", folderID, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, parentID, name string
		var isDir bool
		if err := rows.Scan(&id, &parentID, &name, &isDir); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if isDir {
			b.AddFolder(parentID, id, name)
		} else {
			b.AddFile(parentID, name)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	logging.WithContext(ctx).Debug("built subtree",
		logging.FolderID(folderID), zap.Int("entries", count), zap.Duration("duration", time.Since(start)))
	return nil
}

// Upload stores r as a file row under folderID and returns a
// postgres://entries/<id> reference.
func (p *Provider) Upload(ctx context.Context, folderID, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	var parent sql.NullString
	if folderID != "" {
		var isDir bool
		err := p.db.QueryRowContext(ctx, `SELECT is_dir FROM entries WHERE id = $1`, folderID).Scan(&isDir)
		if err == sql.ErrNoRows || (err == nil && !isDir) {
			return "", fmt.Errorf("folder %s not found", folderID)
		}
		if err != nil {
			return "", fmt.Errorf("lookup folder %s: %w", folderID, err)
		}
		parent = sql.NullString{String: folderID, Valid: true}
	}

	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO entries (id, parent_id, name, is_dir, content, size) VALUES ($1, $2, $3, FALSE, $4, $5)`,
		id, parent, name, data, int64(len(data)))
	metrics.RecordProviderOperation("postgres", "insert_file", err == nil)
	if err != nil {
		return "", fmt.Errorf("insert file %s: %w", name, err)
	}
	return "postgres://entries/" + id, nil
}

// Type returns "postgres".
func (p *Provider) Type() string { return "postgres" }

// Close closes the database connection.
func (p *Provider) Close() error {
	return p.db.Close()
}
