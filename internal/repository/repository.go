// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-social/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult stores one engine evaluation.
func (r *SQLRepository) SaveResult(ctx context.Context, res *domain.StoredResult) error {
	if res == nil || res.ID == "" || res.Engine == "" || res.AccountID == "" {
		return fmt.Errorf("%w: id, engine and account_id are required", ErrInvalidInput)
	}

	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO score_results (id, engine, account_id, score, grade, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.ID, res.Engine, res.AccountID, res.Score, res.Grade,
		string(res.Payload), createdAt,
	)
	return err
}

// LatestResult retrieves the most recent evaluation of an account by an engine.
func (r *SQLRepository) LatestResult(ctx context.Context, engine, accountID string) (*domain.StoredResult, error) {
	if engine == "" || accountID == "" {
		return nil, fmt.Errorf("%w: engine and account_id are required", ErrInvalidInput)
	}

	query := `
		SELECT id, engine, account_id, score, grade, payload, created_at
		FROM score_results
		WHERE engine = ? AND account_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var res domain.StoredResult
	var payload string

	err := r.db.QueryRowContext(ctx, r.rebind(query), engine, accountID).Scan(
		&res.ID, &res.Engine, &res.AccountID, &res.Score, &res.Grade,
		&payload, &res.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res.Payload = []byte(payload)
	return &res, nil
}

// ResultHistory retrieves recent evaluations of an account, newest first.
func (r *SQLRepository) ResultHistory(ctx context.Context, engine, accountID string, limit int) ([]*domain.StoredResult, error) {
	if engine == "" || accountID == "" {
		return nil, fmt.Errorf("%w: engine and account_id are required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, engine, account_id, score, grade, payload, created_at
		FROM score_results
		WHERE engine = ? AND account_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), engine, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.StoredResult
	for rows.Next() {
		var res domain.StoredResult
		var payload string

		if err := rows.Scan(
			&res.ID, &res.Engine, &res.AccountID, &res.Score, &res.Grade,
			&payload, &res.CreatedAt,
		); err != nil {
			return nil, err
		}

		res.Payload = []byte(payload)
		results = append(results, &res)
	}

	return results, rows.Err()
}

// SaveGraphSnapshot stores a named graph, replacing any previous version.
func (r *SQLRepository) SaveGraphSnapshot(ctx context.Context, id string, g *domain.Graph) error {
	if id == "" || g == nil {
		return fmt.Errorf("%w: id and graph are required", ErrInvalidInput)
	}

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	query := `
		INSERT INTO graph_snapshots (id, nodes, edges, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nodes = excluded.nodes,
			edges = excluded.edges,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		id, len(g.Nodes), len(g.Edges), string(payload), time.Now().UTC(),
	)
	return err
}

// GetGraphSnapshot retrieves a named graph.
func (r *SQLRepository) GetGraphSnapshot(ctx context.Context, id string) (*domain.Graph, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	query := `SELECT payload FROM graph_snapshots WHERE id = ?`

	var payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var g domain.Graph
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph snapshot %s: %w", id, err)
	}
	return &g, nil
}

// SaveConfigRevision appends one entry to the config audit trail.
func (r *SQLRepository) SaveConfigRevision(ctx context.Context, rev *domain.ConfigRevision) error {
	if rev == nil || rev.Engine == "" || rev.Revision <= 0 {
		return fmt.Errorf("%w: engine and positive revision are required", ErrInvalidInput)
	}

	createdAt := rev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO config_revisions (engine, revision, version, config, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rev.Engine, rev.Revision, rev.Version, string(rev.Config), createdAt,
	)
	return err
}

// ListConfigRevisions retrieves the audit trail for an engine, newest first.
func (r *SQLRepository) ListConfigRevisions(ctx context.Context, engine string, limit int) ([]*domain.ConfigRevision, error) {
	if engine == "" {
		return nil, fmt.Errorf("%w: engine is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT engine, revision, version, config, created_at
		FROM config_revisions
		WHERE engine = ?
		ORDER BY revision DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), engine, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []*domain.ConfigRevision
	for rows.Next() {
		var rev domain.ConfigRevision
		var config string

		if err := rows.Scan(&rev.Engine, &rev.Revision, &rev.Version, &config, &rev.CreatedAt); err != nil {
			return nil, err
		}

		rev.Config = []byte(config)
		revisions = append(revisions, &rev)
	}

	return revisions, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
