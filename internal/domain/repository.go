// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// StoredResult is a persisted evaluation of one account by one engine.
type StoredResult struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	AccountID string    `json:"account_id"`
	Score     float64   `json:"score"` // unified score on its 0-1000 scale, sub-scores on [0,1]
	Grade     string    `json:"grade,omitempty"`
	Payload   []byte    `json:"payload"` // full result JSON
	CreatedAt time.Time `json:"created_at"`
}

// ConfigRevision is one entry of the config audit trail.
type ConfigRevision struct {
	Engine    string    `json:"engine"`
	Revision  int       `json:"revision"`
	Version   string    `json:"version"`
	Config    []byte    `json:"config"` // full parameter set JSON
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence interface: score results out, named graph
// snapshots in, config revisions as an audit trail. Engines never touch it
// during computation; only the HTTP/worker layers do.
type Repository interface {
	// Score results
	SaveResult(ctx context.Context, res *StoredResult) error
	LatestResult(ctx context.Context, engine, accountID string) (*StoredResult, error)
	ResultHistory(ctx context.Context, engine, accountID string, limit int) ([]*StoredResult, error)

	// Graph snapshots
	SaveGraphSnapshot(ctx context.Context, id string, g *Graph) error
	GetGraphSnapshot(ctx context.Context, id string) (*Graph, error)

	// Config audit trail
	SaveConfigRevision(ctx context.Context, rev *ConfigRevision) error
	ListConfigRevisions(ctx context.Context, engine string, limit int) ([]*ConfigRevision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
