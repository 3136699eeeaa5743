package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaScoreResults = `
CREATE TABLE IF NOT EXISTS score_results (
    id TEXT PRIMARY KEY,
    engine TEXT NOT NULL,
    account_id TEXT NOT NULL,
    score REAL NOT NULL,
    grade TEXT,
    payload TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_score_results_account ON score_results(engine, account_id, created_at);
`

const schemaGraphSnapshots = `
CREATE TABLE IF NOT EXISTS graph_snapshots (
    id TEXT PRIMARY KEY,
    nodes INTEGER NOT NULL,
    edges INTEGER NOT NULL,
    payload TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaConfigRevisions = `
CREATE TABLE IF NOT EXISTS config_revisions (
    engine TEXT NOT NULL,
    revision INTEGER NOT NULL,
    version TEXT NOT NULL,
    config TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (engine, revision)
);

CREATE INDEX IF NOT EXISTS idx_config_revisions_engine ON config_revisions(engine, revision);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaScoreResults,
		schemaGraphSnapshots,
		schemaConfigRevisions,
	}
}
