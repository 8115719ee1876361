package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
-- Decision records table
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    correlation_id TEXT,

    -- Timestamps
    evaluated_at TIMESTAMP NOT NULL,
    recorded_at TIMESTAMP NOT NULL,

    -- Request
    gateway_id TEXT NOT NULL,
    action_id TEXT NOT NULL,
    resource TEXT,
    principal_tags TEXT,
    input TEXT,

    -- Decision
    decision TEXT NOT NULL,
    allowed BOOLEAN NOT NULL,
    blocked BOOLEAN NOT NULL,
    mode TEXT NOT NULL,
    matched_permit_ids TEXT,
    matched_forbid_ids TEXT,
    policy_errors TEXT,

    -- Timing
    candidate_count INTEGER,
    evaluation_time_us INTEGER
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_decisions_evaluated_at ON decisions(evaluated_at);
CREATE INDEX IF NOT EXISTS idx_decisions_gateway_id ON decisions(gateway_id);
CREATE INDEX IF NOT EXISTS idx_decisions_action_id ON decisions(action_id);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_correlation_id ON decisions(correlation_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
