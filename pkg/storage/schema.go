package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the monitor tables. Timestamps are stored as Unix
// nanoseconds and JSON payloads as TEXT so both SQLite drivers read them back
// identically.
const Schema = `
-- Catalog tables (externally owned, read-only to the engine)
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    policy_type TEXT NOT NULL,
    monitoring_enabled BOOLEAN NOT NULL DEFAULT 0,
    current_document_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS policy_versions (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS compliance_checks (
    id TEXT PRIMARY KEY,
    check_name TEXT NOT NULL,
    check_type TEXT NOT NULL,
    check_criteria TEXT,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    policy_type TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS subscriptions (
    policy_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (policy_id, user_id)
);

-- History tables (written by the engine)
CREATE TABLE IF NOT EXISTS policy_changes (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL,
    version_id TEXT NOT NULL,
    change_type TEXT NOT NULL,
    description TEXT NOT NULL,
    impact_level TEXT NOT NULL,
    source TEXT NOT NULL,
    detected_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS check_results (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL DEFAULT '',
    check_id TEXT NOT NULL,
    policy_id TEXT NOT NULL,
    status TEXT NOT NULL,
    details TEXT NOT NULL,
    executed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS violations (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL DEFAULT '',
    policy_id TEXT NOT NULL,
    check_id TEXT NOT NULL,
    check_result_id TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    severity TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    type TEXT NOT NULL,
    related_type TEXT NOT NULL,
    related_id TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_policy_created ON policy_versions(policy_id, created_at);
CREATE INDEX IF NOT EXISTS idx_checks_policy_type ON compliance_checks(policy_type, is_active);
CREATE INDEX IF NOT EXISTS idx_changes_policy ON policy_changes(policy_id, detected_at);
CREATE INDEX IF NOT EXISTS idx_results_policy ON check_results(policy_id, executed_at);
CREATE INDEX IF NOT EXISTS idx_results_executed ON check_results(executed_at);
CREATE INDEX IF NOT EXISTS idx_violations_policy ON violations(policy_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
