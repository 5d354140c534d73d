package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements that create the analysis database.
// Timestamps are stored as milliseconds since the Unix epoch.
const Schema = `
-- Component tree
CREATE TABLE IF NOT EXISTS components (
    uuid TEXT PRIMARY KEY,
    kee TEXT NOT NULL,
    name TEXT,
    scope TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT 1,
    parent_uuid TEXT,
    root_uuid TEXT NOT NULL,
    main_branch_project_uuid TEXT,
    copy_component_uuid TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    uuid TEXT PRIMARY KEY,
    kee TEXT NOT NULL UNIQUE,
    qualifier TEXT NOT NULL,
    name TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project_branches (
    uuid TEXT PRIMARY KEY REFERENCES components(uuid),
    project_uuid TEXT NOT NULL,
    kee TEXT NOT NULL,
    branch_type TEXT NOT NULL,
    exclude_from_purge BOOLEAN NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

-- Analyses
CREATE TABLE IF NOT EXISTS snapshots (
    uuid TEXT PRIMARY KEY,
    component_uuid TEXT NOT NULL REFERENCES components(uuid),
    status TEXT NOT NULL,
    islast BOOLEAN NOT NULL DEFAULT 0,
    version TEXT,
    purge_status INTEGER,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS new_code_periods (
    uuid TEXT PRIMARY KEY,
    project_uuid TEXT NOT NULL,
    branch_uuid TEXT,
    type TEXT NOT NULL,
    value TEXT
);

CREATE TABLE IF NOT EXISTS events (
    uuid TEXT PRIMARY KEY,
    analysis_uuid TEXT NOT NULL REFERENCES snapshots(uuid),
    component_uuid TEXT NOT NULL,
    name TEXT,
    category TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_component_changes (
    uuid TEXT PRIMARY KEY,
    event_uuid TEXT NOT NULL REFERENCES events(uuid),
    event_analysis_uuid TEXT NOT NULL,
    event_component_uuid TEXT NOT NULL,
    change_category TEXT NOT NULL,
    component_uuid TEXT NOT NULL,
    component_key TEXT NOT NULL
);

-- Measures
CREATE TABLE IF NOT EXISTS metrics (
    uuid TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    delete_historical_data BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS project_measures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    analysis_uuid TEXT NOT NULL REFERENCES snapshots(uuid),
    component_uuid TEXT NOT NULL,
    metric_uuid TEXT NOT NULL,
    value REAL
);

CREATE TABLE IF NOT EXISTS live_measures (
    uuid TEXT PRIMARY KEY,
    project_uuid TEXT NOT NULL,
    component_uuid TEXT NOT NULL,
    metric_uuid TEXT NOT NULL,
    value REAL
);

CREATE TABLE IF NOT EXISTS manual_measures (
    uuid TEXT PRIMARY KEY,
    component_uuid TEXT NOT NULL,
    metric_uuid TEXT NOT NULL,
    value REAL
);

CREATE TABLE IF NOT EXISTS duplications_index (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    analysis_uuid TEXT NOT NULL REFERENCES snapshots(uuid),
    component_uuid TEXT NOT NULL,
    hash TEXT NOT NULL
);

-- Issues and sources
CREATE TABLE IF NOT EXISTS issues (
    kee TEXT PRIMARY KEY,
    component_uuid TEXT NOT NULL,
    project_uuid TEXT NOT NULL,
    rule_uuid TEXT,
    status TEXT NOT NULL,
    resolution TEXT,
    issue_close_date INTEGER,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issue_changes (
    kee TEXT PRIMARY KEY,
    issue_key TEXT NOT NULL REFERENCES issues(kee),
    project_uuid TEXT NOT NULL,
    change_type TEXT,
    change_data TEXT
);

CREATE TABLE IF NOT EXISTS file_sources (
    uuid TEXT PRIMARY KEY,
    project_uuid TEXT NOT NULL,
    file_uuid TEXT NOT NULL,
    data_hash TEXT
);

-- Compute engine
CREATE TABLE IF NOT EXISTS ce_queue (
    uuid TEXT PRIMARY KEY,
    task_type TEXT NOT NULL,
    component_uuid TEXT,
    main_component_uuid TEXT,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ce_activity (
    uuid TEXT PRIMARY KEY,
    task_type TEXT NOT NULL,
    component_uuid TEXT,
    main_component_uuid TEXT,
    status TEXT NOT NULL,
    is_last BOOLEAN NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ce_task_input (
    task_uuid TEXT PRIMARY KEY,
    input_data BLOB,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ce_scanner_context (
    task_uuid TEXT PRIMARY KEY,
    context_data BLOB,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ce_task_characteristics (
    uuid TEXT PRIMARY KEY,
    task_uuid TEXT NOT NULL,
    kee TEXT NOT NULL,
    text_value TEXT
);

CREATE TABLE IF NOT EXISTS ce_task_message (
    uuid TEXT PRIMARY KEY,
    task_uuid TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Integrations
CREATE TABLE IF NOT EXISTS webhooks (
    uuid TEXT PRIMARY KEY,
    project_uuid TEXT,
    name TEXT NOT NULL,
    url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
    uuid TEXT PRIMARY KEY,
    webhook_uuid TEXT NOT NULL REFERENCES webhooks(uuid),
    project_uuid TEXT NOT NULL,
    ce_task_uuid TEXT,
    analysis_uuid TEXT,
    success BOOLEAN NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project_alm_bindings (
    uuid TEXT PRIMARY KEY,
    alm_id TEXT NOT NULL,
    repo_id TEXT NOT NULL,
    project_uuid TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS project_mappings (
    uuid TEXT PRIMARY KEY,
    key_type TEXT NOT NULL,
    kee TEXT NOT NULL,
    project_uuid TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_links (
    uuid TEXT PRIMARY KEY,
    project_uuid TEXT NOT NULL,
    name TEXT,
    href TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS properties (
    uuid TEXT PRIMARY KEY,
    prop_key TEXT NOT NULL,
    component_uuid TEXT,
    text_value TEXT
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_components_root ON components(root_uuid);
CREATE INDEX IF NOT EXISTS idx_components_parent ON components(parent_uuid);
CREATE INDEX IF NOT EXISTS idx_branches_project ON project_branches(project_uuid);
CREATE INDEX IF NOT EXISTS idx_snapshots_component ON snapshots(component_uuid);
CREATE INDEX IF NOT EXISTS idx_events_analysis ON events(analysis_uuid);
CREATE INDEX IF NOT EXISTS idx_ecc_analysis ON event_component_changes(event_analysis_uuid);
CREATE INDEX IF NOT EXISTS idx_measures_analysis ON project_measures(analysis_uuid);
CREATE INDEX IF NOT EXISTS idx_live_measures_component ON live_measures(component_uuid);
CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_uuid);
CREATE INDEX IF NOT EXISTS idx_issues_component ON issues(component_uuid);
CREATE INDEX IF NOT EXISTS idx_issue_changes_issue ON issue_changes(issue_key);
CREATE INDEX IF NOT EXISTS idx_file_sources_file ON file_sources(file_uuid);
CREATE INDEX IF NOT EXISTS idx_ce_activity_created ON ce_activity(created_at);
CREATE INDEX IF NOT EXISTS idx_ce_scanner_context_created ON ce_scanner_context(created_at);
`

// InsertSchemaVersion records the schema version in the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
