package storage

// ---------------------------------------------------------------------------
// Schema version
// ---------------------------------------------------------------------------

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS services (
    name        TEXT PRIMARY KEY,
    group_path  TEXT NOT NULL DEFAULT '',
    position    INTEGER NOT NULL,
    document    TEXT NOT NULL,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_services_group    ON services(group_path);
CREATE INDEX IF NOT EXISTS idx_services_position ON services(position);
`

const schemaV2 = `
CREATE TABLE IF NOT EXISTS imports (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    mode        TEXT NOT NULL,
    records     INTEGER NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_imports_created ON imports(created_at DESC);
`

// GetSchema returns the full SQL schema as a string.
func GetSchema() string {
	return schemaV1 + schemaV2
}

// ---------------------------------------------------------------------------
// Migration support
// ---------------------------------------------------------------------------

// Migration describes a single schema migration. Migrations are ordered by
// Version and are idempotent.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of all schema migrations. Any whose
// Version is already recorded in schema_migrations is skipped.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: services",
		SQL:         schemaV1,
	},
	{
		Version:     2,
		Description: "Add imports audit table",
		SQL:         schemaV2,
	},
}
