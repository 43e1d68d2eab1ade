package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// sqlTable returns the SQLite table name for a record table. Identifiers use
// hyphens; SQL names use underscores.
func sqlTable(t types.Table) string {
	return strings.ReplaceAll(string(t), "-", "_")
}

// parentDDL returns the DDL for a parent record table. The full record lives
// in data; name and created_timestamp are lifted out for ordering.
func parentDDL(t types.Table) []string {
	name := sqlTable(t)
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_timestamp INTEGER NOT NULL,
    data TEXT NOT NULL
);`, name),
		fmt.Sprintf(`CREATE INDEX idx_%s_name ON %s(name);`, name, name),
	}
}

// childDDL returns the DDL for a child record table.
func childDDL(t types.Table) []string {
	name := sqlTable(t)
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    id TEXT PRIMARY KEY,
    parent_id TEXT NOT NULL,
    created_timestamp INTEGER NOT NULL,
    data TEXT NOT NULL
);`, name),
		fmt.Sprintf(`CREATE INDEX idx_%s_parent ON %s(parent_id, created_timestamp);`, name, name),
		fmt.Sprintf(`CREATE INDEX idx_%s_created ON %s(created_timestamp);`, name, name),
	}
}

// Auxiliary table DDL.
const (
	createSettings = `CREATE TABLE settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createLogs = `CREATE TABLE logs (
    auto_id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    data TEXT NOT NULL
);`

	// The session table holds at most one row: the in-progress workout.
	createSession = `CREATE TABLE session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    workout_id TEXT NOT NULL,
    workout_result_id TEXT NOT NULL,
    exercise_ids TEXT NOT NULL,
    started INTEGER NOT NULL
);`

	createSessionRecords = `CREATE TABLE session_records (
    id TEXT PRIMARY KEY,
    table_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    data TEXT NOT NULL
);`

	idxLogsTimestamp = `CREATE INDEX idx_logs_timestamp ON logs(timestamp);`
)

// schemaDDL returns every CREATE statement, record tables first.
func schemaDDL() []string {
	var ddl []string
	for _, t := range types.ParentTables {
		ddl = append(ddl, parentDDL(t)...)
	}
	for _, t := range types.ChildTables {
		ddl = append(ddl, childDDL(t)...)
	}
	return append(ddl,
		createSettings,
		createLogs,
		createSession,
		createSessionRecords,
		idxLogsTimestamp,
	)
}
