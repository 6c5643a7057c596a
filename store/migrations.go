package store

import "fmt"

// migration is one forward-only schema change, applied inside its own
// transaction with user_version advanced to its index plus one.
type migration struct {
	name string
	sql  string
}

// migrations runs in order, one per schema version, mirroring
// db/migrations.rs's include_str! list keyed off PRAGMA user_version.
var migrations = []migration{
	{
		name: "2024-01-01T0000Z_init",
		sql: `
CREATE TABLE models (
	id   TEXT PRIMARY KEY,
	spec TEXT NOT NULL
);

CREATE TABLE sys_props (
	id    TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}

// migrate runs every migration the database hasn't yet applied, tracked
// via PRAGMA user_version, advancing it by one per migration.
func (s *Store) migrate() error {
	var userVersion int
	if err := s.db.Get(&userVersion, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}

	for i := userVersion; i < len(migrations); i++ {
		m := migrations[i]
		txn, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", m.name, err)
		}
		if _, err := txn.Exec(m.sql); err != nil {
			txn.Rollback()
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		// PRAGMA doesn't accept bound parameters.
		if _, err := txn.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			txn.Rollback()
			return fmt.Errorf("advancing user_version after %s: %w", m.name, err)
		}
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", m.name, err)
		}
	}
	return nil
}
