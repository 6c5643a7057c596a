// Package store is the domain server's local persistence layer:
// instance models and small system properties, backed by sqlite
// through sqlx. Grounded on
// original_source/domain/audiocloud-domain-server/src/db/{mod,models,sys_props,migrations}.rs,
// re-expressed with a real SQL schema and a monotonic user_version
// migration counter (the Rust source's sqlx::migrate! call is
// commented out there; this is the "complete implementation"
// supplement named in SPEC_FULL.md).
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store owns the sqlite connection used for models and system
// properties. Grounded on the Rust Db struct (Arc<Datastore>) —
// re-expressed as a thin wrapper around *sqlx.DB, the teacher having
// no persistence layer of its own to draw the idiom from.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at dataSourceName
// and runs pending migrations. Use ":memory:" for an ephemeral store,
// matching the Rust source's DataOpts.memory() helper.
func Open(dataSourceName string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", dataSourceName, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
