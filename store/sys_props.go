package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetSysProp reads a system property by id and decodes it into v,
// returning false if the id is unset. Grounded on db/sys_props.rs's
// get_sys_prop; the Rust generic type parameter becomes a plain
// json.Unmarshal target here.
func (s *Store) GetSysProp(propId string, v any) (bool, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM sys_props WHERE id = ?`, propId)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting sys prop %s: %w", propId, err)
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("decoding sys prop %s: %w", propId, err)
	}
	return true, nil
}

// SetSysProp encodes v as JSON and upserts it under propId, grounded on
// db/sys_props.rs's set_sys_prop.
func (s *Store) SetSysProp(propId string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sys prop %s: %w", propId, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sys_props (id, value) VALUES (?, ?)`, propId, string(encoded))
	if err != nil {
		return fmt.Errorf("setting sys prop %s: %w", propId, err)
	}
	return nil
}
