package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ModelId names a device model specification (manufacturer/model pair
// stringified), grounded on original_source/.../api/src/model.rs's
// ModelId. Kept as a plain string here since no other Go package in
// this repository needs to parse its structure.
type ModelId string

// SetModel inserts or replaces a model's spec JSON blob, grounded on
// db/models.rs's set_model.
func (s *Store) SetModel(id ModelId, spec json.RawMessage) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO models (id, spec) VALUES (?, ?)`, string(id), string(spec))
	if err != nil {
		return fmt.Errorf("setting model %s: %w", id, err)
	}
	return nil
}

// GetModel reads back a model's spec, returning (nil, false) if absent.
func (s *Store) GetModel(id ModelId) (json.RawMessage, bool, error) {
	var spec string
	err := s.db.Get(&spec, `SELECT spec FROM models WHERE id = ?`, string(id))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting model %s: %w", id, err)
	}
	return json.RawMessage(spec), true, nil
}

// DeleteAllModelsExcept removes every stored model not in keep,
// grounded on db/models.rs's delete_all_models_except (used after a
// config reload to prune models no configured instance references
// anymore).
func (s *Store) DeleteAllModelsExcept(keep []ModelId) error {
	if len(keep) == 0 {
		_, err := s.db.Exec(`DELETE FROM models`)
		if err != nil {
			return fmt.Errorf("deleting all models: %w", err)
		}
		return nil
	}

	ids := make([]string, len(keep))
	for i, id := range keep {
		ids[i] = string(id)
	}

	query, args, err := sqlx.In(`DELETE FROM models WHERE id NOT IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	query = s.db.Rebind(query)
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("deleting stale models: %w", err)
	}
	return nil
}
