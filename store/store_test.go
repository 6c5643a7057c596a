package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	s := newTestStore(t)
	var userVersion int
	if err := s.db.Get(&userVersion, "PRAGMA user_version"); err != nil {
		t.Fatalf("reading user_version: %v", err)
	}
	if userVersion != len(migrations) {
		t.Fatalf("expected user_version %d after migrating, got %d", len(migrations), userVersion)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second Open of an already-migrated database: %v", err)
	}
	defer s.Close()
	var userVersion int
	if err := s.db.Get(&userVersion, "PRAGMA user_version"); err != nil {
		t.Fatalf("reading user_version: %v", err)
	}
	if userVersion != len(migrations) {
		t.Fatalf("expected user_version %d after reopening, got %d", len(migrations), userVersion)
	}
}

func TestSetAndGetModelRoundTrips(t *testing.T) {
	s := newTestStore(t)
	id := ModelId("acme/box")
	spec := json.RawMessage(`{"channels":2}`)

	if err := s.SetModel(id, spec); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	got, ok, err := s.GetModel(id)
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if !ok {
		t.Fatalf("expected model to be present")
	}
	if string(got) != string(spec) {
		t.Fatalf("expected spec %s, got %s", spec, got)
	}
}

func TestGetModelMissingReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetModel(ModelId("ghost"))
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if ok {
		t.Fatalf("expected missing model to report false")
	}
}

func TestDeleteAllModelsExceptPrunesOthers(t *testing.T) {
	s := newTestStore(t)
	spec := json.RawMessage(`{}`)
	if err := s.SetModel(ModelId("keep"), spec); err != nil {
		t.Fatalf("SetModel keep: %v", err)
	}
	if err := s.SetModel(ModelId("drop"), spec); err != nil {
		t.Fatalf("SetModel drop: %v", err)
	}

	if err := s.DeleteAllModelsExcept([]ModelId{"keep"}); err != nil {
		t.Fatalf("DeleteAllModelsExcept: %v", err)
	}

	if _, ok, _ := s.GetModel("keep"); !ok {
		t.Fatalf("expected kept model to survive")
	}
	if _, ok, _ := s.GetModel("drop"); ok {
		t.Fatalf("expected dropped model to be gone")
	}
}

func TestDeleteAllModelsExceptEmptyKeepDeletesEverything(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetModel(ModelId("a"), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	if err := s.DeleteAllModelsExcept(nil); err != nil {
		t.Fatalf("DeleteAllModelsExcept: %v", err)
	}
	if _, ok, _ := s.GetModel("a"); ok {
		t.Fatalf("expected all models deleted")
	}
}

type testProp struct {
	Count int `json:"count"`
}

func TestSetAndGetSysPropRoundTrips(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetSysProp("counter", testProp{Count: 3}); err != nil {
		t.Fatalf("SetSysProp: %v", err)
	}
	var got testProp
	ok, err := s.GetSysProp("counter", &got)
	if err != nil {
		t.Fatalf("GetSysProp: %v", err)
	}
	if !ok || got.Count != 3 {
		t.Fatalf("expected count 3, got %+v (ok=%v)", got, ok)
	}
}

func TestGetSysPropMissingReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	var got testProp
	ok, err := s.GetSysProp("ghost", &got)
	if err != nil {
		t.Fatalf("GetSysProp: %v", err)
	}
	if ok {
		t.Fatalf("expected missing prop to report false")
	}
}
