package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestActionRepository_CreateAndGetByGesture(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	a := &Action{
		ID:         "act-1",
		Gesture:    "swipe_left",
		PluginName: "keyboard",
		ActionName: "press",
		Config:     json.RawMessage(`{"key":"left"}`),
		Enabled:    true,
	}
	if err := repo.Create(a); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByGesture("swipe_left")
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if got == nil {
		t.Fatal("expected bound action")
	}
	if got.ID != "act-1" || got.PluginName != "keyboard" || got.ActionName != "press" || !got.Enabled {
		t.Errorf("unexpected action %+v", got)
	}
	if string(got.Config) != `{"key":"left"}` {
		t.Errorf("Config = %s", got.Config)
	}
}

func TestActionRepository_UnboundGesture(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Actions().GetByGesture("custom:zigzag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil action, got %+v", got)
	}
}

func TestActionRepository_OneActionPerGesture(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	if err := repo.Create(&Action{ID: "a", Gesture: "tap", PluginName: "p", ActionName: "x"}); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}
	if err := repo.Create(&Action{ID: "b", Gesture: "tap", PluginName: "p", ActionName: "y"}); err == nil {
		t.Error("expected error binding a gesture twice")
	}
}

func TestActionRepository_DefaultConfig(t *testing.T) {
	s := newTestStore(t)

	if err := s.Actions().Create(&Action{ID: "a", Gesture: "tap", PluginName: "p", ActionName: "x"}); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}
	got, err := s.Actions().GetByID("a")
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("Config = %s, want {}", got.Config)
	}
	if got.Enabled {
		t.Error("Enabled should default to false when not set")
	}
}

func TestActionRepository_UpdateListDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Actions()

	a := &Action{ID: "a", Gesture: "tap", PluginName: "p", ActionName: "x", Enabled: true}
	if err := repo.Create(a); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}
	if err := repo.Create(&Action{ID: "b", Gesture: "pinch", PluginName: "p", ActionName: "zoom"}); err != nil {
		t.Fatalf("failed to create action: %v", err)
	}

	a.Gesture = "double_tap"
	a.Enabled = false
	if err := repo.Update(a); err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	got, _ := repo.GetByID("a")
	if got.Gesture != "double_tap" || got.Enabled {
		t.Errorf("update not persisted: %+v", got)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 actions, got %d", len(list))
	}

	if err := repo.Delete("a"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := repo.GetByID("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(&Action{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update error = %v, want ErrNotFound", err)
	}
}
