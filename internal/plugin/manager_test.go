package plugin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(root, m.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifestBytes, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func quietManager(dir string) *Manager {
	return NewManager(dir, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Actions:     []string{"action1", "action2"},
	})

	manager := quietManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "A test plugin" {
		t.Errorf("expected description 'A test plugin', got %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Actions) != 2 {
		t.Errorf("expected 2 actions, got %d", len(plugin.Manifest.Actions))
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
	if !plugin.Supports("action2") || plugin.Supports("action3") {
		t.Error("Supports() does not follow the manifest actions")
	}
}

func TestManager_Discover_MultiplePluginsSorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"plugin-b", "plugin-a"} {
		writeManifest(t, tmpDir, Manifest{Name: name, Executable: name, Actions: []string{"action"}})
	}

	manager := quietManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "plugin-a" || plugins[1].Manifest.Name != "plugin-b" {
		t.Errorf("plugins not sorted: %s, %s", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}
}

func TestManager_Discover_EmptyDir(t *testing.T) {
	manager := quietManager(t.TempDir())
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on empty dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_SkipsInvalidManifests(t *testing.T) {
	tmpDir := t.TempDir()

	badDir := filepath.Join(tmpDir, "bad-plugin")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	// no executable
	writeManifest(t, tmpDir, Manifest{Name: "incomplete"})
	// no manifest at all
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	manager := quietManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := quietManager("/path/that/does/not/exist")
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_GetAndResolve(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{
		Name:       "my-plugin",
		Version:    "2.0.0",
		Executable: "my-plugin-bin",
		Actions:    []string{"run"},
	})

	manager := quietManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}

	if _, err := manager.Resolve("my-plugin", "run"); err != nil {
		t.Errorf("Resolve() failed: %v", err)
	}
	if _, err := manager.Resolve("my-plugin", "fly"); !errors.Is(err, ErrActionNotSupported) {
		t.Errorf("expected ErrActionNotSupported, got %v", err)
	}
	if _, err := manager.Resolve("other", "run"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}
