package annotation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("sample config loads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := WriteSampleConfig(path); err != nil {
			t.Fatalf("WriteSampleConfig() error = %v", err)
		}
		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if config.Viewport.Width != 1280 || config.Viewport.Height != 800 {
			t.Errorf("Viewport = %+v, want 1280x800", config.Viewport)
		}
		if config.Capture.Console != 200 || config.Capture.Network != 100 {
			t.Errorf("Capture = %+v, want console=200 network=100", config.Capture)
		}
		if len(config.Capture.Ignore) != 1 {
			t.Errorf("len(Capture.Ignore) = %d, want 1", len(config.Capture.Ignore))
		}
		if !strings.Contains(config.Meta.Description, "Screenshot annotation server") {
			t.Errorf("Description = %q", config.Meta.Description)
		}
	})

	t.Run("empty config gets defaults", func(t *testing.T) {
		path := writeConfig(t, "")
		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if config.Server.Addr != DefaultAddr {
			t.Errorf("Server.Addr = %v, want %v", config.Server.Addr, DefaultAddr)
		}
		if config.Server.LiveSessions != DefaultLiveSessions {
			t.Errorf("Server.LiveSessions = %v, want %v", config.Server.LiveSessions, DefaultLiveSessions)
		}
		if len(config.Palette) != 8 {
			t.Errorf("len(Palette) = %d, want 8", len(config.Palette))
		}
	})

	t.Run("storage paths are relative to the config file", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  database: data/db.sqlite\n  images: /abs/images\n")
		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		dir := filepath.Dir(path)
		if want := filepath.Join(dir, "data", "db.sqlite"); config.Storage.Database != want {
			t.Errorf("Storage.Database = %v, want %v", config.Storage.Database, want)
		}
		if config.Storage.Images != "/abs/images" {
			t.Errorf("Storage.Images = %v, want /abs/images", config.Storage.Images)
		}
		if want := filepath.Join(dir, "exports"); config.Storage.Exports != want {
			t.Errorf("Storage.Exports = %v, want %v", config.Storage.Exports, want)
		}
	})

	t.Run("palette is normalized", func(t *testing.T) {
		path := writeConfig(t, "palette: [\"#FF0000\", \"#00ff00\"]\n")
		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if config.Palette[0] != "#ff0000" {
			t.Errorf("Palette[0] = %v, want #ff0000", config.Palette[0])
		}
	})

	invalid := map[string]string{
		"negative viewport": "viewport:\n  width: -1\n",
		"bad palette":       "palette: [\"red\"]\n",
		"negative capture":  "capture:\n  console: -5\n",
		"not yaml":          "viewport: [1, 2\n",
	}
	for name, content := range invalid {
		t.Run("rejects "+name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
			t.Errorf("LoadConfig() error = %v, want not exist", err)
		}
	})
}
