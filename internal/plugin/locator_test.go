package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mkPlugin(t *testing.T, dir string, manifest bool) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if manifest {
		if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocatorFind(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	mkPlugin(t, filepath.Join(first, "empty"), false)
	mkPlugin(t, filepath.Join(second, "empty"), true)
	mkPlugin(t, filepath.Join(second, "folio-comments"), true)
	mkPlugin(t, filepath.Join(first, "search"), true)
	mkPlugin(t, filepath.Join(second, "search"), true)

	l := NewLocator(first, "", second)

	tests := []struct {
		name string
		want string
	}{
		{"comments", filepath.Join(second, "folio-comments")},
		{"folio-comments", filepath.Join(second, "folio-comments")},
		{"search", filepath.Join(first, "search")},
		{"empty", filepath.Join(second, "empty")},
		{"missing", filepath.Join(first, "missing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Find(tt.name)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Find() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocatorNoPaths(t *testing.T) {
	_, err := NewLocator().Find("x")
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("error = %v, want ErrPluginNotFound", err)
	}
}

func TestLocatorDiscover(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	mkPlugin(t, filepath.Join(first, "search"), true)
	mkPlugin(t, filepath.Join(first, "not-a-plugin"), false)
	mkPlugin(t, filepath.Join(second, "folio-comments"), false)
	mkPlugin(t, filepath.Join(second, "search"), true)
	if err := os.WriteFile(filepath.Join(first, "README"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLocator(first, second, filepath.Join(first, "nope"))
	plugins, err := l.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(plugins) != 2 {
		t.Fatalf("Discover() = %d plugins, want 2", len(plugins))
	}
	if plugins[0].Name != "comments" || plugins[0].HasManifest {
		t.Errorf("plugins[0] = %+v", plugins[0])
	}
	if plugins[1].Name != "search" || plugins[1].Path != filepath.Join(first, "search") {
		t.Errorf("plugins[1] = %+v", plugins[1])
	}
}

func TestDefaultPluginPaths(t *testing.T) {
	paths := DefaultPluginPaths("/site")
	if len(paths) != 2 || paths[0] != filepath.Join("/site", "plugins") {
		t.Errorf("DefaultPluginPaths() = %v", paths)
	}
}
