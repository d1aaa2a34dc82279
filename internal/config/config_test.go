package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.Site.Listen != DefaultListen {
		t.Errorf("Site.Listen = %q, want %q", c.Site.Listen, DefaultListen)
	}
	if c.Plugins.Namespace != DefaultNamespace {
		t.Errorf("Plugins.Namespace = %q, want %q", c.Plugins.Namespace, DefaultNamespace)
	}
	if c.Plugins.StaticPrefix != DefaultStaticPrefix {
		t.Errorf("Plugins.StaticPrefix = %q, want %q", c.Plugins.StaticPrefix, DefaultStaticPrefix)
	}
	if c.Plugins.MaxParallel != DefaultMaxParallel {
		t.Errorf("Plugins.MaxParallel = %d, want %d", c.Plugins.MaxParallel, DefaultMaxParallel)
	}
	if c.Plugins.InitTimeout != 0 {
		t.Errorf("Plugins.InitTimeout = %v, want 0", c.Plugins.InitTimeout)
	}
	if len(c.Plugins.Paths) != 1 || c.Plugins.Paths[0] != "plugins" {
		t.Errorf("Plugins.Paths = %v, want [plugins]", c.Plugins.Paths)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "folio.toml"), `
[site]
name = "notes"
listen = ":9000"

[plugins]
enabled = ["comments"]
initTimeout = "2s"

[pluginConfigs.comments]
perPage = 5
`)

	c, err := Load("", WithRoot(dir), WithEnv(false))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Path != filepath.Join(dir, "folio.toml") {
		t.Errorf("Path = %q", c.Path)
	}
	if c.Site.Name != "notes" || c.Site.Listen != ":9000" {
		t.Errorf("Site = %+v", c.Site)
	}
	if c.Plugins.InitTimeout != 2*time.Second {
		t.Errorf("InitTimeout = %v, want 2s", c.Plugins.InitTimeout)
	}
	// Defaults survive alongside file values.
	if c.Plugins.Namespace != DefaultNamespace {
		t.Errorf("Namespace = %q, want default", c.Plugins.Namespace)
	}
	if got := c.PluginConfig("comments")["perPage"]; got != 5 {
		t.Errorf("pluginConfigs.comments.perPage = %v (%T), want 5", got, got)
	}
	if c.Source("site.name") != "site" {
		t.Errorf("Source(site.name) = %q, want site", c.Source("site.name"))
	}
	if c.Source("plugins.namespace") != "defaults" {
		t.Errorf("Source(plugins.namespace) = %q, want defaults", c.Source("plugins.namespace"))
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "folio.yaml"), `
site:
  name: docs
plugins:
  maxParallel: 2
  paths: [vendor, plugins]
`)

	c, err := Load("", WithRoot(dir), WithEnv(false))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Site.Name != "docs" {
		t.Errorf("Site.Name = %q, want docs", c.Site.Name)
	}
	if c.Plugins.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", c.Plugins.MaxParallel)
	}
	paths := c.PluginSearchPaths(dir)
	if len(paths) != 2 || paths[0] != filepath.Join(dir, "vendor") {
		t.Errorf("PluginSearchPaths = %v", paths)
	}
}

func TestLoad_NoFile(t *testing.T) {
	c, err := Load("", WithRoot(t.TempDir()), WithEnv(false))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Path != "" {
		t.Errorf("Path = %q, want empty", c.Path)
	}
	if c.Site.Listen != DefaultListen {
		t.Errorf("Site.Listen = %q, want default", c.Site.Listen)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), WithEnv(false))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "folio.toml"), `
[site]
listen = ":9000"

[log]
level = "warn"
`)
	t.Setenv("FOLIO_LISTEN", ":7000")
	t.Setenv("FOLIO_INIT_TIMEOUT", "750ms")

	c, err := Load("", WithRoot(dir))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Site.Listen != ":7000" {
		t.Errorf("Site.Listen = %q, want :7000", c.Site.Listen)
	}
	if c.Plugins.InitTimeout != 750*time.Millisecond {
		t.Errorf("InitTimeout = %v, want 750ms", c.Plugins.InitTimeout)
	}
	if c.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", c.Log.Level)
	}
	if c.Source("site.listen") != "env" {
		t.Errorf("Source(site.listen) = %q, want env", c.Source("site.listen"))
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "folio.toml"), `
[plugins]
maxParallel = 0
staticPrefix = "static"

[log]
level = "loud"
`)

	_, err := Load("", WithRoot(dir), WithEnv(false))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Errorf("got %d validation errors, want 3: %v", len(verrs), verrs)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a *ValidationError")
	}
	if verr.Code.String() == "unknown" {
		t.Errorf("Code = %v", verr.Code)
	}
}

func TestPluginConfig_Copy(t *testing.T) {
	c := Default()
	c.SetPluginConfig("search", map[string]any{"index": map[string]any{"size": 10}})

	got := c.PluginConfig("search")
	got["index"].(map[string]any)["size"] = 99

	again := c.PluginConfig("search")
	if again["index"].(map[string]any)["size"] != 10 {
		t.Error("PluginConfig returned an aliased map")
	}

	if empty := c.PluginConfig("unknown"); empty == nil || len(empty) != 0 {
		t.Errorf("PluginConfig(unknown) = %v, want empty map", empty)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
