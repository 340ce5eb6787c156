package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	path := writeConfig(t, `
default_store = "local"
log_level = "debug"

[stores.local]
dsn = "/tmp/observations.db"

[stores.shared]
backend = "postgres"
dsn = "postgres://pyrite@db:5432/pyrite"
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultStore != "local" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected top-level fields: %+v", cfg)
	}

	st, err := cfg.GetStore("")
	if err != nil {
		t.Fatalf("default store: %v", err)
	}
	if st.Backend != "sqlite" {
		t.Errorf("missing backend should default to sqlite, got %q", st.Backend)
	}
	if st.DSN != "/tmp/observations.db" {
		t.Errorf("unexpected dsn %q", st.DSN)
	}

	st, err = cfg.GetStore("shared")
	if err != nil {
		t.Fatalf("named store: %v", err)
	}
	if st.Backend != "postgres" {
		t.Errorf("unexpected backend %q", st.Backend)
	}
}

func TestGetStoreErrors(t *testing.T) {
	cfg := &Config{Stores: map[string]Store{"local": {DSN: "x.db"}}}
	if _, err := cfg.GetStore(""); err == nil {
		t.Error("expected error without a default store")
	}
	if _, err := cfg.GetStore("missing"); err == nil {
		t.Error("expected error for unknown store name")
	}
}

func TestLoadFromMalformed(t *testing.T) {
	path := writeConfig(t, "default_store = [broken")
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestListStoresDefaultsBackend(t *testing.T) {
	cfg := &Config{Stores: map[string]Store{
		"a": {DSN: "a.db"},
		"b": {Backend: "postgres", DSN: "postgres://x"},
	}}
	stores := cfg.ListStores()
	if stores["a"].Backend != "sqlite" || stores["b"].Backend != "postgres" {
		t.Errorf("unexpected backends: %+v", stores)
	}
}
