//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig points keyctl at a file store in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "storage:\n  backend: file\n  dir: " + filepath.Join(dir, "data") + "\n" +
		"bank:\n  provider: static\n  static_file: " + filepath.Join(dir, "feed.json") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("keyctl %v: %v (%s)", args, err, out.String())
	}
	return out.String()
}

func TestKeyLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	key := strings.TrimSpace(run(t, cfg, "create", "--days", "7", "--uses", "2"))
	if len(key) != 19 {
		t.Fatalf("unexpected key %q", key)
	}
	if out := run(t, cfg, "verify", key); !strings.Contains(out, "remaining=1") {
		t.Fatalf("verify output %q", out)
	}

	var listed struct {
		Keys []struct {
			Key         string `json:"key"`
			CurrentUses int    `json:"currentUses"`
		} `json:"keys"`
		Stats struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(run(t, cfg, "list", "--json")), &listed); err != nil {
		t.Fatalf("list json: %v", err)
	}
	if listed.Stats.Total != 1 || listed.Keys[0].CurrentUses != 1 {
		t.Fatalf("unexpected list %+v", listed)
	}

	run(t, cfg, "revoke", strings.ToLower(key))
	run(t, cfg, "delete", key)
	if out := run(t, cfg, "list"); !strings.Contains(out, "total=0") {
		t.Fatalf("expected empty store, got %q", out)
	}
}

func TestVPNImportAndStock(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "stock.json")
	if err := os.WriteFile(file, []byte(`[{"id":"a","conf":"[Interface]"},{"conf":"[Interface]"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if out := run(t, cfg, "vpn", "import", file); !strings.Contains(out, "imported 2") {
		t.Fatalf("import output %q", out)
	}
	if out := run(t, cfg, "vpn", "stock"); !strings.Contains(out, "available=2 sold=0") {
		t.Fatalf("stock output %q", out)
	}
}
