package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\ncatalog: /tmp/models.yaml\ndefault_model: m1\nruntime: server\nserver_url: http://127.0.0.1:8081\nthreads: 4\nreserved_tokens: 128\ncors_origins: [\"http://localhost:3000\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.Catalog != "/tmp/models.yaml" || cfg.DefaultModel != "m1" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Runtime != "server" || cfg.ServerURL != "http://127.0.0.1:8081" || cfg.Threads != 4 || cfg.ReservedTokens != 128 {
		t.Fatalf("unexpected runtime cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors: %v", cfg.CORSOrigins)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","default_model":"m2","log_level":"debug","max_body_bytes":2048}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.DefaultModel != "m2" || cfg.LogLevel != "debug" || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nruntime=\"llama\"\nlog_file=\"/var/log/c.log\"\ndefault_model=\"m3\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.Runtime != "llama" || cfg.LogFile != "/var/log/c.log" || cfg.DefaultModel != "m3" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "bad-runtime.yaml", "runtime: onnx\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected runtime validation error")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != DefaultAddr || cfg.ModelsDir != DefaultModelsDir || cfg.ReservedTokens != 256 || cfg.LogLevel != "info" || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	cfg = Config{Addr: ":1", ReservedTokens: 64}.WithDefaults()
	if cfg.Addr != ":1" || cfg.ReservedTokens != 64 {
		t.Fatalf("defaults overwrote values: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COMPANIOND_ADDR":            ":7000",
		"COMPANIOND_RUNTIME":         "server",
		"COMPANIOND_THREADS":         "6",
		"COMPANIOND_RESERVED_TOKENS": "300",
		"COMPANIOND_CORS_ORIGINS":    "http://a, http://b",
		"COMPANIOND_MAX_BODY_BYTES":  "4096",
		"COMPANIOND_LOG_FILE":        "",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg, err := Config{Addr: ":8080", LogFile: "keep.log"}.ApplyEnv(lookup)
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.Runtime != "server" || cfg.Threads != 6 || cfg.ReservedTokens != 300 || cfg.MaxBodyBytes != 4096 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if cfg.LogFile != "keep.log" {
		t.Fatalf("empty env value must not clear: %q", cfg.LogFile)
	}

	env["COMPANIOND_THREADS"] = "many"
	if _, err := (Config{}).ApplyEnv(lookup); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_MalformedFiles(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "threads": }`,
		"bad.toml": "addr=:8080\nthreads\n",
	}
	for name, body := range cases {
		p := writeTempFile(t, d, name, body)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}
