package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestLoad(t *testing.T) {
	_, path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
retrieval:
  top_k: 5
  lexical_backend: bleve
generator:
  provider: openai
  timeout: 45s
  base_delay: 250ms
ranking:
  derogated_penalty: 0.3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.LexicalBackend != "bleve" {
		t.Errorf("unexpected retrieval config: %+v", cfg.Retrieval)
	}
	if cfg.Generator.Timeout != 45*time.Second || cfg.Generator.BaseDelay != 250*time.Millisecond {
		t.Errorf("durations not parsed: timeout=%v base_delay=%v", cfg.Generator.Timeout, cfg.Generator.BaseDelay)
	}
	if cfg.Ranking.DerogatedPenalty != 0.3 {
		t.Errorf("derogated_penalty = %v, want 0.3", cfg.Ranking.DerogatedPenalty)
	}
	if cfg.Ranking.PartialPenalty != 0.05 {
		t.Errorf("ranking defaults not applied: partial_penalty = %v", cfg.Ranking.PartialPenalty)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	_, path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_artifactPaths(t *testing.T) {
	dir, path := writeConfig(t, `
artifacts:
  directory: "./data"
  corpus: "chunks.json"
  lexical: "./other/bm25.json"
  hnsw: "/abs/vectors.hnsw"
vigencia:
  backend: sqlite
  path: "./normas.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDir := filepath.Join(dir, "data")
	checks := map[string][2]string{
		"directory": {cfg.Artifacts.Directory, wantDir},
		"corpus":    {cfg.Artifacts.Corpus, filepath.Join(wantDir, "chunks.json")},
		"lexical":   {cfg.Artifacts.Lexical, filepath.Join(dir, "other", "bm25.json")},
		"hnsw":      {cfg.Artifacts.HNSW, "/abs/vectors.hnsw"},
		"ids":       {cfg.Artifacts.IDs, filepath.Join(wantDir, "vectors.ids")},
		"vigencia":  {cfg.Vigencia.Path, filepath.Join(dir, "normas.db")},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	_, path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "hashing" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Retrieval.TopK != 8 || cfg.Retrieval.RRFK != 40 || cfg.Retrieval.LexicalBackend != "bm25" {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Recursive.MinConfidence != 0.6 || cfg.Recursive.MaxSubQueries != 5 || cfg.Recursive.Format != "structured" {
		t.Errorf("recursive defaults: %+v", cfg.Recursive)
	}
	if cfg.Generator.Provider != "static" || cfg.Generator.Attempts != 3 || cfg.Generator.MaxDelay != 8*time.Second {
		t.Errorf("generator defaults: %+v", cfg.Generator)
	}
	if cfg.Generator.Burst != 0 {
		t.Errorf("burst should stay 0 without a rate limit, got %d", cfg.Generator.Burst)
	}
	if cfg.Vigencia.Backend != "dir" {
		t.Errorf("vigencia backend: got %s", cfg.Vigencia.Backend)
	}
	if cfg.Ranking.KeywordCap != 0.2 {
		t.Errorf("ranking defaults not applied: keyword_cap = %v", cfg.Ranking.KeywordCap)
	}
}

func TestApplyDefaults_BurstWithRateLimit(t *testing.T) {
	cfg := &Config{Generator: GeneratorConfig{RateLimit: 2}}
	ApplyDefaults(cfg)
	if cfg.Generator.Burst != 1 {
		t.Errorf("burst = %d, want 1", cfg.Generator.Burst)
	}
}

func TestRecursiveConfig_Defaults(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		r := &RecursiveConfig{}
		if !r.EnabledOrDefault() || !r.PreserveContextOrDefault() {
			t.Error("unset flags should default to true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		r := &RecursiveConfig{Enabled: &f, PreserveContext: &f}
		if r.EnabledOrDefault() || r.PreserveContextOrDefault() {
			t.Error("explicit false should be kept")
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"/abs/x", "/abs/x"},
		{"./rel", "/cfg/rel"},
		{".", "/cfg"},
		{"~/norma", filepath.Join(home, "norma")},
		{"data", filepath.Join(home, "data")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/cfg"); got != tt.want {
			t.Errorf("expandPath(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestToken(t *testing.T) {
	t.Setenv("NORMA_TEST_TOKEN", "secret")
	if got := Token("NORMA_TEST_TOKEN"); got != "secret" {
		t.Errorf("Token = %q", got)
	}
	if got := Token(""); got != "" {
		t.Errorf("empty env should give empty token, got %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:    ServerConfig{Host: "localhost", Port: 9090},
		Artifacts: ArtifactsConfig{Directory: "/tmp/artifacts"},
		Generator: GeneratorConfig{Timeout: 12 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Generator.Timeout != 12*time.Second {
		t.Errorf("loaded timeout: got %v", loaded.Generator.Timeout)
	}
	if loaded.Artifacts.Corpus != filepath.Join("/tmp/artifacts", "corpus.ndjson.gz") {
		t.Errorf("loaded corpus: got %s", loaded.Artifacts.Corpus)
	}
}
