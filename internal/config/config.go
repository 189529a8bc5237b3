// Package config provides configuration loading and structs for the norma server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/norma/internal/ranking"
	"github.com/hyperjump/norma/internal/storage"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                  `yaml:"debug"`
	Server    ServerConfig          `yaml:"server"`
	Artifacts ArtifactsConfig       `yaml:"artifacts"`
	Embedding EmbeddingConfig       `yaml:"embedding"`
	Retrieval RetrievalConfig       `yaml:"retrieval"`
	Ranking   ranking.RankingConfig `yaml:"ranking"`
	Recursive RecursiveConfig       `yaml:"recursive"`
	Generator GeneratorConfig       `yaml:"generator"`
	Vigencia  VigenciaConfig        `yaml:"vigencia"`
	Watch     WatchConfig           `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArtifactsConfig locates the prebuilt indexes. Relative file names are
// resolved against Directory.
type ArtifactsConfig struct {
	Directory string `yaml:"directory"`
	Corpus    string `yaml:"corpus"`
	Lexical   string `yaml:"lexical"`
	HNSW      string `yaml:"hnsw"`
	IDs       string `yaml:"ids"`
}

// EmbeddingConfig selects the query embedder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hashing, onnx or openai
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TokenEnv   string `yaml:"token_env"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds hybrid retrieval settings.
type RetrievalConfig struct {
	TopK           int    `yaml:"top_k"`
	CandidateK     int    `yaml:"candidate_k"`
	RRFK           int    `yaml:"rrf_k"`
	LexicalBackend string `yaml:"lexical_backend"` // bm25 or bleve
}

// RecursiveConfig controls multi-part question handling.
type RecursiveConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	MinConfidence   float64       `yaml:"min_confidence"`
	MaxSubQueries   int           `yaml:"max_sub_queries"`
	PreserveContext *bool         `yaml:"preserve_context"`
	Workers         int           `yaml:"workers"`
	SubQueryTimeout time.Duration `yaml:"sub_query_timeout"`
	Format          string        `yaml:"format"`
}

// EnabledOrDefault returns whether recursion is on; defaults to true when unset.
func (r *RecursiveConfig) EnabledOrDefault() bool {
	if r.Enabled != nil {
		return *r.Enabled
	}
	return true
}

// PreserveContextOrDefault defaults to true when unset.
func (r *RecursiveConfig) PreserveContextOrDefault() bool {
	if r.PreserveContext != nil {
		return *r.PreserveContext
	}
	return true
}

// GeneratorConfig holds answer generation settings.
type GeneratorConfig struct {
	Provider      string        `yaml:"provider"` // static or openai
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallback_model"`
	TokenEnv      string        `yaml:"token_env"`
	StaticText    string        `yaml:"static_text"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	Attempts      uint          `yaml:"attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	RateLimit     float64       `yaml:"rate_limit"` // calls per second, 0 = unlimited
	Burst         int           `yaml:"burst"`
}

// VigenciaConfig selects the norm registry store.
type VigenciaConfig struct {
	Backend string `yaml:"backend"` // dir, sqlite or badger
	Path    string `yaml:"path"`
}

// WatchConfig controls artifact reloads on file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Artifacts.Directory = expandPath(cfg.Artifacts.Directory, configDir)
	cfg.Artifacts.Corpus = artifactPath(cfg.Artifacts.Corpus, cfg.Artifacts.Directory, configDir)
	cfg.Artifacts.Lexical = artifactPath(cfg.Artifacts.Lexical, cfg.Artifacts.Directory, configDir)
	cfg.Artifacts.HNSW = artifactPath(cfg.Artifacts.HNSW, cfg.Artifacts.Directory, configDir)
	cfg.Artifacts.IDs = artifactPath(cfg.Artifacts.IDs, cfg.Artifacts.Directory, configDir)
	cfg.Vigencia.Path = expandPath(cfg.Vigencia.Path, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Token reads the secret named by env, or "" when env is empty.
func Token(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// ArtifactPaths names every file or directory the service reads, for disk usage reports.
func (c *Config) ArtifactPaths() map[string]string {
	return map[string]string{
		storage.ArtifactCorpus:  c.Artifacts.Corpus,
		storage.ArtifactLexical: c.Artifacts.Lexical,
		storage.ArtifactHNSW:    c.Artifacts.HNSW,
		storage.ArtifactIDs:     c.Artifacts.IDs,
		storage.ArtifactNormas:  c.Vigencia.Path,
	}
}

// artifactPath resolves bare file names inside dir and everything else like expandPath.
func artifactPath(path, dir, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "~") {
		return expandPath(path, configDir)
	}
	return filepath.Join(dir, path)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
