package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Artifacts.Directory == "" {
		cfg.Artifacts.Directory = "/usr/local/var/norma/artifacts"
	}
	if cfg.Artifacts.Corpus == "" {
		cfg.Artifacts.Corpus = "corpus.ndjson.gz"
	}
	if cfg.Artifacts.Lexical == "" {
		cfg.Artifacts.Lexical = "bm25.json"
	}
	if cfg.Artifacts.HNSW == "" {
		cfg.Artifacts.HNSW = "vectors.hnsw"
	}
	if cfg.Artifacts.IDs == "" {
		cfg.Artifacts.IDs = "vectors.ids"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.CandidateK == 0 {
		cfg.Retrieval.CandidateK = 50
	}
	if cfg.Retrieval.RRFK == 0 {
		cfg.Retrieval.RRFK = 40
	}
	if cfg.Retrieval.LexicalBackend == "" {
		cfg.Retrieval.LexicalBackend = "bm25"
	}

	cfg.Ranking.ApplyDefaults()

	if cfg.Recursive.MinConfidence == 0 {
		cfg.Recursive.MinConfidence = 0.6
	}
	if cfg.Recursive.MaxSubQueries == 0 {
		cfg.Recursive.MaxSubQueries = 5
	}
	if cfg.Recursive.Workers == 0 {
		cfg.Recursive.Workers = 4
	}
	if cfg.Recursive.SubQueryTimeout == 0 {
		cfg.Recursive.SubQueryTimeout = 90 * time.Second
	}
	if cfg.Recursive.Format == "" {
		cfg.Recursive.Format = "structured"
	}

	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "static"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 300
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 30 * time.Second
	}
	if cfg.Generator.Attempts == 0 {
		cfg.Generator.Attempts = 3
	}
	if cfg.Generator.BaseDelay == 0 {
		cfg.Generator.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Generator.MaxDelay == 0 {
		cfg.Generator.MaxDelay = 8 * time.Second
	}
	if cfg.Generator.RateLimit > 0 && cfg.Generator.Burst == 0 {
		cfg.Generator.Burst = 1
	}

	if cfg.Vigencia.Backend == "" {
		cfg.Vigencia.Backend = "dir"
	}
	if cfg.Vigencia.Path == "" {
		cfg.Vigencia.Path = "/usr/local/var/norma/normas"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
