package config

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/dreamcache/artifacts.db"
	}
	if cfg.Storage.Directory == "" {
		cfg.Storage.Directory = "/usr/local/var/dreamcache/images"
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.IndexPath == "" {
		cfg.Vector.IndexPath = "/usr/local/var/dreamcache/vectors.idx"
	}
	if cfg.Vector.Pinecone.Namespace == "" {
		cfg.Vector.Pinecone.Namespace = "dreamcache"
	}

	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 256
	}

	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = 120
	}

	if cfg.Cache.Threshold == 0 {
		cfg.Cache.Threshold = 0.85
	}
	if cfg.Cache.SuggestTopK == 0 {
		cfg.Cache.SuggestTopK = 20
	}
	if cfg.Cache.ImageTopK == 0 {
		cfg.Cache.ImageTopK = 9
	}
	if cfg.Cache.MinPromptLength == 0 {
		cfg.Cache.MinPromptLength = 7
	}
	if cfg.Cache.MaxSuggestions == 0 {
		cfg.Cache.MaxSuggestions = 5
	}
}
