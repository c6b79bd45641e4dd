package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/marketmatch/internal/embedding/openai"
)

// Config represents the matcher service configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Cache     CacheConfig
	Embedding openai.Config
	Store     StoreConfig
	Sources   SourcesConfig
	Dataset   DatasetConfig
	Crypto    CryptoConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"60"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// CacheConfig controls freshness of the two cached resources.
type CacheConfig struct {
	// DurationMinutes is the TTL applied to both the markets and the
	// embeddings cache.
	DurationMinutes int `env:"CACHE_DURATION_MINUTES" envDefault:"30"`
}

// StoreConfig selects and configures the embedding persistence backend.
type StoreConfig struct {
	Backend       string `env:"EMBEDDING_STORE"       envDefault:"file"` // file | redis
	FilePath      string `env:"EMBEDDINGS_CACHE_PATH" envDefault:"data/embeddings.json"`
	RedisAddr     string `env:"REDIS_ADDR"            envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"              envDefault:"0"`
	RedisKey      string `env:"REDIS_EMBEDDINGS_KEY"  envDefault:"marketmatch:embeddings"`
}

// SourcesConfig configures the platform adapters.
type SourcesConfig struct {
	// Enabled lists the platform adapters to run each aggregation cycle.
	Enabled        []string `env:"SOURCES" envSeparator:"," envDefault:"manifold,polymarket,predictit,metaculus,gjopen"`
	TimeoutSeconds int      `env:"SOURCE_TIMEOUT" envDefault:"30"`
	GJOEmail       string   `env:"GJO_EMAIL"`
	GJOPassword    string   `env:"GJO_PASSWORD"`
}

// DatasetConfig locates an optional pre-encrypted shared dataset. When
// neither field is set the dataset source is not configured.
type DatasetConfig struct {
	Path string `env:"DATASET_PATH"`
	URL  string `env:"DATASET_URL"`
}

// CryptoConfig carries the dataset decryption key.
type CryptoConfig struct {
	EncryptionKey string `env:"MARKETMATCH_ENCRYPTION_KEY"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*CacheConfig
	*openai.Config
	*StoreConfig
	*SourcesConfig
	*DatasetConfig
	*CryptoConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Cache,
		&cfg.Embedding,
		&cfg.Store,
		&cfg.Sources,
		&cfg.Dataset,
		&cfg.Crypto,
	}
}
