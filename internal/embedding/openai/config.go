package openai

// Config holds configuration for the embedding generator. The default
// endpoint is an OpenAI-compatible DeepInfra deployment of BGE-M3; any
// OpenAI-compatible embeddings API works.
type Config struct {
	APIKey    string `env:"EMBEDDING_API_KEY"`
	BaseURL   string `env:"EMBEDDING_BASE_URL"   envDefault:"https://api.deepinfra.com/v1/openai"`
	Model     string `env:"EMBEDDING_MODEL"      envDefault:"BAAI/bge-m3"`
	Dimension int    `env:"EMBEDDING_DIMENSION"  envDefault:"1024"`
	BatchSize int    `env:"EMBEDDING_BATCH_SIZE" envDefault:"1024"`
}
