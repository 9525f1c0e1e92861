package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds environment-based configuration. Variables carry the
// PRAXIS_ prefix; nested structs use an underscore delimiter
// (e.g. PRAXIS_EMBEDDING_ENDPOINT_MODEL).
type EnvConfig struct {
	// Host is the server host to bind to.
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory. Default: ~/.praxis
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Default: sqlite:///{data_dir}/praxis.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity (DEBUG, INFO, WARN, ERROR).
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// ModelDir is the local embedding model directory.
	ModelDir string `envconfig:"MODEL_DIR"`

	// EmbeddingEndpoint configures the remote embedding service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// RerankerEndpoint configures the remote reranker service.
	RerankerEndpoint EndpointEnv `envconfig:"RERANKER_ENDPOINT"`

	// PrimaryProvider forces the primary search provider (vector or text).
	// Empty picks vector when available, text otherwise.
	PrimaryProvider string `envconfig:"PRIMARY_PROVIDER"`

	// FallbackEnabled controls text fallback when the primary fails.
	FallbackEnabled bool `envconfig:"FALLBACK_ENABLED" default:"true"`

	// MaxRetries is the per-provider retry count.
	MaxRetries uint `envconfig:"MAX_RETRIES" default:"1"`

	// TopKRetrieve is the vector retrieval breadth.
	TopKRetrieve int `envconfig:"TOPK_RETRIEVE" default:"100"`

	// TopKRerank is the rerank fan-in.
	TopKRerank int `envconfig:"TOPK_RERANK" default:"40"`

	// DuplicateTimeoutMS is the duplicate probe deadline in milliseconds.
	DuplicateTimeoutMS int `envconfig:"DUPLICATE_TIMEOUT_MS" default:"750"`

	// DuplicateThreshold is the duplicate retrieval threshold.
	DuplicateThreshold float64 `envconfig:"DUPLICATE_THRESHOLD" default:"0.60"`

	// RecommendThreshold is the score above which the probe recommends
	// review before writing.
	RecommendThreshold float64 `envconfig:"RECOMMEND_THRESHOLD" default:"0.85"`

	// LeaseTTLSeconds is the embedding-worker lease TTL.
	LeaseTTLSeconds float64 `envconfig:"LEASE_TTL_SECONDS" default:"30"`

	// PollIntervalSeconds is the worker poll interval.
	PollIntervalSeconds float64 `envconfig:"POLL_INTERVAL_SECONDS" default:"5"`

	// BatchSize is the maximum records claimed per worker iteration.
	BatchSize int `envconfig:"BATCH_SIZE" default:"16"`

	// SavePolicy is the index snapshot policy
	// (on_every_mutation, every_n, on_shutdown).
	SavePolicy string `envconfig:"SAVE_POLICY" default:"every_n"`

	// SaveEvery is the mutation count between snapshots under every_n.
	SaveEvery int `envconfig:"SAVE_EVERY" default:"64"`

	// RebuildThreshold is the unpersisted-mutation count beyond which a
	// full rebuild replaces an incremental save.
	RebuildThreshold int `envconfig:"REBUILD_THRESHOLD" default:"4096"`

	// SnapshotPath overrides the index snapshot file path.
	SnapshotPath string `envconfig:"SNAPSHOT_PATH"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// BaseURL is the endpoint base URL.
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	Model string `envconfig:"MODEL"`

	// APIKey authenticates requests.
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`
}

// IsConfigured reports whether the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool { return e.Model != "" }

// ToEndpoint converts to an Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	return NewEndpoint(e.BaseURL, e.Model, e.APIKey, time.Duration(e.Timeout*float64(time.Second)))
}

// LoadFromEnv loads configuration from PRAXIS_-prefixed environment
// variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("praxis", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() (AppConfig, error) {
	cfg := NewAppConfig()

	opts := []AppConfigOption{
		WithHost(e.Host),
		WithPort(e.Port),
		WithLogLevel(e.LogLevel),
		WithLogFormat(e.LogFormat),
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.ModelDir != "" {
		opts = append(opts, WithModelDir(e.ModelDir))
	}
	if e.EmbeddingEndpoint.IsConfigured() {
		opts = append(opts, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.RerankerEndpoint.IsConfigured() {
		opts = append(opts, WithRerankerEndpoint(e.RerankerEndpoint.ToEndpoint()))
	}

	primary, err := ParsePrimaryProvider(e.PrimaryProvider)
	if err != nil {
		return AppConfig{}, err
	}
	search := NewSearchConfig().
		WithPrimary(primary).
		WithFallbackEnabled(e.FallbackEnabled).
		WithMaxRetries(e.MaxRetries).
		WithTopKRetrieve(e.TopKRetrieve).
		WithTopKRerank(e.TopKRerank).
		WithDuplicateTimeout(time.Duration(e.DuplicateTimeoutMS) * time.Millisecond).
		WithDuplicateThreshold(e.DuplicateThreshold).
		WithRecommendThreshold(e.RecommendThreshold)
	opts = append(opts, WithSearchConfig(search))

	worker := NewWorkerConfig().
		WithLeaseTTL(time.Duration(e.LeaseTTLSeconds * float64(time.Second))).
		WithPollInterval(time.Duration(e.PollIntervalSeconds * float64(time.Second))).
		WithBatchSize(e.BatchSize)
	opts = append(opts, WithWorkerConfig(worker))

	policy, err := ParseSavePolicy(e.SavePolicy)
	if err != nil {
		return AppConfig{}, err
	}
	index := NewIndexConfig().
		WithSavePolicy(policy).
		WithSaveEvery(e.SaveEvery).
		WithRebuildThreshold(e.RebuildThreshold)
	if e.SnapshotPath != "" {
		index = index.WithSnapshotPath(e.SnapshotPath)
	}
	opts = append(opts, WithIndexConfig(index))

	return cfg.Apply(opts...), nil
}
