package praxis

import (
	"log/slog"

	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// databaseType identifies the database.
type databaseType int

const (
	databaseUnset databaseType = iota
	databaseSQLite
	databasePostgres
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	database        databaseType
	dbPath          string
	dbDSN           string
	dataDir         string
	modelDir        string
	logger          *slog.Logger
	embedder        search.Embedder
	reranker        search.Reranker
	embeddingEP     config.Endpoint
	rerankerEP      config.Endpoint
	searchCfg       config.SearchConfig
	workerCfg       config.WorkerConfig
	indexCfg        config.IndexConfig
	autoStartWorker bool
}

// newClientConfig creates a clientConfig with defaults from
// internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:         config.DefaultDataDir(),
		searchCfg:       config.NewSearchConfig(),
		workerCfg:       config.NewWorkerConfig(),
		indexCfg:        config.NewIndexConfig(),
		autoStartWorker: true,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.database = databaseSQLite
		c.dbPath = path
	}
}

// WithPostgres configures PostgreSQL as the database.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.database = databasePostgres
		c.dbDSN = dsn
	}
}

// WithDataDir sets the data directory (index snapshot, default model
// location).
func WithDataDir(dir string) Option {
	return func(c *clientConfig) { c.dataDir = dir }
}

// WithModelDir sets the local embedding model directory used when no
// remote embedding endpoint is configured.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) { c.modelDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithEmbeddingEndpoint configures a remote OpenAI-compatible embedding
// endpoint.
func WithEmbeddingEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) { c.embeddingEP = e }
}

// WithRerankerEndpoint configures a remote OpenAI-compatible reranker
// endpoint.
func WithRerankerEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) { c.rerankerEP = e }
}

// WithEmbedder sets a custom embedder, overriding endpoint and local
// model resolution.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithReranker sets a custom reranker.
func WithReranker(r search.Reranker) Option {
	return func(c *clientConfig) { c.reranker = r }
}

// WithSearchConfig sets the search orchestration parameters.
func WithSearchConfig(cfg config.SearchConfig) Option {
	return func(c *clientConfig) { c.searchCfg = cfg }
}

// WithWorkerConfig sets the embedding worker parameters.
func WithWorkerConfig(cfg config.WorkerConfig) Option {
	return func(c *clientConfig) { c.workerCfg = cfg }
}

// WithIndexConfig sets the vector index parameters.
func WithIndexConfig(cfg config.IndexConfig) Option {
	return func(c *clientConfig) { c.indexCfg = cfg }
}

// WithoutWorker disables the automatic embedding worker start. Useful for
// one-shot commands and tests that drive batches explicitly.
func WithoutWorker() Option {
	return func(c *clientConfig) { c.autoStartWorker = false }
}

// OptionsFromAppConfig converts a loaded AppConfig into client options.
func OptionsFromAppConfig(cfg config.AppConfig) []Option {
	opts := []Option{
		WithDataDir(cfg.DataDir()),
		WithModelDir(cfg.ModelDir()),
		WithSearchConfig(cfg.Search()),
		WithWorkerConfig(cfg.Worker()),
		WithIndexConfig(cfg.Index()),
	}

	url := cfg.DBURL()
	switch {
	case len(url) > 10 && url[:10] == "sqlite:///":
		opts = append(opts, WithSQLite(url[10:]))
	default:
		opts = append(opts, WithPostgres(url))
	}

	if cfg.Embedding().IsConfigured() {
		opts = append(opts, WithEmbeddingEndpoint(cfg.Embedding()))
	}
	if cfg.Reranker().IsConfigured() {
		opts = append(opts, WithRerankerEndpoint(cfg.Reranker()))
	}
	return opts
}
