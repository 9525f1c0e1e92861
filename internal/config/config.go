// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultLogLevel           = "INFO"
	DefaultMaxRetries         = 1
	DefaultTopKRetrieve       = 100
	DefaultTopKRerank         = 40
	DefaultSearchLimit        = 10
	DefaultDuplicateTimeout   = 750 * time.Millisecond
	DefaultDuplicateThreshold = 0.60
	DefaultRecommendThreshold = 0.85
	DefaultLeaseTTL           = 30 * time.Second
	DefaultPollInterval       = 5 * time.Second
	DefaultBatchSize          = 16
	DefaultSaveEvery          = 64
	DefaultRebuildThreshold   = 4096
)

// SavePolicy controls when the index snapshot is written.
type SavePolicy string

// SavePolicy values.
const (
	SaveEveryMutation SavePolicy = "on_every_mutation"
	SaveEveryN        SavePolicy = "every_n"
	SaveOnShutdown    SavePolicy = "on_shutdown"
)

// ParseSavePolicy parses a save policy string, defaulting to every_n.
func ParseSavePolicy(s string) (SavePolicy, error) {
	switch SavePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case SaveEveryMutation:
		return SaveEveryMutation, nil
	case SaveEveryN, "":
		return SaveEveryN, nil
	case SaveOnShutdown:
		return SaveOnShutdown, nil
	default:
		return "", fmt.Errorf("unknown save policy %q", s)
	}
}

// PrimaryProvider names the preferred search provider. Empty means choose
// automatically: vector when available, text otherwise.
type PrimaryProvider string

// PrimaryProvider values.
const (
	PrimaryAuto   PrimaryProvider = ""
	PrimaryVector PrimaryProvider = "vector"
	PrimaryText   PrimaryProvider = "text"
)

// ParsePrimaryProvider parses a primary provider string.
func ParsePrimaryProvider(s string) (PrimaryProvider, error) {
	switch PrimaryProvider(strings.ToLower(strings.TrimSpace(s))) {
	case PrimaryAuto, PrimaryVector, PrimaryText:
		return PrimaryProvider(strings.ToLower(strings.TrimSpace(s))), nil
	default:
		return "", fmt.Errorf("unknown primary provider %q", s)
	}
}

// Endpoint configures an AI service endpoint (embedding or reranker).
type Endpoint struct {
	baseURL string
	model   string
	apiKey  string
	timeout time.Duration
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(baseURL, model, apiKey string, timeout time.Duration) Endpoint {
	return Endpoint{baseURL: baseURL, model: model, apiKey: apiKey, timeout: timeout}
}

// BaseURL returns the endpoint base URL.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// IsConfigured reports whether the endpoint has a model configured.
func (e Endpoint) IsConfigured() bool { return e.model != "" }

// WorkerConfig configures the background embedding worker.
type WorkerConfig struct {
	leaseTTL     time.Duration
	pollInterval time.Duration
	batchSize    int
}

// NewWorkerConfig creates a WorkerConfig with defaults.
func NewWorkerConfig() WorkerConfig {
	return WorkerConfig{
		leaseTTL:     DefaultLeaseTTL,
		pollInterval: DefaultPollInterval,
		batchSize:    DefaultBatchSize,
	}
}

// LeaseTTL returns the leader lease time-to-live.
func (w WorkerConfig) LeaseTTL() time.Duration { return w.leaseTTL }

// PollInterval returns the worker poll interval.
func (w WorkerConfig) PollInterval() time.Duration { return w.pollInterval }

// BatchSize returns the maximum records claimed per iteration.
func (w WorkerConfig) BatchSize() int { return w.batchSize }

// WithLeaseTTL returns a copy with the lease TTL set.
func (w WorkerConfig) WithLeaseTTL(d time.Duration) WorkerConfig {
	if d > 0 {
		w.leaseTTL = d
	}
	return w
}

// WithPollInterval returns a copy with the poll interval set.
func (w WorkerConfig) WithPollInterval(d time.Duration) WorkerConfig {
	if d > 0 {
		w.pollInterval = d
	}
	return w
}

// WithBatchSize returns a copy with the batch size set.
func (w WorkerConfig) WithBatchSize(n int) WorkerConfig {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// IndexConfig configures the vector index manager.
type IndexConfig struct {
	savePolicy       SavePolicy
	saveEvery        int
	rebuildThreshold int
	snapshotPath     string
}

// NewIndexConfig creates an IndexConfig with defaults.
func NewIndexConfig() IndexConfig {
	return IndexConfig{
		savePolicy:       SaveEveryN,
		saveEvery:        DefaultSaveEvery,
		rebuildThreshold: DefaultRebuildThreshold,
	}
}

// SavePolicy returns the snapshot save policy.
func (i IndexConfig) SavePolicy() SavePolicy { return i.savePolicy }

// SaveEvery returns the mutation count between snapshots under every_n.
func (i IndexConfig) SaveEvery() int { return i.saveEvery }

// RebuildThreshold returns the unpersisted-mutation count beyond which a
// full rebuild is preferred over an incremental save.
func (i IndexConfig) RebuildThreshold() int { return i.rebuildThreshold }

// SnapshotPath returns the snapshot file path.
func (i IndexConfig) SnapshotPath() string { return i.snapshotPath }

// WithSavePolicy returns a copy with the save policy set.
func (i IndexConfig) WithSavePolicy(p SavePolicy) IndexConfig {
	i.savePolicy = p
	return i
}

// WithSaveEvery returns a copy with the save interval set.
func (i IndexConfig) WithSaveEvery(n int) IndexConfig {
	if n > 0 {
		i.saveEvery = n
	}
	return i
}

// WithRebuildThreshold returns a copy with the rebuild threshold set.
func (i IndexConfig) WithRebuildThreshold(n int) IndexConfig {
	if n > 0 {
		i.rebuildThreshold = n
	}
	return i
}

// WithSnapshotPath returns a copy with the snapshot path set.
func (i IndexConfig) WithSnapshotPath(path string) IndexConfig {
	i.snapshotPath = path
	return i
}

// SearchConfig configures the search orchestrator and vector provider.
type SearchConfig struct {
	primary            PrimaryProvider
	fallbackEnabled    bool
	maxRetries         uint
	topKRetrieve       int
	topKRerank         int
	duplicateTimeout   time.Duration
	duplicateThreshold float64
	recommendThreshold float64
}

// NewSearchConfig creates a SearchConfig with defaults.
func NewSearchConfig() SearchConfig {
	return SearchConfig{
		primary:            PrimaryAuto,
		fallbackEnabled:    true,
		maxRetries:         DefaultMaxRetries,
		topKRetrieve:       DefaultTopKRetrieve,
		topKRerank:         DefaultTopKRerank,
		duplicateTimeout:   DefaultDuplicateTimeout,
		duplicateThreshold: DefaultDuplicateThreshold,
		recommendThreshold: DefaultRecommendThreshold,
	}
}

// Primary returns the preferred provider.
func (s SearchConfig) Primary() PrimaryProvider { return s.primary }

// FallbackEnabled reports whether text fallback is enabled.
func (s SearchConfig) FallbackEnabled() bool { return s.fallbackEnabled }

// MaxRetries returns the per-provider retry count.
func (s SearchConfig) MaxRetries() uint { return s.maxRetries }

// TopKRetrieve returns the vector retrieval breadth R.
func (s SearchConfig) TopKRetrieve() int { return s.topKRetrieve }

// TopKRerank returns the rerank fan-in K.
func (s SearchConfig) TopKRerank() int { return s.topKRerank }

// DuplicateTimeout returns the duplicate probe deadline.
func (s SearchConfig) DuplicateTimeout() time.Duration { return s.duplicateTimeout }

// DuplicateThreshold returns the duplicate retrieval threshold.
func (s SearchConfig) DuplicateThreshold() float64 { return s.duplicateThreshold }

// RecommendThreshold returns the score above which the probe recommends a
// review before writing.
func (s SearchConfig) RecommendThreshold() float64 { return s.recommendThreshold }

// WithPrimary returns a copy with the primary provider set.
func (s SearchConfig) WithPrimary(p PrimaryProvider) SearchConfig {
	s.primary = p
	return s
}

// WithFallbackEnabled returns a copy with the fallback flag set.
func (s SearchConfig) WithFallbackEnabled(enabled bool) SearchConfig {
	s.fallbackEnabled = enabled
	return s
}

// WithMaxRetries returns a copy with the retry count set.
func (s SearchConfig) WithMaxRetries(n uint) SearchConfig {
	s.maxRetries = n
	return s
}

// WithTopKRetrieve returns a copy with the retrieval breadth set.
func (s SearchConfig) WithTopKRetrieve(n int) SearchConfig {
	if n > 0 {
		s.topKRetrieve = n
	}
	return s
}

// WithTopKRerank returns a copy with the rerank fan-in set.
func (s SearchConfig) WithTopKRerank(n int) SearchConfig {
	if n > 0 {
		s.topKRerank = n
	}
	return s
}

// WithDuplicateTimeout returns a copy with the probe deadline set.
func (s SearchConfig) WithDuplicateTimeout(d time.Duration) SearchConfig {
	if d > 0 {
		s.duplicateTimeout = d
	}
	return s
}

// WithDuplicateThreshold returns a copy with the retrieval threshold set.
func (s SearchConfig) WithDuplicateThreshold(t float64) SearchConfig {
	s.duplicateThreshold = t
	return s
}

// WithRecommendThreshold returns a copy with the recommend threshold set.
func (s SearchConfig) WithRecommendThreshold(t float64) SearchConfig {
	s.recommendThreshold = t
	return s
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host      string
	port      int
	dataDir   string
	dbURL     string
	logLevel  string
	logFormat string
	modelDir  string
	embedding Endpoint
	reranker  Endpoint
	search    SearchConfig
	worker    WorkerConfig
	index     IndexConfig
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".praxis"
	}
	return filepath.Join(home, ".praxis")
}

// NewAppConfig creates an AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:      DefaultHost,
		port:      DefaultPort,
		dataDir:   dataDir,
		dbURL:     "sqlite:///" + filepath.Join(dataDir, "praxis.db"),
		logLevel:  DefaultLogLevel,
		logFormat: "pretty",
		search:    NewSearchConfig(),
		worker:    NewWorkerConfig(),
		index:     NewIndexConfig(),
	}
}

// Host returns the server host.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// Addr returns host:port.
func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.host, c.port) }

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() string { return c.logFormat }

// ModelDir returns the local embedding model directory.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return filepath.Join(c.dataDir, "models")
}

// Embedding returns the embedding endpoint config.
func (c AppConfig) Embedding() Endpoint { return c.embedding }

// Reranker returns the reranker endpoint config.
func (c AppConfig) Reranker() Endpoint { return c.reranker }

// Search returns the search config.
func (c AppConfig) Search() SearchConfig { return c.search }

// Worker returns the worker config.
func (c AppConfig) Worker() WorkerConfig { return c.worker }

// Index returns the index config. The snapshot path defaults to a file
// inside the data directory.
func (c AppConfig) Index() IndexConfig {
	idx := c.index
	if idx.snapshotPath == "" {
		idx.snapshotPath = filepath.Join(c.dataDir, "index.snapshot")
	}
	return idx
}

// EnsureDataDir creates the data directory if missing.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		if strings.Contains(c.dbURL, "praxis.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "praxis.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format string) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithModelDir sets the local model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithRerankerEndpoint sets the reranker endpoint.
func WithRerankerEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.reranker = e }
}

// WithSearchConfig sets the search config.
func WithSearchConfig(s SearchConfig) AppConfigOption {
	return func(c *AppConfig) { c.search = s }
}

// WithWorkerConfig sets the worker config.
func WithWorkerConfig(w WorkerConfig) AppConfigOption {
	return func(c *AppConfig) { c.worker = w }
}

// WithIndexConfig sets the index config.
func WithIndexConfig(i IndexConfig) AppConfigOption {
	return func(c *AppConfig) { c.index = i }
}

// Apply returns a copy with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
