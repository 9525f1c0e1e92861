// Package praxis provides a library for storing and searching a knowledge
// base of experiences (playbooks) and skills (manuals).
//
// Records are searched semantically through an embedding model and a
// vector index, with an optional reranker and an always-available text
// fallback. A background worker embeds new records asynchronously.
//
// Basic usage:
//
//	client, err := praxis.New(
//	    praxis.WithSQLite(".praxis/praxis.db"),
//	    praxis.WithEmbeddingEndpoint(endpoint),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	results, err := client.Search.UnifiedSearch(ctx,
//	    "[SEARCH] oauth refresh [TASK] design token rotation",
//	    nil, "", 10, 0, nil, service.Filters{})
package praxis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/praxishq/praxis/application/service"
	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/infrastructure/index"
	"github.com/praxishq/praxis/infrastructure/persistence"
	"github.com/praxishq/praxis/infrastructure/provider"
	infrasearch "github.com/praxishq/praxis/infrastructure/search"
	"github.com/praxishq/praxis/internal/database"
	"github.com/praxishq/praxis/internal/log"
)

// Client is the main entry point for the praxis library. The background
// embedding worker starts automatically when an embedder is available.
type Client struct {
	// Search routes queries through the configured providers.
	Search *service.Orchestrator

	// Writer is the record write pipeline with duplicate probing.
	Writer *service.Writer

	// Probe checks a prospective record for duplicates.
	Probe *service.DuplicateProbe

	// Worker is the background embedding worker.
	Worker *service.Worker

	// Records is the record store.
	Records *persistence.RecordStore

	db       database.Database
	manager  *index.Manager
	embedder search.Embedder
	logger   *slog.Logger
	closed   atomic.Bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.database == databaseUnset {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.New(log.FormatPretty, "INFO")
	}

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	if cfg.indexCfg.SnapshotPath() == "" {
		cfg.indexCfg = cfg.indexCfg.WithSnapshotPath(filepath.Join(cfg.dataDir, "index.snapshot"))
	}

	embedder, reranker := resolveProviders(cfg, logger)

	ctx := context.Background()
	db, err := database.New(ctx, buildDatabaseURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(ctx, db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	records := persistence.NewRecordStore(db)
	embeddings := persistence.NewEmbeddingStore(db)
	mappings := persistence.NewMappingStore(db)
	leases := persistence.NewLeaseStore(db)

	var manager *index.Manager
	var vector search.Provider
	if embedder != nil {
		manager = index.NewManager(cfg.indexCfg, embedder.ModelVersion(), mappings, logger)
		if err := manager.Load(ctx); err != nil {
			logger.Warn("index snapshot unusable, rebuilding from stored embeddings", "error", err)
			stored, listErr := embeddings.List(ctx, embedder.ModelVersion())
			if listErr != nil {
				errClose := db.Close()
				return nil, errors.Join(fmt.Errorf("list embeddings for rebuild: %w", listErr), errClose)
			}
			if rebuildErr := manager.RebuildFromEmbeddings(ctx, stored); rebuildErr != nil {
				errClose := db.Close()
				return nil, errors.Join(fmt.Errorf("rebuild index: %w", rebuildErr), errClose)
			}
		}
		vector = infrasearch.NewVectorProvider(embedder, reranker, manager, records, embeddings, cfg.searchCfg, logger)
	}

	text := infrasearch.NewTextProvider(records)
	orchestrator := service.NewOrchestrator(ctx, vector, text, records, cfg.searchCfg, logger)
	probe := service.NewDuplicateProbe(orchestrator, cfg.searchCfg, logger)

	var tombstoner service.IndexTombstoner
	var indexWriter service.IndexWriter
	if manager != nil {
		adapter := &managerAdapter{manager: manager}
		tombstoner = adapter
		indexWriter = adapter
	}
	writer := service.NewWriter(records, embeddings, tombstoner, probe, logger)

	worker := service.NewWorker(records, embeddings, embedder, indexWriter, leases, cfg.workerCfg, logger)
	if cfg.autoStartWorker && embedder != nil {
		worker.Start(ctx)
	}

	return &Client{
		Search:   orchestrator,
		Writer:   writer,
		Probe:    probe,
		Worker:   worker,
		Records:  records,
		db:       db,
		manager:  manager,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// resolveProviders picks the embedder and reranker: explicit instances
// first, then configured endpoints, then the local hugot model. No usable
// embedder leaves the client in text-only mode.
func resolveProviders(cfg *clientConfig, logger *slog.Logger) (search.Embedder, search.Reranker) {
	embedder := cfg.embedder
	if embedder == nil && cfg.embeddingEP.IsConfigured() {
		embedder = provider.NewOpenAIEmbedder(cfg.embeddingEP)
		logger.Info("remote embedding provider enabled", "model", cfg.embeddingEP.Model())
	}
	if embedder == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(cfg.dataDir, "models")
		}
		hugot := provider.NewHugotEmbedder(modelDir)
		if hugot.Available() {
			embedder = hugot
			logger.Info("built-in embedding provider enabled", "model_dir", modelDir)
		} else {
			logger.Warn("no embedding provider available, running in text-only mode",
				"model_dir", modelDir)
		}
	}

	reranker := cfg.reranker
	if reranker == nil && cfg.rerankerEP.IsConfigured() {
		reranker = provider.NewOpenAIReranker(cfg.rerankerEP)
		logger.Info("reranker enabled", "model", cfg.rerankerEP.Model())
	}
	return embedder, reranker
}

func buildDatabaseURL(cfg *clientConfig) string {
	if cfg.database == databaseSQLite {
		return "sqlite:///" + cfg.dbPath
	}
	return cfg.dbDSN
}

// RebuildIndex reconstructs the vector index from stored embeddings.
func (c *Client) RebuildIndex(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.Search.RebuildIndex(ctx)
}

// Close stops the worker, snapshots the index and closes the database.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.Worker.Stop()

	var errs []error
	if c.manager != nil {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.manager.Save(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save index snapshot: %w", err))
		}
		done()
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

// managerAdapter exposes the index manager through the narrow surfaces
// the application services consume.
type managerAdapter struct {
	manager *index.Manager
}

func (a *managerAdapter) Add(ctx context.Context, recordID string, kind record.Kind, vector []float32) error {
	return a.manager.Add(ctx, index.Key{RecordID: recordID, Kind: kind}, vector)
}

func (a *managerAdapter) Tombstone(ctx context.Context, recordID string, kind record.Kind) error {
	return a.manager.Tombstone(ctx, index.Key{RecordID: recordID, Kind: kind})
}
