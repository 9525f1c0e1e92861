package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// leaseName is the single lease all embedding workers compete for.
const leaseName = "embedding-worker"

// followerSleepCap bounds how long a follower sleeps before re-checking
// the lease.
const followerSleepCap = 2 * time.Second

// LeaseStore is the leader-election surface the worker needs.
type LeaseStore interface {
	// Acquire attempts to take or renew the named lease for owner.
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)

	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, name, owner string) error
}

// IndexWriter is the incremental index surface the worker feeds.
type IndexWriter interface {
	Add(ctx context.Context, recordID string, kind record.Kind, vector []float32) error
}

// WorkerStats is a snapshot of worker activity.
type WorkerStats struct {
	TotalProcessed int
	TotalSucceeded int
	TotalFailed    int
	TotalRetried   int
	LastRun        time.Time
	LastBatchSize  int
	IsRunning      bool
	IsPaused       bool
	IsLeader       bool
}

// Worker asynchronously brings records from pending or failed to embedded.
// Every process runs one, but a database-backed lease keeps a single
// leader claiming records at any time.
type Worker struct {
	records  record.Store
	store    search.EmbeddingStore
	embedder search.Embedder
	index    IndexWriter
	leases   LeaseStore
	cfg      config.WorkerConfig
	logger   *slog.Logger

	owner string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	paused      bool
	running     bool
	leader      bool
	leasedUntil time.Time
	nextRefresh time.Time
	stats       WorkerStats
}

// NewWorker creates an embedding worker. The index writer may be nil; the
// next rebuild then picks up new embeddings.
func NewWorker(
	records record.Store,
	store search.EmbeddingStore,
	embedder search.Embedder,
	index IndexWriter,
	leases LeaseStore,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		records:  records,
		store:    store,
		embedder: embedder,
		index:    index,
		leases:   leases,
		cfg:      cfg,
		logger:   logger,
		owner:    leaseOwner(),
	}
}

// leaseOwner builds the lease owner identity: "{hostname}:{pid}:{uuid8}".
func leaseOwner() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()[:8])
}

// Owner returns this worker's lease owner identity.
func (w *Worker) Owner() string { return w.owner }

// Start launches the worker loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stats.IsRunning = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	w.logger.Info("embedding worker started",
		"owner", w.owner,
		"lease_ttl", w.cfg.LeaseTTL(),
		"poll_interval", w.cfg.PollInterval())
}

// Stop cancels the loop, waits for the in-flight batch, and releases the
// lease best-effort.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	wasLeader := w.leader
	w.running = false
	w.stats.IsRunning = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	if wasLeader {
		ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if err := w.leases.Release(ctx, leaseName, w.owner); err != nil {
			w.logger.Warn("lease release failed", "error", err)
		}
	}
	w.logger.Info("embedding worker stopped", "owner", w.owner)
}

// Pause keeps the worker renewing its lease but stops it claiming records,
// so leadership does not hand off spuriously.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
	w.stats.IsPaused = true
	w.logger.Info("embedding worker paused")
}

// Resume lets a paused worker claim records again.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
	w.stats.IsPaused = false
	w.logger.Info("embedding worker resumed")
}

// Stats returns a snapshot of worker activity.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	stats.IsLeader = w.leader
	return stats
}

func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		leader, err := w.ensureLease(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("lease check failed", "error", err)
			leader = false
		}

		if leader {
			if !w.isPaused() {
				if err := w.processBatch(ctx, false); err != nil && ctx.Err() == nil {
					w.logger.Error("batch processing failed", "error", err)
				}
			}
			if !sleepCtx(ctx, w.cfg.PollInterval()) {
				return
			}
			continue
		}

		sleep := w.cfg.PollInterval()
		if sleep > followerSleepCap {
			sleep = followerSleepCap
		}
		if !sleepCtx(ctx, sleep) {
			return
		}
	}
}

// ensureLease keeps the local lease fresh: as long as the lease is
// unexpired and the half-TTL refresh point has not passed, the current
// role stands. Otherwise it races for the row.
func (w *Worker) ensureLease(ctx context.Context) (bool, error) {
	w.mu.Lock()
	now := time.Now()
	if w.leader && now.Before(w.leasedUntil) && now.Before(w.nextRefresh) {
		w.mu.Unlock()
		return true, nil
	}
	w.mu.Unlock()

	acquired, err := w.leases.Acquire(ctx, leaseName, w.owner, w.cfg.LeaseTTL())
	if err != nil {
		w.demote()
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	wasLeader := w.leader
	w.leader = acquired
	if acquired {
		now = time.Now()
		w.leasedUntil = now.Add(w.cfg.LeaseTTL())
		w.nextRefresh = now.Add(w.cfg.LeaseTTL() / 2)
		if !wasLeader {
			w.logger.Info("lease acquired, acting as leader", "owner", w.owner)
		}
	} else if wasLeader {
		w.logger.Info("lease lost, demoting to follower", "owner", w.owner)
	}
	return acquired, nil
}

func (w *Worker) demote() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.leader {
		w.logger.Info("lease renewal failed, demoting to follower", "owner", w.owner)
	}
	w.leader = false
}

func (w *Worker) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// ProcessBatch claims and embeds one batch of pending records. Exported
// for on-demand processing; the loop calls it on every leader iteration.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	return w.processBatch(ctx, false)
}

// RetryFailed runs one batch over records whose embedding previously
// failed.
func (w *Worker) RetryFailed(ctx context.Context) error {
	return w.processBatch(ctx, true)
}

func (w *Worker) processBatch(ctx context.Context, retryFailed bool) error {
	var batch []record.Record
	var err error
	if retryFailed {
		batch, err = w.records.ListFailed(ctx, nil, w.cfg.BatchSize())
	} else {
		batch, err = w.records.ListPending(ctx, nil, w.cfg.BatchSize())
	}
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	w.mu.Lock()
	w.stats.LastRun = time.Now().UTC()
	w.stats.LastBatchSize = len(batch)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	w.logger.Info("processing embedding batch",
		"size", len(batch),
		"retry_failed", retryFailed)

	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.processRecord(ctx, rec, retryFailed)
	}
	return nil
}

// processRecord moves one record through processing to embedded or failed.
// An encoder failure never blocks the rest of the batch.
func (w *Worker) processRecord(ctx context.Context, rec record.Record, retried bool) {
	w.mu.Lock()
	w.stats.TotalProcessed++
	if retried {
		w.stats.TotalRetried++
	}
	w.mu.Unlock()

	if err := w.records.SetStatus(ctx, rec.ID(), rec.Kind(), record.StatusProcessing); err != nil {
		w.logger.Error("mark processing failed",
			"record_id", rec.ID(), "kind", rec.Kind().String(), "error", err)
		w.countFailure()
		return
	}

	vector, err := w.embedder.EncodeSingle(ctx, rec.EmbeddingText())
	if err != nil {
		w.logger.Error("encode failed",
			"record_id", rec.ID(), "kind", rec.Kind().String(), "error", err)
		if err := w.records.SetStatus(ctx, rec.ID(), rec.Kind(), record.StatusFailed); err != nil {
			w.logger.Error("mark failed failed", "record_id", rec.ID(), "error", err)
		}
		w.countFailure()
		return
	}

	embedding := search.NewStoredEmbedding(rec.ID(), rec.Kind(), w.embedder.ModelVersion(), vector)
	if err := w.store.Upsert(ctx, embedding); err != nil {
		w.logger.Error("store embedding failed",
			"record_id", rec.ID(), "kind", rec.Kind().String(), "error", err)
		if err := w.records.SetStatus(ctx, rec.ID(), rec.Kind(), record.StatusFailed); err != nil {
			w.logger.Error("mark failed failed", "record_id", rec.ID(), "error", err)
		}
		w.countFailure()
		return
	}

	if err := w.records.SetStatus(ctx, rec.ID(), rec.Kind(), record.StatusEmbedded); err != nil {
		w.logger.Error("mark embedded failed",
			"record_id", rec.ID(), "kind", rec.Kind().String(), "error", err)
		w.countFailure()
		return
	}

	// Best effort; the next rebuild reconciles the index with the store.
	if w.index != nil {
		if err := w.index.Add(ctx, rec.ID(), rec.Kind(), vector); err != nil {
			w.logger.Warn("index add failed, rebuild will reconcile",
				"record_id", rec.ID(), "kind", rec.Kind().String(), "error", err)
		}
	}

	w.mu.Lock()
	w.stats.TotalSucceeded++
	w.mu.Unlock()
}

func (w *Worker) countFailure() {
	w.mu.Lock()
	w.stats.TotalFailed++
	w.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
