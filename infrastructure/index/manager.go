package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// unitNormTolerance is how far a vector's L2 norm may stray from 1 before
// Add rejects it.
const unitNormTolerance = 1e-3

// Key identifies an indexed record.
type Key struct {
	RecordID string
	Kind     record.Kind
}

// Hit is a single index match.
type Hit struct {
	Key   Key
	Score float64
}

// Mapping mirrors one index entry in the database so the index can be
// audited and rebuilt without the snapshot file.
type Mapping struct {
	InternalID   uint64
	RecordID     string
	Kind         record.Kind
	ModelVersion string
	Deleted      bool
}

// MappingStore persists index entry mappings.
type MappingStore interface {
	// Append records a new live entry.
	Append(ctx context.Context, m Mapping) error

	// MarkDeleted flags entries as tombstoned.
	MarkDeleted(ctx context.Context, internalIDs []uint64) error

	// List returns all mappings for a model version.
	List(ctx context.Context, modelVersion string) ([]Mapping, error)

	// Replace atomically swaps all mappings of a model version.
	Replace(ctx context.Context, modelVersion string, mappings []Mapping) error
}

// Manager owns the in-memory vector index: one live entry per record,
// tombstoned deletes, periodic snapshots and full rebuilds from stored
// embeddings. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	cfg      config.IndexConfig
	mappings MappingStore
	logger   *slog.Logger

	modelVersion string
	store        *flatStore
	keys         map[uint64]Key
	live         map[Key]uint64
	tombstones   map[uint64]struct{}
	nextID       uint64
	dirty        int
	valid        bool
}

// NewManager creates an empty, valid Manager for the given model version.
// The dimension is fixed by the first vector added or loaded.
func NewManager(cfg config.IndexConfig, modelVersion string, mappings MappingStore, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		mappings:     mappings,
		logger:       logger,
		modelVersion: modelVersion,
		store:        newFlatStore(0),
		keys:         make(map[uint64]Key),
		live:         make(map[Key]uint64),
		tombstones:   make(map[uint64]struct{}),
		nextID:       1,
		valid:        true,
	}
}

// Valid reports whether the index can serve searches. An index left
// invalid by a failed load recovers through RebuildFromEmbeddings.
func (m *Manager) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valid
}

// ModelVersion returns the embedding model version the index was built for.
func (m *Manager) ModelVersion() string { return m.modelVersion }

// Dimension returns the vector dimension, or 0 while the index is empty.
func (m *Manager) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.dim
}

// Live returns the number of searchable entries.
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// Size returns the total number of stored entries, tombstoned included.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.size()
}

// Add indexes a vector for a record. A previous live entry for the same
// record is tombstoned first, so at most one entry per record is
// searchable. The vector must be unit normalized.
func (m *Manager) Add(ctx context.Context, key Key, vector []float32) error {
	if !key.Kind.Valid() {
		return fmt.Errorf("%w: invalid kind %q", search.ErrIndex, key.Kind)
	}
	if err := checkUnitNorm(vector); err != nil {
		return fmt.Errorf("%w: %v", search.ErrIndex, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.dim == 0 {
		m.store.dim = len(vector)
	}
	if len(vector) != m.store.dim {
		return fmt.Errorf("%w: dimension %d, index expects %d", search.ErrIndex, len(vector), m.store.dim)
	}

	if prev, ok := m.live[key]; ok {
		m.tombstones[prev] = struct{}{}
		delete(m.live, key)
		if err := m.mappings.MarkDeleted(ctx, []uint64{prev}); err != nil {
			return fmt.Errorf("tombstone previous entry: %w", err)
		}
	}

	id := m.nextID
	m.nextID++

	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.store.add(id, cp)
	m.keys[id] = key
	m.live[key] = id

	if err := m.mappings.Append(ctx, Mapping{
		InternalID:   id,
		RecordID:     key.RecordID,
		Kind:         key.Kind,
		ModelVersion: m.modelVersion,
	}); err != nil {
		return fmt.Errorf("persist mapping: %w", err)
	}

	m.dirty++
	return m.maybeSaveLocked()
}

// Tombstone removes a record from search. Unknown keys are a no-op.
func (m *Manager) Tombstone(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.live[key]
	if !ok {
		return nil
	}
	m.tombstones[id] = struct{}{}
	delete(m.live, key)
	if err := m.mappings.MarkDeleted(ctx, []uint64{id}); err != nil {
		return fmt.Errorf("persist tombstone: %w", err)
	}

	m.dirty++
	return m.maybeSaveLocked()
}

// Search returns up to k live entries most similar to the query vector,
// scored by cosine similarity in descending order. A non-nil kind filters
// results to that record kind.
func (m *Manager) Search(_ context.Context, vector []float32, kind *record.Kind, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.valid {
		return nil, fmt.Errorf("%w: index requires rebuild", search.ErrUnavailable)
	}
	if m.store.size() == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.store.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index expects %d", search.ErrIndex, len(vector), m.store.dim)
	}

	skip := func(id uint64) bool {
		if _, dead := m.tombstones[id]; dead {
			return true
		}
		if kind != nil && m.keys[id].Kind != *kind {
			return true
		}
		return false
	}

	scoredHits := m.store.search(vector, k, skip)
	hits := make([]Hit, 0, len(scoredHits))
	for _, s := range scoredHits {
		hits = append(hits, Hit{Key: m.keys[s.internalID], Score: s.score})
	}
	return hits, nil
}

// Save writes a snapshot to the configured path. When the tombstone count
// exceeds the rebuild threshold the index is compacted first.
func (m *Manager) Save(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) maybeSaveLocked() error {
	switch m.cfg.SavePolicy() {
	case config.SaveEveryMutation:
		return m.saveLocked()
	case config.SaveEveryN:
		if m.dirty >= m.cfg.SaveEvery() {
			return m.saveLocked()
		}
	case config.SaveOnShutdown:
	}
	return nil
}

func (m *Manager) saveLocked() error {
	if !m.valid {
		return fmt.Errorf("%w: refusing to snapshot an invalid index", search.ErrIndex)
	}
	if len(m.tombstones) >= m.cfg.RebuildThreshold() {
		m.compactLocked()
	}

	entries := make([]snapshotEntry, 0, m.store.size())
	for i, id := range m.store.ids {
		key := m.keys[id]
		entries = append(entries, snapshotEntry{
			InternalID: id,
			RecordID:   key.RecordID,
			Kind:       key.Kind.String(),
			Vector:     m.store.vecs[i],
		})
	}
	tombs := make([]uint64, 0, len(m.tombstones))
	for id := range m.tombstones {
		tombs = append(tombs, id)
	}
	sort.Slice(tombs, func(i, j int) bool { return tombs[i] < tombs[j] })

	snap := snapshot{
		Header: snapshotHeader{
			ModelVersion: m.modelVersion,
			Dimension:    m.store.dim,
			Size:         len(entries),
			CreatedAt:    time.Now().UTC(),
		},
		Entries:    entries,
		Tombstones: tombs,
		NextID:     m.nextID,
	}
	if err := writeSnapshot(m.cfg.SnapshotPath(), snap); err != nil {
		return err
	}

	m.dirty = 0
	m.logger.Debug("index snapshot written",
		"path", m.cfg.SnapshotPath(),
		"entries", len(entries),
		"tombstones", len(tombs))
	return nil
}

// compactLocked drops tombstoned entries from the in-memory store.
func (m *Manager) compactLocked() {
	compacted := newFlatStore(m.store.dim)
	keys := make(map[uint64]Key, len(m.live))
	for i, id := range m.store.ids {
		if _, dead := m.tombstones[id]; dead {
			delete(m.keys, id)
			continue
		}
		compacted.add(id, m.store.vecs[i])
		keys[id] = m.keys[id]
	}
	m.store = compacted
	m.keys = keys
	m.tombstones = make(map[uint64]struct{})
	m.logger.Info("index compacted", "live", compacted.size())
}

// Load restores the index from its snapshot. A missing snapshot leaves the
// index empty and valid. A corrupt or stale snapshot (wrong model version)
// marks the index invalid and returns an error; callers recover by calling
// RebuildFromEmbeddings.
func (m *Manager) Load(_ context.Context) error {
	snap, err := readSnapshot(m.cfg.SnapshotPath())
	if os.IsNotExist(err) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil && snap.Header.ModelVersion != m.modelVersion {
		err = fmt.Errorf("snapshot model version %q, index expects %q",
			snap.Header.ModelVersion, m.modelVersion)
	}
	if err != nil {
		m.valid = false
		return fmt.Errorf("%w: load snapshot: %v", search.ErrIndex, err)
	}

	store := newFlatStore(snap.Header.Dimension)
	keys := make(map[uint64]Key, len(snap.Entries))
	live := make(map[Key]uint64, len(snap.Entries))
	tombstones := make(map[uint64]struct{}, len(snap.Tombstones))
	for _, id := range snap.Tombstones {
		tombstones[id] = struct{}{}
	}
	for _, e := range snap.Entries {
		kind, _ := record.ParseKind(e.Kind)
		key := Key{RecordID: e.RecordID, Kind: kind}
		store.add(e.InternalID, e.Vector)
		keys[e.InternalID] = key
		if _, dead := tombstones[e.InternalID]; !dead {
			live[key] = e.InternalID
		}
	}

	m.store = store
	m.keys = keys
	m.live = live
	m.tombstones = tombstones
	m.nextID = snap.NextID
	m.dirty = 0
	m.valid = true

	m.logger.Info("index snapshot loaded",
		"path", m.cfg.SnapshotPath(),
		"live", len(live),
		"model_version", m.modelVersion)
	return nil
}

// RebuildFromEmbeddings reconstructs the index from stored embeddings. The
// replacement is built aside and swapped in, so concurrent searches keep
// running against the old state until the swap. Embeddings of a different
// model version are skipped.
func (m *Manager) RebuildFromEmbeddings(ctx context.Context, embeddings []search.StoredEmbedding) error {
	kept := make([]search.StoredEmbedding, 0, len(embeddings))
	for _, e := range embeddings {
		if e.ModelVersion() == m.modelVersion && e.Kind().Valid() {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Kind() != kept[j].Kind() {
			return kept[i].Kind() < kept[j].Kind()
		}
		return kept[i].RecordID() < kept[j].RecordID()
	})

	dim := 0
	store := newFlatStore(0)
	keys := make(map[uint64]Key, len(kept))
	live := make(map[Key]uint64, len(kept))
	mappings := make([]Mapping, 0, len(kept))
	var nextID uint64 = 1
	for _, e := range kept {
		vec := e.Vector()
		if dim == 0 {
			dim = len(vec)
			store.dim = dim
		}
		if len(vec) != dim {
			return fmt.Errorf("%w: rebuild found vector of dimension %d, want %d",
				search.ErrIndex, len(vec), dim)
		}
		key := Key{RecordID: e.RecordID(), Kind: e.Kind()}
		id := nextID
		nextID++
		store.add(id, vec)
		keys[id] = key
		live[key] = id
		mappings = append(mappings, Mapping{
			InternalID:   id,
			RecordID:     key.RecordID,
			Kind:         key.Kind,
			ModelVersion: m.modelVersion,
		})
	}

	if err := m.mappings.Replace(ctx, m.modelVersion, mappings); err != nil {
		return fmt.Errorf("replace mappings: %w", err)
	}

	m.mu.Lock()
	m.store = store
	m.keys = keys
	m.live = live
	m.tombstones = make(map[uint64]struct{})
	m.nextID = nextID
	m.dirty = 0
	m.valid = true
	err := m.saveLocked()
	m.mu.Unlock()

	m.logger.Info("index rebuilt", "live", len(live), "model_version", m.modelVersion)
	return err
}

func checkUnitNorm(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector")
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) > unitNormTolerance {
		return fmt.Errorf("vector norm %.4f is not unit", norm)
	}
	return nil
}
