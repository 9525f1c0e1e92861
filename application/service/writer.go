package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// RecordWriteStore is the record store surface the write pipeline needs.
type RecordWriteStore interface {
	Create(ctx context.Context, rec record.Record) error
	Update(ctx context.Context, rec record.Record) (record.Record, error)
	Delete(ctx context.Context, id string, kind record.Kind) error
	Get(ctx context.Context, id string, kind record.Kind) (record.Record, error)
}

// IndexTombstoner removes records from search.
type IndexTombstoner interface {
	Tombstone(ctx context.Context, recordID string, kind record.Kind) error
}

// EmbeddingDeleter removes stored embeddings.
type EmbeddingDeleter interface {
	DeleteFor(ctx context.Context, recordID string, kind record.Kind) error
}

// Writer is the record write pipeline: validate, probe for duplicates,
// commit. Probe problems degrade to warnings; a write never fails because
// of them.
type Writer struct {
	records    RecordWriteStore
	embeddings EmbeddingDeleter
	index      IndexTombstoner
	probe      *DuplicateProbe
	logger     *slog.Logger
}

// NewWriter creates a Writer. The index tombstoner may be nil when no
// vector index is running.
func NewWriter(
	records RecordWriteStore,
	embeddings EmbeddingDeleter,
	index IndexTombstoner,
	probe *DuplicateProbe,
	logger *slog.Logger,
) *Writer {
	return &Writer{
		records:    records,
		embeddings: embeddings,
		index:      index,
		probe:      probe,
		logger:     logger,
	}
}

// Create validates and stores a new record, returning the duplicate probe
// outcome alongside it. The record starts with a pending embedding status;
// the worker picks it up.
func (w *Writer) Create(ctx context.Context, rec record.Record) (ProbeResult, error) {
	if err := validateRecord(rec); err != nil {
		return ProbeResult{}, err
	}

	probe := w.probe.Check(ctx, search.DuplicateRequest{
		Title:    rec.Title(),
		Body:     rec.Body(),
		Kind:     rec.Kind(),
		Category: rec.CategoryCode(),
	})

	if err := w.records.Create(ctx, rec); err != nil {
		return ProbeResult{}, err
	}
	w.logger.Info("record created",
		"record_id", rec.ID(), "kind", rec.Kind().String())
	return probe, nil
}

// Update validates and stores changes to an existing record. The probe
// excludes the record itself from its own duplicate candidates.
func (w *Writer) Update(ctx context.Context, rec record.Record) (record.Record, ProbeResult, error) {
	if err := validateRecord(rec); err != nil {
		return record.Record{}, ProbeResult{}, err
	}

	probe := w.probe.Check(ctx, search.DuplicateRequest{
		Title:     rec.Title(),
		Body:      rec.Body(),
		Kind:      rec.Kind(),
		Category:  rec.CategoryCode(),
		ExcludeID: rec.ID(),
	})

	updated, err := w.records.Update(ctx, rec)
	if err != nil {
		return record.Record{}, ProbeResult{}, err
	}
	w.logger.Info("record updated",
		"record_id", rec.ID(), "kind", rec.Kind().String(),
		"embedding_status", string(updated.EmbeddingStatus()))
	return updated, probe, nil
}

// Delete removes a record, its stored embeddings, and its index entry.
// The index tombstone is best-effort; the next rebuild reconciles.
func (w *Writer) Delete(ctx context.Context, id string, kind record.Kind) error {
	if err := w.records.Delete(ctx, id, kind); err != nil {
		return err
	}
	if err := w.embeddings.DeleteFor(ctx, id, kind); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if w.index != nil {
		if err := w.index.Tombstone(ctx, id, kind); err != nil {
			w.logger.Warn("index tombstone failed, rebuild will reconcile",
				"record_id", id, "kind", kind.String(), "error", err)
		}
	}
	w.logger.Info("record deleted", "record_id", id, "kind", kind.String())
	return nil
}

func validateRecord(rec record.Record) error {
	if strings.TrimSpace(rec.ID()) == "" {
		return fmt.Errorf("%w: record id is required", search.ErrValidation)
	}
	if !rec.Kind().Valid() {
		return fmt.Errorf("%w: unknown record kind %q", search.ErrValidation, rec.Kind())
	}
	if strings.TrimSpace(rec.Title()) == "" {
		return fmt.Errorf("%w: title is required", search.ErrValidation)
	}
	if strings.TrimSpace(rec.Body()) == "" {
		return fmt.Errorf("%w: body is required", search.ErrValidation)
	}
	return nil
}
