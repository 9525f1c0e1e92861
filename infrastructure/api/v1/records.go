package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

func (h *Handlers) createRecord(w http.ResponseWriter, r *http.Request) {
	var req WriteRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", search.ErrValidation, err))
		return
	}

	rec, err := recordFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}

	probe, err := h.writer.Create(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, WriteRecordResponse{
		Record:     toRecordDTO(rec),
		Duplicates: toDuplicatesDTO(probe),
	})
}

func (h *Handlers) updateRecord(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req WriteRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", search.ErrValidation, err))
		return
	}
	req.ID = id
	req.Kind = kind.String()

	rec, err := recordFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, probe, err := h.writer.Update(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WriteRecordResponse{
		Record:     toRecordDTO(updated),
		Duplicates: toDuplicatesDTO(probe),
	})
}

func (h *Handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.records.Get(r.Context(), id, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

func (h *Handlers) deleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.writer.Delete(r.Context(), id, kind); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathIdentity(r *http.Request) (record.Kind, string, error) {
	kind, err := record.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", search.ErrValidation, err)
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		return "", "", fmt.Errorf("%w: record id is required", search.ErrValidation)
	}
	return kind, id, nil
}

func recordFromRequest(req WriteRecordRequest) (record.Record, error) {
	kind, err := record.ParseKind(req.Kind)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", search.ErrValidation, err)
	}
	rec := record.New(req.ID, kind, req.Title, req.Body).
		WithSummary(req.Summary).
		WithCategory(req.CategoryCode).
		WithAuthor(req.Author).
		WithSection(req.Section)
	return rec, nil
}
