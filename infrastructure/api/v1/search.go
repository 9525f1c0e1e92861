package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/praxishq/praxis/application/service"
	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// search handles GET /api/v1/search. Query parameters: q (required),
// kinds (comma-separated), category, limit, offset, min_score, author,
// section.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := params.Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, fmt.Errorf("%w: query parameter q is required", search.ErrValidation))
		return
	}

	kinds, err := parseKinds(params.Get("kinds"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", search.ErrValidation, err))
		return
	}

	limit, err := parseIntParam(params.Get("limit"), 0)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid limit", search.ErrValidation))
		return
	}
	offset, err := parseIntParam(params.Get("offset"), 0)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid offset", search.ErrValidation))
		return
	}

	var minScore *float64
	if raw := params.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid min_score", search.ErrValidation))
			return
		}
		minScore = &v
	}

	resp, err := h.orchestrator.UnifiedSearch(
		r.Context(),
		query,
		kinds,
		params.Get("category"),
		limit, offset,
		minScore,
		service.Filters{
			Author:  params.Get("author"),
			Section: params.Get("section"),
		},
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results:  toResultDTOs(resp.Results),
		Total:    resp.Total,
		Degraded: resp.Degraded,
		Provider: string(resp.Provider),
		Warnings: resp.Warnings,
	})
}

func parseKinds(raw string) ([]record.Kind, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var kinds []record.Kind
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := record.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func parseIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
