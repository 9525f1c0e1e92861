package v1

import (
	"time"

	"github.com/praxishq/praxis/application/service"
	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// ResultDTO is one search or duplicate hit on the wire.
type ResultDTO struct {
	RecordID string  `json:"record_id"`
	Kind     string  `json:"kind"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Provider string  `json:"provider"`
	Rank     int     `json:"rank"`
	Degraded bool    `json:"degraded"`
	Hint     string  `json:"hint,omitempty"`
	Title    string  `json:"title"`
	Summary  string  `json:"summary,omitempty"`
}

func toResultDTO(r search.Result) ResultDTO {
	return ResultDTO{
		RecordID: r.RecordID(),
		Kind:     r.Kind().String(),
		Score:    r.Score(),
		Reason:   string(r.Reason()),
		Provider: string(r.Provider()),
		Rank:     r.Rank(),
		Degraded: r.Degraded(),
		Hint:     r.Hint(),
		Title:    r.Title(),
		Summary:  r.Summary(),
	}
}

func toResultDTOs(results []search.Result) []ResultDTO {
	out := make([]ResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, toResultDTO(r))
	}
	return out
}

// SearchResponse is the unified search reply.
type SearchResponse struct {
	Results  []ResultDTO `json:"results"`
	Total    int         `json:"total"`
	Degraded bool        `json:"degraded"`
	Provider string      `json:"provider"`
	Warnings []string    `json:"warnings,omitempty"`
}

// RecordDTO is a stored record on the wire.
type RecordDTO struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Summary         string    `json:"summary,omitempty"`
	CategoryCode    string    `json:"category_code,omitempty"`
	Author          string    `json:"author,omitempty"`
	Section         string    `json:"section,omitempty"`
	EmbeddingStatus string    `json:"embedding_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toRecordDTO(r record.Record) RecordDTO {
	return RecordDTO{
		ID:              r.ID(),
		Kind:            r.Kind().String(),
		Title:           r.Title(),
		Body:            r.Body(),
		Summary:         r.Summary(),
		CategoryCode:    r.CategoryCode(),
		Author:          r.Author(),
		Section:         r.Section(),
		EmbeddingStatus: string(r.EmbeddingStatus()),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
}

// WriteRecordRequest is the create/update payload.
type WriteRecordRequest struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	Summary      string `json:"summary,omitempty"`
	CategoryCode string `json:"category_code,omitempty"`
	Author       string `json:"author,omitempty"`
	Section      string `json:"section,omitempty"`
}

// DuplicatesDTO is the duplicate probe outcome attached to write replies.
type DuplicatesDTO struct {
	Candidates     []ResultDTO `json:"candidates"`
	Recommendation string      `json:"recommendation,omitempty"`
	Warnings       []string    `json:"warnings,omitempty"`
}

func toDuplicatesDTO(p service.ProbeResult) DuplicatesDTO {
	return DuplicatesDTO{
		Candidates:     toResultDTOs(p.Candidates),
		Recommendation: p.Recommendation,
		Warnings:       p.Warnings,
	}
}

// WriteRecordResponse is the create/update reply: the stored record plus
// the duplicate probe outcome.
type WriteRecordResponse struct {
	Record     RecordDTO     `json:"record"`
	Duplicates DuplicatesDTO `json:"duplicates"`
}

// WorkerStatsResponse mirrors the embedding worker's counters.
type WorkerStatsResponse struct {
	TotalProcessed int       `json:"total_processed"`
	TotalSucceeded int       `json:"total_succeeded"`
	TotalFailed    int       `json:"total_failed"`
	TotalRetried   int       `json:"total_retried"`
	LastRun        time.Time `json:"last_run"`
	LastBatchSize  int       `json:"last_batch_size"`
	IsRunning      bool      `json:"is_running"`
	IsPaused       bool      `json:"is_paused"`
	IsLeader       bool      `json:"is_leader"`
}
