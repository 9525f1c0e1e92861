package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// RecommendReviewFirst asks the writer to look at the candidates before
// committing a near-duplicate record.
const RecommendReviewFirst = "review_first"

// timeoutWarning is returned when the probe's deadline elapsed before the
// provider answered.
const timeoutWarning = "duplicate_check_timeout=true"

// ProbeResult is the outcome of a duplicate probe. A write never fails
// because of the probe: timeouts and provider errors degrade to warnings.
type ProbeResult struct {
	Candidates     []search.Result
	Recommendation string
	Warnings       []string
}

// DuplicateProbe is the bounded-time duplicate check issued by the write
// pipeline before committing a record.
type DuplicateProbe struct {
	orchestrator *Orchestrator
	cfg          config.SearchConfig
	logger       *slog.Logger
}

// NewDuplicateProbe creates a DuplicateProbe.
func NewDuplicateProbe(orchestrator *Orchestrator, cfg config.SearchConfig, logger *slog.Logger) *DuplicateProbe {
	return &DuplicateProbe{orchestrator: orchestrator, cfg: cfg, logger: logger}
}

// Check looks for existing records similar to the request within the
// configured deadline. When the deadline elapses first, it returns empty
// candidates and a timeout warning so the write proceeds.
func (p *DuplicateProbe) Check(ctx context.Context, req search.DuplicateRequest) ProbeResult {
	if req.Threshold == 0 {
		req.Threshold = p.cfg.DuplicateThreshold()
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DuplicateTimeout())
	defer cancel()

	type outcome struct {
		candidates []search.Result
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		candidates, err := p.orchestrator.FindDuplicates(ctx, req)
		done <- outcome{candidates: candidates, err: err}
	}()

	select {
	case <-ctx.Done():
		p.logger.Warn("duplicate probe timed out",
			"timeout", p.cfg.DuplicateTimeout(),
			"title", req.Title)
		return ProbeResult{Candidates: []search.Result{}, Warnings: []string{timeoutWarning}}
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return ProbeResult{Candidates: []search.Result{}, Warnings: []string{timeoutWarning}}
			}
			p.logger.Warn("duplicate probe failed", "error", out.err)
			return ProbeResult{
				Candidates: []search.Result{},
				Warnings:   []string{"duplicate_check_failed=true"},
			}
		}
		return ProbeResult{
			Candidates:     out.candidates,
			Recommendation: p.recommendation(out.candidates),
		}
	}
}

func (p *DuplicateProbe) recommendation(candidates []search.Result) string {
	for _, c := range candidates {
		if c.Score() >= p.cfg.RecommendThreshold() {
			return RecommendReviewFirst
		}
	}
	return ""
}
