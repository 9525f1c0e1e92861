package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// slowProvider blocks until the context is cancelled.
type slowProvider struct {
	name search.ProviderName
}

func (p *slowProvider) Name() search.ProviderName          { return p.name }
func (p *slowProvider) Available(context.Context) bool     { return true }
func (p *slowProvider) RebuildIndex(context.Context) error { return nil }

func (p *slowProvider) Search(ctx context.Context, _ string, _ search.Options) ([]search.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *slowProvider) FindDuplicates(ctx context.Context, _ search.DuplicateRequest) ([]search.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestProbe(vector, text search.Provider, cfg config.SearchConfig) *DuplicateProbe {
	o := newTestOrchestrator(vector, text, nil, cfg)
	return NewDuplicateProbe(o, cfg, slog.Default())
}

func TestProbeFindsCandidates(t *testing.T) {
	vector := &scriptedProvider{
		name:      search.ProviderVector,
		available: true,
		results: []search.Result{
			result("exp-1", record.KindExperience, 0.7, search.ProviderVector),
		},
	}
	text := &scriptedProvider{name: search.ProviderText, available: true}
	probe := newTestProbe(vector, text, config.NewSearchConfig())

	res := probe.Check(context.Background(), search.DuplicateRequest{
		Title: "OAuth refresh",
		Body:  "Rotate tokens.",
		Kind:  record.KindExperience,
	})

	require.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Recommendation)
	assert.Empty(t, res.Warnings)
}

func TestProbeRecommendsReviewAboveThreshold(t *testing.T) {
	vector := &scriptedProvider{
		name:      search.ProviderVector,
		available: true,
		results: []search.Result{
			result("exp-1", record.KindExperience, 0.7, search.ProviderVector),
			result("exp-2", record.KindExperience, 0.9, search.ProviderVector),
		},
	}
	text := &scriptedProvider{name: search.ProviderText, available: true}
	probe := newTestProbe(vector, text, config.NewSearchConfig())

	res := probe.Check(context.Background(), search.DuplicateRequest{
		Title: "OAuth refresh",
		Body:  "Rotate tokens.",
		Kind:  record.KindExperience,
	})
	assert.Equal(t, RecommendReviewFirst, res.Recommendation)
}

func TestProbeTimeoutDegrades(t *testing.T) {
	vector := &slowProvider{name: search.ProviderVector}
	text := &scriptedProvider{name: search.ProviderText, available: true}
	cfg := config.NewSearchConfig().
		WithDuplicateTimeout(20 * time.Millisecond).
		WithFallbackEnabled(false)
	probe := newTestProbe(vector, text, cfg)

	start := time.Now()
	res := probe.Check(context.Background(), search.DuplicateRequest{
		Title: "OAuth refresh",
		Body:  "Rotate tokens.",
		Kind:  record.KindExperience,
	})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, res.Candidates)
	assert.Contains(t, res.Warnings, "duplicate_check_timeout=true")
	assert.Empty(t, res.Recommendation)
}

func TestProbeProviderErrorDegrades(t *testing.T) {
	vector := &scriptedProvider{
		name:      search.ProviderVector,
		available: true,
		failures:  100,
		failWith:  fmt.Errorf("%w: broken", search.ErrProvider),
	}
	text := &scriptedProvider{
		name:      search.ProviderText,
		available: true,
		failures:  100,
		failWith:  fmt.Errorf("%w: also broken", search.ErrProvider),
	}
	cfg := config.NewSearchConfig().WithMaxRetries(0)
	probe := newTestProbe(vector, text, cfg)

	res := probe.Check(context.Background(), search.DuplicateRequest{
		Title: "OAuth refresh",
		Body:  "Rotate tokens.",
		Kind:  record.KindExperience,
	})
	assert.Empty(t, res.Candidates)
	assert.Contains(t, res.Warnings, "duplicate_check_failed=true")
}

func TestProbeAppliesDefaultThreshold(t *testing.T) {
	var captured search.DuplicateRequest
	vector := &capturingProvider{name: search.ProviderVector, captured: &captured}
	text := &scriptedProvider{name: search.ProviderText, available: true}
	probe := newTestProbe(vector, text, config.NewSearchConfig())

	probe.Check(context.Background(), search.DuplicateRequest{
		Title: "OAuth refresh",
		Body:  "Rotate tokens.",
		Kind:  record.KindExperience,
	})
	assert.InDelta(t, config.DefaultDuplicateThreshold, captured.Threshold, 1e-9)
}

// capturingProvider records the duplicate request it receives.
type capturingProvider struct {
	name     search.ProviderName
	captured *search.DuplicateRequest
}

func (p *capturingProvider) Name() search.ProviderName          { return p.name }
func (p *capturingProvider) Available(context.Context) bool     { return true }
func (p *capturingProvider) RebuildIndex(context.Context) error { return nil }

func (p *capturingProvider) Search(context.Context, string, search.Options) ([]search.Result, error) {
	return nil, nil
}

func (p *capturingProvider) FindDuplicates(_ context.Context, req search.DuplicateRequest) ([]search.Result, error) {
	*p.captured = req
	return []search.Result{}, nil
}
