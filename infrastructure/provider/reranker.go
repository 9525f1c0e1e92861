package provider

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// rerankConcurrency caps in-flight reranker API calls.
const rerankConcurrency = 4

const rerankSystemPrompt = "You judge whether a document is relevant to a task. " +
	"Answer with a single word: yes or no."

// OpenAIReranker scores (query, document) pairs through an
// OpenAI-compatible chat API. Each document is judged with a yes/no
// question; the relevance score is the model's probability of answering
// yes, read from token logprobs.
type OpenAIReranker struct {
	client        *openai.Client
	model         string
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewOpenAIReranker creates a reranker from an endpoint config.
func NewOpenAIReranker(endpoint config.Endpoint) *OpenAIReranker {
	clientCfg := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		clientCfg.BaseURL = endpoint.BaseURL()
	}
	if endpoint.Timeout() > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: endpoint.Timeout()}
	}

	return &OpenAIReranker{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         endpoint.Model(),
		maxRetries:    3,
		initialDelay:  time.Second,
		backoffFactor: 2.0,
	}
}

// Rerank scores each document's relevance to the query in [0, 1].
func (r *OpenAIReranker) Rerank(ctx context.Context, query search.RerankQuery, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	scores := make([]float64, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankConcurrency)

	for i, doc := range documents {
		g.Go(func() error {
			score, err := r.scoreOne(gctx, query, doc)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *OpenAIReranker) scoreOne(ctx context.Context, query search.RerankQuery, document string) (float64, error) {
	prompt := rerankPrompt(query, document)
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   1,
		Temperature: 0,
		LogProbs:    true,
		TopLogProbs: 5,
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, r.maxRetries, r.initialDelay, r.backoffFactor, func() error {
		var err error
		resp, err = r.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return 0, wrapOpenAIError("rerank", err)
	}
	if len(resp.Choices) == 0 {
		return 0, NewProviderError("rerank", 0, "no choices in response", nil)
	}

	choice := resp.Choices[0]
	if score, ok := yesProbability(choice.LogProbs); ok {
		return score, nil
	}

	// Some gateways strip logprobs. Fall back to the literal answer.
	switch strings.ToLower(strings.TrimSpace(choice.Message.Content)) {
	case "yes":
		return 1.0, nil
	default:
		return 0.0, nil
	}
}

func rerankPrompt(query search.RerankQuery, document string) string {
	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(query.Task())
	if query.Search() != "" && query.Search() != query.Task() {
		b.WriteString("\n\nKeywords: ")
		b.WriteString(query.Search())
	}
	b.WriteString("\n\nDocument:\n")
	b.WriteString(document)
	b.WriteString("\n\nIs this document relevant to the task? Answer yes or no.")
	return b.String()
}

// yesProbability reads P(yes) from the first generated token's logprobs.
// When both yes and no appear among the top candidates the two are
// normalized against each other; otherwise the chosen token's own
// probability (or its complement for no) is used.
func yesProbability(logprobs *openai.LogProbs) (float64, bool) {
	if logprobs == nil || len(logprobs.Content) == 0 {
		return 0, false
	}
	first := logprobs.Content[0]

	var yesProb, noProb float64
	var sawYes, sawNo bool
	consider := func(token string, logprob float64) {
		switch strings.ToLower(strings.TrimSpace(token)) {
		case "yes":
			if !sawYes {
				yesProb = math.Exp(logprob)
				sawYes = true
			}
		case "no":
			if !sawNo {
				noProb = math.Exp(logprob)
				sawNo = true
			}
		}
	}

	consider(first.Token, first.LogProb)
	for _, top := range first.TopLogProbs {
		consider(top.Token, top.LogProb)
	}

	switch {
	case sawYes && sawNo:
		return yesProb / (yesProb + noProb), true
	case sawYes:
		return yesProb, true
	case sawNo:
		return 1 - noProb, true
	default:
		return 0, false
	}
}

var _ search.Reranker = (*OpenAIReranker)(nil)
