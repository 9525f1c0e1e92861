package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/praxishq/praxis/domain/search"
	"github.com/praxishq/praxis/internal/config"
)

// errEmbeddingCountMismatch indicates the API returned fewer embedding
// vectors than requested. Retryable: transient upstream issues (e.g.
// rate-limiting behind a 200 status) can produce partial responses.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// knownDimensions maps common embedding models to their vector dimension,
// so Dimension is known before the first encode.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimension     atomic.Int64
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewOpenAIEmbedder creates an embedder from an endpoint config.
func NewOpenAIEmbedder(endpoint config.Endpoint) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		clientCfg.BaseURL = endpoint.BaseURL()
	}
	if endpoint.Timeout() > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: endpoint.Timeout()}
	}

	e := &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         endpoint.Model(),
		maxRetries:    5,
		initialDelay:  2 * time.Second,
		backoffFactor: 2.0,
	}
	if dim, ok := knownDimensions[endpoint.Model()]; ok {
		e.dimension.Store(int64(dim))
	}
	return e
}

// ModelVersion identifies the embedding model. Changing it invalidates all
// stored vectors.
func (e *OpenAIEmbedder) ModelVersion() string { return e.model }

// Dimension returns the vector dimension, or 0 before the first encode for
// models without a known dimension.
func (e *OpenAIEmbedder) Dimension() int { return int(e.dimension.Load()) }

// Encode generates one unit-normalized vector per input text in a single
// API call.
func (e *OpenAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}

	var resp openai.EmbeddingResponse
	err := withRetry(ctx, e.maxRetries, e.initialDelay, e.backoffFactor, func() error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts",
				errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return nil, wrapOpenAIError("embedding", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = normalize(data.Embedding)
	}
	if len(vectors) > 0 {
		e.dimension.Store(int64(len(vectors[0])))
	}
	return vectors, nil
}

// EncodeSingle encodes one text.
func (e *OpenAIEmbedder) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// normalize returns a unit-length copy of the vector. Most embedding APIs
// already return unit vectors; this guards against the ones that don't.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// withRetry executes the function with exponential backoff retry.
func withRetry(ctx context.Context, maxRetries int, initialDelay time.Duration, backoffFactor float64, fn func() error) error {
	delay := initialDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		// Network errors are retryable
		return true
	}

	return false
}

// wrapOpenAIError wraps an OpenAI error into a ProviderError.
func wrapOpenAIError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ search.Embedder = (*OpenAIEmbedder)(nil)
