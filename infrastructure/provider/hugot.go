package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/praxishq/praxis/domain/search"
)

const hugotBatchMax = 10

// ortSingleton holds the process-wide ONNX Runtime session and pipeline.
// ORT only allows one active session per process, so all HugotEmbedder
// instances must share it. The mutex serializes both initialization and
// inference (ORT is not thread-safe).
var ortSingleton struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	mu       sync.Mutex
	ready    bool
}

// HugotEmbedder generates embeddings locally from an ONNX model on disk.
// It is the zero-configuration fallback when no remote embedding endpoint
// is set: any model subdirectory of modelDir containing tokenizer.json is
// used.
type HugotEmbedder struct {
	modelDir string

	mu        sync.Mutex
	modelName string
	dimension int
}

// NewHugotEmbedder creates a HugotEmbedder that looks for model files in
// modelDir.
func NewHugotEmbedder(modelDir string) *HugotEmbedder {
	return &HugotEmbedder{modelDir: modelDir}
}

// Available reports whether a usable model exists on disk.
func (h *HugotEmbedder) Available() bool {
	_, err := h.diskModelPath()
	return err == nil
}

// ModelVersion identifies the local model by its directory name, prefixed
// so it never collides with a remote model name.
func (h *HugotEmbedder) ModelVersion() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.modelName == "" {
		if path, err := h.diskModelPath(); err == nil {
			h.modelName = filepath.Base(path)
		}
	}
	return "local/" + h.modelName
}

// Dimension returns the vector dimension, or 0 before the first encode.
func (h *HugotEmbedder) Dimension() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dimension
}

// Encode generates one unit-normalized vector per input text. Inputs are
// chunked to the pipeline's batch capacity.
func (h *HugotEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := h.initialize(); err != nil {
		return nil, fmt.Errorf("initialize hugot: %w", err)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += hugotBatchMax {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + hugotBatchMax
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := runPipeline(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	if len(out) > 0 {
		h.mu.Lock()
		h.dimension = len(out[0])
		h.mu.Unlock()
	}
	return out, nil
}

// EncodeSingle encodes one text.
func (h *HugotEmbedder) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := h.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// runPipeline holds the singleton mutex for inference — ORT is not
// thread-safe.
func runPipeline(texts []string) ([][]float32, error) {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	result, err := ortSingleton.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, vec := range result.Embeddings {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		vectors[i] = cp
	}
	return vectors, nil
}

func (h *HugotEmbedder) initialize() error {
	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if ortSingleton.ready {
		return nil
	}

	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	modelPath, err := h.diskModelPath()
	if err != nil {
		_ = session.Destroy()
		return err
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "local-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	ortSingleton.session = session
	ortSingleton.pipeline = pipeline
	ortSingleton.ready = true
	return nil
}

// diskModelPath looks for a model subdirectory containing tokenizer.json
// inside modelDir.
func (h *HugotEmbedder) diskModelPath() (string, error) {
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(h.modelDir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model subdirectory with tokenizer.json found in %s", h.modelDir)
}

// Close is a no-op. The ONNX Runtime session is process-global and shared
// across all HugotEmbedder instances; it is cleaned up when the process
// exits.
func (h *HugotEmbedder) Close() error {
	return nil
}

var _ search.Embedder = (*HugotEmbedder)(nil)
