package v1

import (
	"net/http"
)

// rebuildIndex handles POST /api/v1/index/rebuild: a full reconstruction
// of the vector index from stored embeddings.
func (h *Handlers) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.RebuildIndex(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// workerStats handles GET /api/v1/worker/stats.
func (h *Handlers) workerStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.worker.Stats()
	writeJSON(w, http.StatusOK, WorkerStatsResponse{
		TotalProcessed: stats.TotalProcessed,
		TotalSucceeded: stats.TotalSucceeded,
		TotalFailed:    stats.TotalFailed,
		TotalRetried:   stats.TotalRetried,
		LastRun:        stats.LastRun,
		LastBatchSize:  stats.LastBatchSize,
		IsRunning:      stats.IsRunning,
		IsPaused:       stats.IsPaused,
		IsLeader:       stats.IsLeader,
	})
}
