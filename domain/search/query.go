// Package search defines the search domain: the two-step query protocol,
// the provider contract, results, and the error taxonomy shared by the
// vector and text providers and the orchestrator.
package search

import "strings"

// Query markers for the two-step protocol. Text between the markers drives
// vector recall; text after [TASK] drives reranking.
const (
	markerSearch = "[SEARCH]"
	markerTask   = "[TASK]"
)

// Query is the parsed form of a user query: a short keyword phrase for
// vector recall and a longer task description for reranking.
type Query struct {
	phrase string
	task   string
	split  bool
}

// ParseQuery splits a free-form query string.
//
// Precedence: [SEARCH]/[TASK] markers, then the first pipe character, then
// the whole string used as both phrase and task. Empty parsed parts fall
// back to the whole string, so marker tokens never leak to the reranker.
func ParseQuery(raw string) Query {
	if phrase, task, ok := splitMarkers(raw); ok {
		return Query{phrase: phrase, task: task, split: true}
	}

	if before, after, found := strings.Cut(raw, "|"); found {
		phrase := strings.TrimSpace(before)
		task := strings.TrimSpace(after)
		if phrase != "" && task != "" {
			return Query{phrase: phrase, task: task, split: true}
		}
	}

	whole := strings.TrimSpace(raw)
	return Query{phrase: whole, task: whole}
}

func splitMarkers(raw string) (phrase, task string, ok bool) {
	searchIdx := strings.Index(raw, markerSearch)
	taskIdx := strings.Index(raw, markerTask)
	if searchIdx < 0 || taskIdx < 0 || taskIdx < searchIdx {
		return "", "", false
	}

	phrase = strings.TrimSpace(raw[searchIdx+len(markerSearch) : taskIdx])
	task = strings.TrimSpace(raw[taskIdx+len(markerTask):])
	if phrase == "" || task == "" {
		return "", "", false
	}
	return phrase, task, true
}

// Phrase returns the keyword phrase used for vector recall.
func (q Query) Phrase() string { return q.phrase }

// Task returns the raw task description.
func (q Query) Task() string { return q.task }

// Split reports whether the query carried distinct phrase and task parts.
func (q Query) Split() bool { return q.split }

// RerankContext returns the context string handed to the reranker. When the
// query was split it combines the task with the recall phrase; otherwise it
// is the phrase itself.
func (q Query) RerankContext() string {
	if !q.split {
		return q.phrase
	}
	return q.task + "\n\nRelevant concepts: " + q.phrase
}
