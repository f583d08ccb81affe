package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pharmadb/deepresearch/core"
)

// finding is the internal representation of a stored research finding.
type finding struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// minKeywordLen filters short stop words out of query keyword extraction.
const minKeywordLen = 4

// InMemoryStore is a process local MemoryStore. It offers:
//  1. Session scoped key/value memory (Get / Put)
//  2. Append-only research findings with keyword-overlap Search
//
// Concurrency: protected by RWMutex. Search is a linear scan scored by the
// fraction of query keywords present in each finding, so reworded follow-up
// questions still recall earlier results. Suitable for single replica
// deployments; swap for a vector index when semantic retrieval over large
// corpora is needed.
type InMemoryStore struct {
	mu       sync.RWMutex
	memory   map[string]map[string]any        // sessionID -> key -> value
	findings map[string]map[string]finding    // sessionID -> findingID -> finding
	sequence map[string]int                   // sessionID -> next finding sequence number
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:   make(map[string]map[string]any),
		findings: make(map[string]map[string]finding),
		sequence: make(map[string]int),
	}
}

// Get returns a shallow copy of the key/value memory map for the session.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.memory[sessionID]
	if !ok {
		return make(map[string]any), nil
	}

	result := make(map[string]any, len(stored))
	for k, v := range stored {
		result[k] = v
	}

	return result, nil
}

// Put merges the provided delta map into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.memory[sessionID]; !ok {
		m.memory[sessionID] = make(map[string]any)
	}

	for k, v := range delta {
		m.memory[sessionID][k] = v
	}

	return nil
}

// Search matches stored findings against the query's content keywords. A
// finding matches when it contains at least one keyword case-insensitively;
// its score is the fraction of keywords it contains, so full-question
// queries and their rewordings recall the same findings. Results are
// ordered by score, insertion order breaking ties, up to limit. An empty
// query matches everything.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.findings[sessionID]
	if !ok {
		return []core.SearchResult{}, nil
	}

	ids := make([]string, 0, len(stored))
	for id := range stored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	keywords := searchKeywords(query)

	var results []core.SearchResult
	for _, id := range ids {
		f := stored[id]

		score := matchScore(f.Content, query, keywords)
		if score == 0 {
			continue
		}

		md := make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			md[k] = v
		}

		results = append(results, core.SearchResult{ID: f.ID, Content: f.Content, Score: score, Metadata: md})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// searchKeywords extracts lowercase content words from the query.
func searchKeywords(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len(word) >= minKeywordLen {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// matchScore returns the fraction of keywords present in content, 1.0 for an
// empty query, or a whole-query substring match when the query carries no
// content words.
func matchScore(content, query string, keywords []string) float64 {
	if query == "" {
		return 1.0
	}

	lower := strings.ToLower(content)

	if len(keywords) == 0 {
		if strings.Contains(lower, strings.ToLower(query)) {
			return 1.0
		}
		return 0
	}

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	return float64(matched) / float64(len(keywords))
}

// Store appends a new finding under a zero-padded sequential id so that
// insertion order survives lexicographic sorting.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.findings[sessionID]; !ok {
		m.findings[sessionID] = make(map[string]finding)
	}

	seq := m.sequence[sessionID]
	m.sequence[sessionID] = seq + 1

	id := fmt.Sprintf("finding_%06d", seq)
	m.findings[sessionID][id] = finding{ID: id, Content: content, Metadata: metadata}

	return nil
}

// Delete removes a stored finding by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.findings[sessionID]
	if !ok {
		return fmt.Errorf("memory %q not found", memoryID)
	}

	if _, ok := stored[memoryID]; !ok {
		return fmt.Errorf("memory %q not found", memoryID)
	}

	delete(stored, memoryID)

	return nil
}
