package storage

import (
	"context"
	"sort"
	"sync"

	"arbiter-hq/arbiter/pkg/audit"
)

// MemoryStorage implements audit.Storage using an in-memory map.
// Intended for tests.
type MemoryStorage struct {
	records map[string]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store persists an audit record to memory.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records[record.ID] = &recordCopy
	return nil
}

// Query retrieves audit records matching the query filters.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*audit.Record
	for _, record := range s.records {
		if matchesQuery(record, query) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if query.SortOrder == "ASC" {
			return results[i].EvaluatedAt.Before(results[j].EvaluatedAt)
		}
		return results[i].EvaluatedAt.After(results[j].EvaluatedAt)
	})

	start := query.Offset
	if start > len(results) {
		return []*audit.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// Count returns the number of audit records matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// Delete removes audit records matching the query filters.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, record := range s.records {
		if matchesQuery(record, query) {
			delete(s.records, id)
			count++
		}
	}
	return count, nil
}

// Close releases resources. No-op for memory storage.
func (s *MemoryStorage) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesQuery(record *audit.Record, query *audit.Query) bool {
	if query.GatewayID != "" && record.GatewayID != query.GatewayID {
		return false
	}
	if query.ActionID != "" && record.ActionID != query.ActionID {
		return false
	}
	if query.Decision != "" && record.Decision() != query.Decision {
		return false
	}
	if query.Mode != "" && record.Mode != query.Mode {
		return false
	}
	if query.StartTime != nil && record.EvaluatedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && !record.EvaluatedAt.Before(*query.EndTime) {
		return false
	}
	return true
}
