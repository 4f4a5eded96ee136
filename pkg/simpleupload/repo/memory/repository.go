package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Repository implements simpleupload.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[string]*simpleupload.Record
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		records: make(map[string]*simpleupload.Record),
	}
}

func (r *Repository) SaveRecord(ctx context.Context, record *simpleupload.Record) error {
	if record.ID() == "" {
		return simpleupload.ErrInvalidRecordID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	r.records[record.ID()] = record.Clone()
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id string) (*simpleupload.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, simpleupload.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return simpleupload.ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

// ListRecords returns all records ordered by id
func (r *Repository) ListRecords(ctx context.Context) ([]*simpleupload.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleupload.Record, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, record.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result, nil
}

// CountReferences counts the records whose field holds value
func (r *Repository) CountReferences(ctx context.Context, field, value string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, record := range r.records {
		if record.String(field) == value {
			count++
		}
	}
	return count, nil
}
