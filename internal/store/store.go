// Package store holds the in-memory per-image record set for the current batch
package store

import (
	"sync"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
)

// ItemStore keeps name -> ImageRecord with upload order preserved.
// All mutations are serialized through one mutex, so two mutations of the
// same name are strictly ordered and a mutator always observes a fully
// written record. Blobs are treated as immutable once set - snapshots
// share them instead of copying.
type ItemStore struct {
	mu      sync.RWMutex
	records map[string]*model.ImageRecord
	order   []string
}

func New() *ItemStore {
	return &ItemStore{records: make(map[string]*model.ImageRecord)}
}

// Seed inserts a fresh record. Re-uploading an existing name replaces the
// old record in its original position - deterministic last-upload-wins.
func (s *ItemStore) Seed(rec *model.ImageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Name]; !ok {
		s.order = append(s.order, rec.Name)
	}
	s.records[rec.Name] = rec
}

// Upsert applies an atomic read-modify-write to one record. Returns
// ErrImageNotFound when the name isn't (or is no longer) in the batch, so
// late completions after Clear land nowhere.
func (s *ItemStore) Upsert(name string, fn func(rec *model.ImageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[name]
	if !ok {
		return model.ErrImageNotFound
	}
	fn(rec)
	return nil
}

// Get returns a copy of the record - safe to read without holding any lock.
func (s *ItemStore) Get(name string) (model.ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[name]
	if !ok {
		return model.ImageRecord{}, false
	}
	return copyRecord(rec), true
}

// Snapshot returns point-in-time copies of all records in upload order.
func (s *ItemStore) Snapshot() []model.ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.ImageRecord, 0, len(s.order))
	for _, name := range s.order {
		if rec, ok := s.records[name]; ok {
			res = append(res, copyRecord(rec))
		}
	}
	return res
}

// Names returns the upload-ordered name list.
func (s *ItemStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]string, len(s.order))
	copy(res, s.order)
	return res
}

func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops the whole batch. Upserts for the old records become no-ops.
func (s *ItemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*model.ImageRecord)
	s.order = nil
}

// copyRecord clones mutable parts; blobs are immutable and shared.
func copyRecord(rec *model.ImageRecord) model.ImageRecord {
	cp := *rec
	cp.Metadata = make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		cp.Metadata[k] = v
	}
	if rec.Quality != nil {
		q := *rec.Quality
		cp.Quality = &q
	}
	if rec.Requested != nil {
		r := *rec.Requested
		cp.Requested = &r
	}
	if rec.Applied != nil {
		a := *rec.Applied
		cp.Applied = &a
	}
	return cp
}
