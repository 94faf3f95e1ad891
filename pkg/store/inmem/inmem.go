/*
Copyright 2024 The Statscache Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package inmem implements an in-memory store, used in tests and for
// development runs where persistence across restarts does not matter.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/store"
)

type inMemStore struct {
	mu sync.RWMutex
	// rows per ident, kept sorted by timestamp ascending
	models map[string][]model.Row
}

// NewInMemStore returns an empty in-memory store.
func NewInMemStore() store.Store {
	return &inMemStore{
		models: make(map[string][]model.Row),
	}
}

func (s *inMemStore) Upsert(_ context.Context, ident string, rows []model.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.models[ident]
	for _, r := range rows {
		r.Timestamp = r.Timestamp.UTC()
		replaced := false
		for i := range existing {
			if existing[i].Timestamp.Equal(r.Timestamp) && existing[i].Category == r.Category {
				existing[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, r)
		}
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Timestamp.Before(existing[j].Timestamp)
	})
	s.models[ident] = existing
	return nil
}

func (s *inMemStore) Query(_ context.Context, ident string, f store.RowFilter) ([]model.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Row
	for _, r := range s.models[ident] {
		if f.Matches(r.Timestamp) {
			out = append(out, r)
		}
	}
	if f.Order == store.OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *inMemStore) DeleteSince(_ context.Context, ident string, when time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.models[ident][:0]
	var deleted int64
	for _, r := range s.models[ident] {
		if r.Timestamp.Before(when) {
			kept = append(kept, r)
		} else {
			deleted++
		}
	}
	s.models[ident] = kept
	return deleted, nil
}

func (s *inMemStore) DeleteBefore(_ context.Context, ident string, when time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.models[ident][:0]
	var deleted int64
	for _, r := range s.models[ident] {
		if r.Timestamp.Before(when) {
			deleted++
		} else {
			kept = append(kept, r)
		}
	}
	s.models[ident] = kept
	return deleted, nil
}

func (s *inMemStore) Count(_ context.Context, ident string, f store.RowFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.models[ident] {
		if f.Matches(r.Timestamp) {
			n++
		}
	}
	return n, nil
}

func (s *inMemStore) Newest(_ context.Context, ident string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.models[ident]
	if len(rows) == 0 {
		return time.Time{}, nil
	}
	return rows[len(rows)-1].Timestamp, nil
}

func (s *inMemStore) Close() error {
	return nil
}
