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

// Package store defines the persistence boundary of the aggregator. A store
// keeps one model per plugin ident; each plugin only ever touches its own
// rows, so no cross-model transactions are offered.
package store

import (
	"context"
	"time"

	"github.com/vivekanand1101/statscache/pkg/model"
)

// Order is the sort direction of a query by timestamp.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// RowFilter bounds a model query. Start and Stop are inclusive; a zero value
// leaves that side unbounded. Limit caps the number of returned rows,
// zero means no cap.
type RowFilter struct {
	Start time.Time
	Stop  time.Time
	Order Order
	Limit int
}

// Store is the persistence handle given to plugins and the query service.
// Upsert keys rows by (ident, timestamp, category), which is what makes a
// revert-then-update commit idempotent.
type Store interface {
	// Upsert inserts rows into the model, replacing rows with the same
	// timestamp and category.
	Upsert(ctx context.Context, ident string, rows []model.Row) error
	// Query returns rows matching the filter, ordered by timestamp.
	Query(ctx context.Context, ident string, f RowFilter) ([]model.Row, error)
	// DeleteSince removes every row with timestamp >= when and returns the
	// number of rows removed.
	DeleteSince(ctx context.Context, ident string, when time.Time) (int64, error)
	// DeleteBefore removes every row with timestamp < when and returns the
	// number of rows removed.
	DeleteBefore(ctx context.Context, ident string, when time.Time) (int64, error)
	// Count returns the number of rows matching the filter, ignoring Limit.
	Count(ctx context.Context, ident string, f RowFilter) (int64, error)
	// Newest returns the timestamp of the most recent row, the zero time
	// when the model is empty.
	Newest(ctx context.Context, ident string) (time.Time, error)
	Close() error
}

// Matches reports whether a timestamp falls inside the filter bounds.
func (f RowFilter) Matches(ts time.Time) bool {
	if !f.Start.IsZero() && ts.Before(f.Start) {
		return false
	}
	if !f.Stop.IsZero() && ts.After(f.Stop) {
		return false
	}
	return true
}
