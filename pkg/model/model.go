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

// Package model defines the persisted shape of a plugin's statistics and its
// declared layout. The aggregation and query layers only ever sort, filter
// and delete rows by their timestamp.
package model

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Row is one committed result in a plugin's model. Timestamp is the start of
// the window the value was aggregated over. Category disambiguates rows a
// plugin commits per window ("" for scalar models).
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category,omitempty"`
	Value     float64   `json:"value"`
}

// Column describes one column of a plugin's model for API consumers.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Layout is the schema descriptor a plugin declares for its model.
type Layout struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// DefaultLayout returns the layout shared by plugins that do not declare
// their own.
func DefaultLayout(title, description string) Layout {
	return Layout{
		Title:       title,
		Description: description,
		Columns: []Column{
			{Name: "timestamp", Type: "datetime", Description: "window start"},
			{Name: "category", Type: "string"},
			{Name: "value", Type: "number"},
		},
	}
}

// WriteCSV renders rows as CSV with a header line, timestamps in RFC3339.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "category", "value"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Category,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
