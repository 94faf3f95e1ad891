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

package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

// topicsPlugin counts messages per topic per window, one row per topic with
// the topic as the category.
type topicsPlugin struct {
	*plugin.Base
	counts map[time.Time]map[string]float64
}

// NewTopics returns a plugin maintaining per-topic message volume.
func NewTopics(spec plugin.Spec, sched *window.Schedule, opts ...plugin.Option) (plugin.Plugin, error) {
	base, err := plugin.NewBase(spec, sched, opts...)
	if err != nil {
		return nil, err
	}
	return &topicsPlugin{
		Base:   base,
		counts: make(map[time.Time]map[string]float64),
	}, nil
}

func (p *topicsPlugin) Process(m *message.Message) {
	if !p.Spec().Wants(m) || m.Topic == "" {
		return
	}
	start := p.Schedule().Truncate(m.Timestamp)
	bucket := p.counts[start]
	if bucket == nil {
		bucket = make(map[string]float64)
		p.counts[start] = bucket
	}
	bucket[m.Topic]++
}

func (p *topicsPlugin) Update(ctx context.Context, s store.Store) error {
	horizon := p.ClosedBefore()
	var rows []model.Row
	for start, bucket := range p.counts {
		if !start.Before(horizon) {
			continue
		}
		for topic, count := range bucket {
			rows = append(rows, model.Row{Timestamp: start, Category: topic, Value: count})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.Upsert(ctx, p.Ident(), rows); err != nil {
		return fmt.Errorf("failed to commit topic rows: %w", err)
	}
	keep := horizon.Add(-p.Schedule().Interval())
	for start := range p.counts {
		if start.Before(keep) {
			delete(p.counts, start)
		}
	}
	return nil
}

func (p *topicsPlugin) Layout() model.Layout {
	return model.Layout{
		Title:       p.Name(),
		Description: p.Summary(),
		Columns: []model.Column{
			{Name: "timestamp", Type: "datetime", Description: "window start"},
			{Name: "category", Type: "string", Description: "topic"},
			{Name: "value", Type: "number", Description: "messages observed for the topic in the window"},
		},
	}
}
