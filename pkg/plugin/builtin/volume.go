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

// Package builtin provides the plugins registered by default: message
// volume, per-topic volume and bus delivery latency percentiles.
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

func init() {
	plugin.RegisterBuilder("volume", NewVolume)
	plugin.RegisterBuilder("topics", NewTopics)
	plugin.RegisterBuilder("latency", NewLatency)
}

// volumePlugin counts messages per window.
type volumePlugin struct {
	*plugin.Base
	// in-flight counts keyed by window start
	counts map[time.Time]float64
}

// NewVolume returns a plugin counting the messages observed per window.
func NewVolume(spec plugin.Spec, sched *window.Schedule, opts ...plugin.Option) (plugin.Plugin, error) {
	base, err := plugin.NewBase(spec, sched, opts...)
	if err != nil {
		return nil, err
	}
	return &volumePlugin{
		Base:   base,
		counts: make(map[time.Time]float64),
	}, nil
}

func (p *volumePlugin) Process(m *message.Message) {
	if !p.Spec().Wants(m) {
		return
	}
	p.counts[p.Schedule().Truncate(m.Timestamp)]++
}

func (p *volumePlugin) Update(ctx context.Context, s store.Store) error {
	horizon := p.ClosedBefore()
	var rows []model.Row
	for start, count := range p.counts {
		if !start.Before(horizon) {
			continue
		}
		rows = append(rows, model.Row{Timestamp: start, Value: count})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.Upsert(ctx, p.Ident(), rows); err != nil {
		// buckets stay in memory, the next tick retries the commit
		return fmt.Errorf("failed to commit volume rows: %w", err)
	}
	// the window committed just now is kept in memory for one more interval
	// so a revert-then-update retry can reproduce it
	keep := horizon.Add(-p.Schedule().Interval())
	for start := range p.counts {
		if start.Before(keep) {
			delete(p.counts, start)
		}
	}
	return nil
}

func (p *volumePlugin) Layout() model.Layout {
	return model.Layout{
		Title:       p.Name(),
		Description: p.Summary(),
		Columns: []model.Column{
			{Name: "timestamp", Type: "datetime", Description: "window start"},
			{Name: "value", Type: "number", Description: "messages observed in the window"},
		},
	}
}
