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

	"github.com/montanaflynn/stats"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

// latencyPlugin tracks bus delivery lag, the gap between a message's event
// time and its arrival at the daemon, committing p50/p95/max per window.
type latencyPlugin struct {
	*plugin.Base
	lags map[time.Time][]float64
}

// NewLatency returns a plugin committing delivery lag percentiles per window.
func NewLatency(spec plugin.Spec, sched *window.Schedule, opts ...plugin.Option) (plugin.Plugin, error) {
	base, err := plugin.NewBase(spec, sched, opts...)
	if err != nil {
		return nil, err
	}
	return &latencyPlugin{
		Base: base,
		lags: make(map[time.Time][]float64),
	}, nil
}

func (p *latencyPlugin) Process(m *message.Message) {
	if !p.Spec().Wants(m) {
		return
	}
	lag := p.Now().Sub(m.Timestamp).Seconds()
	if lag < 0 {
		// publisher clock running ahead of ours
		lag = 0
	}
	start := p.Schedule().Truncate(m.Timestamp)
	p.lags[start] = append(p.lags[start], lag)
}

func (p *latencyPlugin) Update(ctx context.Context, s store.Store) error {
	horizon := p.ClosedBefore()
	var rows []model.Row
	for start, samples := range p.lags {
		if !start.Before(horizon) || len(samples) == 0 {
			continue
		}
		p50, err := stats.Median(samples)
		if err != nil {
			return fmt.Errorf("failed to compute p50: %w", err)
		}
		p95, err := stats.Percentile(samples, 95)
		if err != nil {
			return fmt.Errorf("failed to compute p95: %w", err)
		}
		max, err := stats.Max(samples)
		if err != nil {
			return fmt.Errorf("failed to compute max: %w", err)
		}
		rows = append(rows,
			model.Row{Timestamp: start, Category: "p50", Value: p50},
			model.Row{Timestamp: start, Category: "p95", Value: p95},
			model.Row{Timestamp: start, Category: "max", Value: max},
		)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.Upsert(ctx, p.Ident(), rows); err != nil {
		return fmt.Errorf("failed to commit latency rows: %w", err)
	}
	keep := horizon.Add(-p.Schedule().Interval())
	for start := range p.lags {
		if start.Before(keep) {
			delete(p.lags, start)
		}
	}
	return nil
}

func (p *latencyPlugin) Layout() model.Layout {
	return model.Layout{
		Title:       p.Name(),
		Description: p.Summary(),
		Columns: []model.Column{
			{Name: "timestamp", Type: "datetime", Description: "window start"},
			{Name: "category", Type: "string", Description: "p50, p95 or max"},
			{Name: "value", Type: "number", Description: "delivery lag in seconds"},
		},
	}
}
