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
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/store/inmem"
	"github.com/vivekanand1101/statscache/pkg/window"
)

var t0 = time.Unix(1651129200, 0).UTC()

func msgAt(ts time.Time) *message.Message {
	body, _ := json.Marshal(map[string]string{"note": "test"})
	return &message.Message{
		Topic:     "org.example.test",
		ID:        ts.String(),
		Timestamp: ts,
		Body:      body,
	}
}

func newVolume(t *testing.T, interval time.Duration, now *time.Time) plugin.Plugin {
	t.Helper()
	p, err := NewVolume(plugin.Spec{
		Name:        "volume",
		Summary:     "message volume",
		Description: "number of messages per window",
		Interval:    interval,
	}, window.NewSchedule(t0, interval), plugin.WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return p
}

func TestBuildersRegistered(t *testing.T) {
	assert.Equal(t, []string{"latency", "topics", "volume"}, plugin.BuilderNames())
}

// Walks the canonical minutely scenario: messages at T0+10s, T0+70s and
// T0+125s must land in the store one window at a time.
func TestVolumeWindowedCommits(t *testing.T) {
	ctx := context.Background()
	now := t0
	p := newVolume(t, time.Minute, &now)
	s := inmem.NewInMemStore()

	p.Process(msgAt(t0.Add(10 * time.Second)))
	p.Process(msgAt(t0.Add(70 * time.Second)))
	p.Process(msgAt(t0.Add(125 * time.Second)))

	// first boundary: only the first window is committed
	now = t0.Add(60 * time.Second)
	require.NoError(t, p.Update(ctx, s))
	rows, err := s.Query(ctx, p.Ident(), store.RowFilter{Order: store.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Timestamp.Equal(t0))
	assert.Equal(t, 1.0, rows[0].Value)

	// second boundary: the second window follows
	now = t0.Add(120 * time.Second)
	require.NoError(t, p.Update(ctx, s))
	rows, err = s.Query(ctx, p.Ident(), store.RowFilter{Order: store.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Timestamp.Equal(t0.Add(time.Minute)))

	// the third message stays pending until its window closes
	now = t0.Add(180 * time.Second)
	require.NoError(t, p.Update(ctx, s))
	rows, err = s.Query(ctx, p.Ident(), store.RowFilter{Order: store.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[2].Timestamp.Equal(t0.Add(2 * time.Minute)))
}

func TestRevertThenUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := t0
	p := newVolume(t, time.Minute, &now)
	s := inmem.NewInMemStore()

	p.Process(msgAt(t0.Add(10 * time.Second)))
	p.Process(msgAt(t0.Add(20 * time.Second)))
	now = t0.Add(time.Minute)
	require.NoError(t, p.Revert(ctx, t0, s))
	require.NoError(t, p.Update(ctx, s))
	once, err := s.Query(ctx, p.Ident(), store.RowFilter{})
	require.NoError(t, err)

	// reverting and updating again must not change the model
	require.NoError(t, p.Revert(ctx, t0, s))
	require.NoError(t, p.Update(ctx, s))
	twice, err := s.Query(ctx, p.Ident(), store.RowFilter{})
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
	assert.Equal(t, 2.0, twice[0].Value)
}

func TestContinuousVolumeCommitsEveryTick(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(time.Second)
	p := newVolume(t, 0, &now)
	s := inmem.NewInMemStore()

	p.Process(msgAt(t0.Add(time.Millisecond)))
	require.NoError(t, p.Update(ctx, s))
	rows, err := s.Query(ctx, p.Ident(), store.RowFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTopicsCategorizedRows(t *testing.T) {
	ctx := context.Background()
	now := t0
	p, err := NewTopics(plugin.Spec{
		Name:        "topics",
		Summary:     "per-topic volume",
		Description: "number of messages per topic per window",
		Interval:    time.Minute,
	}, window.NewSchedule(t0, time.Minute), plugin.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	s := inmem.NewInMemStore()

	a := msgAt(t0.Add(5 * time.Second))
	a.Topic = "org.example.a"
	b := msgAt(t0.Add(6 * time.Second))
	b.Topic = "org.example.b"
	p.Process(a)
	p.Process(a)
	p.Process(b)

	now = t0.Add(time.Minute)
	require.NoError(t, p.Update(ctx, s))
	rows, err := s.Query(ctx, p.Ident(), store.RowFilter{Order: store.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byTopic := map[string]float64{}
	for _, r := range rows {
		byTopic[r.Category] = r.Value
	}
	assert.Equal(t, 2.0, byTopic["org.example.a"])
	assert.Equal(t, 1.0, byTopic["org.example.b"])
}

func TestLatencyPercentiles(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(10 * time.Second)
	p, err := NewLatency(plugin.Spec{
		Name:        "latency",
		Summary:     "delivery lag",
		Description: "bus delivery lag percentiles per window",
		Interval:    time.Minute,
	}, window.NewSchedule(t0, time.Minute), plugin.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	s := inmem.NewInMemStore()

	// lags of 10s, 9s and 8s
	p.Process(msgAt(t0))
	p.Process(msgAt(t0.Add(time.Second)))
	p.Process(msgAt(t0.Add(2 * time.Second)))

	now = t0.Add(time.Minute)
	require.NoError(t, p.Update(ctx, s))
	rows, err := s.Query(ctx, p.Ident(), store.RowFilter{Order: store.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	values := map[string]float64{}
	for _, r := range rows {
		values[r.Category] = r.Value
	}
	assert.Equal(t, 9.0, values["p50"])
	assert.Equal(t, 10.0, values["max"])
	assert.Contains(t, values, "p95")
}

func TestProcessIgnoresForeignTopics(t *testing.T) {
	ctx := context.Background()
	now := t0
	p, err := NewVolume(plugin.Spec{
		Name:        "volume",
		Summary:     "message volume",
		Description: "number of messages per window",
		Interval:    time.Minute,
		Topics:      []string{"org.example."},
	}, window.NewSchedule(t0, time.Minute), plugin.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	s := inmem.NewInMemStore()

	foreign := msgAt(t0.Add(time.Second))
	foreign.Topic = "org.other.event"
	p.Process(foreign)

	now = t0.Add(time.Minute)
	require.NoError(t, p.Update(ctx, s))
	rows, err := s.Query(ctx, p.Ident(), store.RowFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
