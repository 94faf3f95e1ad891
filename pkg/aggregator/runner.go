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

package aggregator

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/shared/ewma"
	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

const (
	// StateCatchingUp is the runner state while the backlog replays.
	StateCatchingUp = "CATCHING_UP"
	// StateSteady is the runner state once live traffic flows.
	StateSteady = "STEADY"
)

// runner owns one plugin. All Process/Update/Revert calls of the plugin
// happen on the runner goroutine, which is the single-writer discipline the
// plugin contract relies on.
type runner struct {
	plugin       plugin.Plugin
	store        store.Store
	messages     chan *message.Message
	watermark    time.Time
	next         time.Time
	pollInterval time.Duration
	clock        window.Clock
	state        *atomic.String
	processed    *atomic.Int64
	// wmMilli publishes the watermark to other goroutines (info, health)
	wmMilli *atomic.Int64
	// seen suppresses bus redeliveries by message id
	seen *lru.Cache[string, struct{}]
	// tickCount feeds the smoothed processing rate gauge
	tickCount int64
	rate      ewma.EWMA
	logger    *zap.SugaredLogger
}

func newRunner(p plugin.Plugin, s store.Store, watermark time.Time, pollInterval time.Duration, buffer, dedupSize int, clock window.Clock, logger *zap.SugaredLogger) (*runner, error) {
	seen, err := lru.New[string, struct{}](dedupSize)
	if err != nil {
		return nil, err
	}
	r := &runner{
		plugin:       p,
		store:        s,
		messages:     make(chan *message.Message, buffer),
		watermark:    watermark,
		pollInterval: pollInterval,
		clock:        clock,
		state:        atomic.NewString(StateCatchingUp),
		processed:    atomic.NewInt64(0),
		wmMilli:      atomic.NewInt64(watermark.UnixMilli()),
		seen:         seen,
		rate:         ewma.NewSimpleEWMA(),
		logger:       logger.With(zap.String("plugin", p.Ident())),
	}
	// the first boundary to commit is the one strictly after the watermark;
	// the watermark window itself is rebuilt from the replayed backlog
	if !p.Schedule().Continuous() {
		r.next = p.Schedule().NextBoundary(watermark)
		if !r.next.After(watermark) {
			r.next = r.next.Add(p.Schedule().Interval())
		}
	}
	return r, nil
}

func (r *runner) run(ctx context.Context) {
	// drop whatever partial window sits at or after the watermark; the
	// replayed backlog rebuilds it, making the recommit idempotent
	if err := sharedutil.ExponentialBackoff(ctx, sharedutil.Backoff{Steps: 3, Duration: time.Second, Factor: 2.0, Jitter: 0.1}, func() error {
		return r.plugin.Revert(ctx, r.watermark, r.store)
	}); err != nil {
		r.logger.Errorw("Failed to revert to watermark at startup", zap.Error(err))
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.messages:
			r.consume(m)
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *runner) consume(m *message.Message) {
	if m.Timestamp.Before(r.watermark) {
		// behind this plugin's watermark, already committed
		return
	}
	if m.ID != "" {
		if _, dup := r.seen.Get(m.ID); dup {
			droppedDuplicateCount.WithLabelValues(r.plugin.Ident()).Inc()
			return
		}
		r.seen.Add(m.ID, struct{}{})
	}
	r.plugin.Process(m)
	r.processed.Inc()
	r.tickCount++
	processedCount.WithLabelValues(r.plugin.Ident()).Inc()
}

// tick commits every schedule boundary that has passed. A storage failure
// leaves the boundary in place, the next tick retries; the model stays at
// its last consistent watermark meanwhile.
func (r *runner) tick(ctx context.Context) {
	now := r.clock()
	r.rate.Add(float64(r.tickCount) / r.pollInterval.Seconds())
	processingRate.WithLabelValues(r.plugin.Ident()).Set(r.rate.Get())
	r.tickCount = 0

	sched := r.plugin.Schedule()
	if sched.Continuous() {
		if err := r.plugin.Update(ctx, r.store); err != nil {
			updateErrorCount.WithLabelValues(r.plugin.Ident()).Inc()
			r.logger.Errorw("Failed to update model", zap.Error(err))
			return
		}
		updateCount.WithLabelValues(r.plugin.Ident()).Inc()
		r.advanceWatermark(ctx)
		return
	}

	if now.Before(r.next) {
		return
	}
	windowStart := r.next.Add(-sched.Interval())
	// revert-then-update: at most one committed result per window, even
	// when a boundary is retried
	if err := r.plugin.Revert(ctx, windowStart, r.store); err != nil {
		updateErrorCount.WithLabelValues(r.plugin.Ident()).Inc()
		r.logger.Errorw("Failed to revert window", zap.Time("windowStart", windowStart), zap.Error(err))
		return
	}
	revertCount.WithLabelValues(r.plugin.Ident()).Inc()
	if err := r.plugin.Update(ctx, r.store); err != nil {
		updateErrorCount.WithLabelValues(r.plugin.Ident()).Inc()
		r.logger.Errorw("Failed to update model", zap.Time("boundary", r.next), zap.Error(err))
		return
	}
	updateCount.WithLabelValues(r.plugin.Ident()).Inc()
	r.next = sched.NextBoundary(now)
	if !r.next.After(now) {
		r.next = r.next.Add(sched.Interval())
	}
	r.advanceWatermark(ctx)
}

func (r *runner) advanceWatermark(ctx context.Context) {
	wm, err := r.plugin.Latest(ctx, r.store)
	if err != nil {
		r.logger.Warnw("Failed to refresh watermark", zap.Error(err))
		return
	}
	r.watermark = wm
	r.wmMilli.Store(wm.UnixMilli())
	watermarkGauge.WithLabelValues(r.plugin.Ident()).Set(float64(wm.UnixMilli()))
}

func (r *runner) setSteady() {
	r.state.Store(StateSteady)
}

func (r *runner) info() RunnerInfo {
	return RunnerInfo{
		Ident:     r.plugin.Ident(),
		State:     r.state.Load(),
		Watermark: time.UnixMilli(r.wmMilli.Load()).UTC(),
		Processed: r.processed.Load(),
	}
}
