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

// Package aggregator drives the message stream into the plugins and commits
// window results on schedule boundaries. Each plugin is owned by exactly one
// runner goroutine; Process, Update and Revert of one plugin are never
// concurrent with each other, and no runner ever blocks on another's
// storage I/O.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	"github.com/vivekanand1101/statscache/pkg/sources"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

const (
	defaultPollInterval  = 1 * time.Second
	defaultReadBatchSize = 100
	defaultRunnerBuffer  = 1024
	defaultDedupSize     = 4096
	defaultSendWait      = 100 * time.Millisecond
)

// runnerHandle pairs a runner with its own cancellation, so one plugin can
// be stopped without touching the rest.
type runnerHandle struct {
	r      *runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Aggregator coordinates one source, one store and a set of plugins. The
// plugin set may change while running; AddPlugin and RemovePlugin leave
// unrelated runners alone.
type Aggregator struct {
	store         store.Store
	source        sources.Source
	plugins       []plugin.Plugin
	pollInterval  time.Duration
	readBatchSize int64
	runnerBuffer  int
	dedupSize     int
	sendWait      time.Duration
	clock         window.Clock
	logger        *zap.SugaredLogger

	mu      sync.RWMutex
	ctx     context.Context
	runners map[string]*runnerHandle
	wg      sync.WaitGroup
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithPollInterval sets how often runners check their schedule boundaries.
func WithPollInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		a.pollInterval = d
	}
}

// WithReadBatchSize sets how many messages one source read may return.
func WithReadBatchSize(n int64) Option {
	return func(a *Aggregator) {
		a.readBatchSize = n
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock window.Clock) Option {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// WithRunnerBuffer sets the per-runner message buffer size.
func WithRunnerBuffer(n int) Option {
	return func(a *Aggregator) {
		a.runnerBuffer = n
	}
}

// WithSendWait sets how long the pump waits on a full runner buffer before
// dropping that runner's copy of a message.
func WithSendWait(d time.Duration) Option {
	return func(a *Aggregator) {
		a.sendWait = d
	}
}

// New returns an Aggregator for the given plugins.
func New(ctx context.Context, s store.Store, src sources.Source, plugins []plugin.Plugin, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:         s,
		source:        src,
		plugins:       plugins,
		pollInterval:  defaultPollInterval,
		readBatchSize: defaultReadBatchSize,
		runnerBuffer:  defaultRunnerBuffer,
		dedupSize:     defaultDedupSize,
		sendWait:      defaultSendWait,
		clock:         time.Now,
		logger:        logging.FromContext(ctx).Named("aggregator"),
		runners:       make(map[string]*runnerHandle),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts one runner per plugin, replays the backlog and then pumps live
// traffic until the context is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	if len(a.plugins) == 0 {
		return fmt.Errorf("no plugins to run")
	}
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	// find every plugin's watermark before any message flows
	var minWatermark time.Time
	for i, p := range a.plugins {
		wm, err := a.start(ctx, p)
		if err != nil {
			return err
		}
		if i == 0 || wm.Before(minWatermark) {
			minWatermark = wm
		}
	}

	// ask a replayable source to start at the oldest watermark so every
	// runner can catch up; runners skip messages older than their own
	if replayer, ok := a.source.(sources.Replayer); ok {
		if err := replayer.Replay(ctx, minWatermark); err != nil {
			return fmt.Errorf("failed to replay source: %w", err)
		}
	}

	err := a.pump(ctx)
	a.wg.Wait()
	return err
}

// start builds and launches the runner of one plugin, returning the
// plugin's watermark.
func (a *Aggregator) start(ctx context.Context, p plugin.Plugin) (time.Time, error) {
	wm, err := p.Latest(ctx, a.store)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to find watermark of %q: %w", p.Ident(), err)
	}
	r, err := newRunner(p, a.store, wm, a.pollInterval, a.runnerBuffer, a.dedupSize, a.clock, a.logger)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build runner for %q: %w", p.Ident(), err)
	}
	rctx, cancel := context.WithCancel(ctx)
	h := &runnerHandle{r: r, cancel: cancel, done: make(chan struct{})}

	a.mu.Lock()
	if _, exists := a.runners[p.Ident()]; exists {
		a.mu.Unlock()
		cancel()
		return time.Time{}, fmt.Errorf("plugin %q is already running", p.Ident())
	}
	a.runners[p.Ident()] = h
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(h.done)
		r.run(rctx)
	}()
	a.logger.Infow("Plugin registered",
		zap.String("plugin", p.Ident()),
		zap.Time("watermark", wm),
		zap.Duration("interval", p.Schedule().Interval()))
	return wm, nil
}

// AddPlugin starts a runner for a newly configured plugin. The plugin picks
// up at its own watermark from live traffic; no source replay is triggered.
func (a *Aggregator) AddPlugin(p plugin.Plugin) error {
	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		return fmt.Errorf("aggregator is not running")
	}
	_, err := a.start(ctx, p)
	return err
}

// RemovePlugin stops the runner of the given ident and reports whether it
// was running. The plugin's committed model stays in the store.
func (a *Aggregator) RemovePlugin(ident string) bool {
	a.mu.Lock()
	h, ok := a.runners[ident]
	if ok {
		delete(a.runners, ident)
	}
	a.mu.Unlock()
	if ok {
		h.cancel()
		a.logger.Infow("Plugin removed", zap.String("plugin", ident))
	}
	return ok
}

func (a *Aggregator) handles() []*runnerHandle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	hs := make([]*runnerHandle, 0, len(a.runners))
	for _, h := range a.runners {
		hs = append(hs, h)
	}
	return hs
}

// pump moves messages from the source to every runner. Per-plugin timestamp
// order is preserved because there is exactly one pump; a runner whose
// buffer stays full past the send wait loses its copy of the message, so
// one stalled plugin can never starve delivery to the rest.
func (a *Aggregator) pump(ctx context.Context) error {
	caughtUp := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		msgs, err := a.source.Read(ctx, a.readBatchSize)
		if err != nil {
			a.logger.Errorw("Failed to read from source", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.pollInterval):
			}
			continue
		}
		for _, m := range msgs {
			for _, h := range a.handles() {
				if err := a.send(ctx, h, m); err != nil {
					return nil
				}
			}
		}
		if !caughtUp {
			caughtUp = a.checkCaughtUp(ctx)
		} else {
			a.markSteady()
		}
	}
}

// send hands one runner its copy of a message, waiting at most sendWait on
// a full buffer. The returned error is non-nil only when the context ended.
func (a *Aggregator) send(ctx context.Context, h *runnerHandle, m *message.Message) error {
	select {
	case h.r.messages <- m:
		return nil
	case <-h.done:
		// runner stopped mid-send, drop its copy
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	wait := time.NewTimer(a.sendWait)
	defer wait.Stop()
	select {
	case h.r.messages <- m:
	case <-h.done:
	case <-wait.C:
		droppedOverflowCount.WithLabelValues(h.r.plugin.Ident()).Inc()
		a.logger.Debugw("Dropped message on full runner buffer",
			zap.String("plugin", h.r.plugin.Ident()), zap.String("id", m.ID))
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// checkCaughtUp flips every runner to steady once the source backlog is
// drained (or the transport cannot report one).
func (a *Aggregator) checkCaughtUp(ctx context.Context) bool {
	pending, err := a.source.Pending(ctx)
	if err != nil {
		a.logger.Warnw("Failed to read source backlog", zap.Error(err))
		return false
	}
	if pending > 0 && pending != sources.PendingNotAvailable {
		return false
	}
	a.markSteady()
	a.logger.Info("Backlog drained, all plugins steady")
	return true
}

func (a *Aggregator) markSteady() {
	for _, h := range a.handles() {
		h.r.setSteady()
	}
}

// Runners returns per-plugin state for health reporting, sorted by ident.
func (a *Aggregator) Runners() []RunnerInfo {
	infos := make([]RunnerInfo, 0)
	for _, h := range a.handles() {
		infos = append(infos, h.r.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Ident < infos[j].Ident })
	return infos
}

// RunnerInfo is a point-in-time view of one plugin runner.
type RunnerInfo struct {
	Ident     string    `json:"ident"`
	State     string    `json:"state"`
	Watermark time.Time `json:"watermark"`
	Processed int64     `json:"processed"`
}
