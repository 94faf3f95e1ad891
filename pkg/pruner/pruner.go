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

// Package pruner removes committed model rows past their configured
// retention. Pruning is best-effort housekeeping; a failed run leaves the
// rows for the next one.
package pruner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

const defaultSchedule = "@hourly"

// Pruner deletes rows older than each plugin's retention on a cron
// schedule. Plugins without a retention are never pruned.
type Pruner struct {
	store    store.Store
	plugins  func() []plugin.Plugin
	schedule string
	clock    window.Clock
	cron     *cron.Cron
	logger   *zap.SugaredLogger
}

// Option customizes a Pruner.
type Option func(*Pruner)

// WithSchedule overrides the default hourly cron schedule.
func WithSchedule(spec string) Option {
	return func(p *Pruner) {
		p.schedule = spec
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock window.Clock) Option {
	return func(p *Pruner) {
		p.clock = clock
	}
}

// New returns a Pruner. The plugin set is re-read per pass so a config
// reload is honored.
func New(ctx context.Context, s store.Store, plugins func() []plugin.Plugin, opts ...Option) *Pruner {
	p := &Pruner{
		store:    s,
		plugins:  plugins,
		schedule: defaultSchedule,
		clock:    time.Now,
		logger:   logging.FromContext(ctx).Named("pruner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start schedules the pruning job and runs it until the context is
// cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.PruneAll(ctx)
	}); err != nil {
		return err
	}
	p.cron.Start()
	go func() {
		<-ctx.Done()
		<-p.cron.Stop().Done()
	}()
	p.logger.Infow("Pruner started", zap.String("schedule", p.schedule))
	return nil
}

// PruneAll runs one pruning pass over every plugin.
func (p *Pruner) PruneAll(ctx context.Context) {
	now := p.clock()
	for _, pl := range p.plugins() {
		retention := pl.Spec().Retention
		if retention <= 0 {
			continue
		}
		cutoff := now.Add(-retention)
		deleted, err := p.store.DeleteBefore(ctx, pl.Ident(), cutoff)
		if err != nil {
			p.logger.Errorw("Failed to prune plugin rows",
				zap.String("plugin", pl.Ident()), zap.Error(err))
			continue
		}
		prunedRowsCount.WithLabelValues(pl.Ident()).Add(float64(deleted))
		if deleted > 0 {
			p.logger.Infow("Pruned expired rows",
				zap.String("plugin", pl.Ident()),
				zap.Int64("rows", deleted),
				zap.Time("cutoff", cutoff))
		}
	}
}
