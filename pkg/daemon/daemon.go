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

// Package daemon assembles the statscache process: store, source, plugins,
// aggregator, pruner and the query service, driven by one configuration
// file. The epoch every window schedule anchors to is fixed once here, at
// startup.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vivekanand1101/statscache/pkg/aggregator"
	"github.com/vivekanand1101/statscache/pkg/config"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	_ "github.com/vivekanand1101/statscache/pkg/plugin/builtin" // register builtin plugin builders
	"github.com/vivekanand1101/statscache/pkg/pruner"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
	"github.com/vivekanand1101/statscache/pkg/window"
	"github.com/vivekanand1101/statscache/server"
	v1 "github.com/vivekanand1101/statscache/server/apis/v1"
)

// Daemon is the whole statscache process.
type Daemon struct {
	configPath string
	clock      window.Clock
	epoch      time.Time
	logger     *zap.SugaredLogger

	mu      sync.RWMutex
	plugins []plugin.Plugin
	agg     *aggregator.Aggregator
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClock overrides the time source, for tests.
func WithClock(clock window.Clock) Option {
	return func(d *Daemon) {
		d.clock = clock
	}
}

// New returns a Daemon reading its configuration from configPath.
func New(configPath string, opts ...Option) *Daemon {
	d := &Daemon{
		configPath: configPath,
		clock:      time.Now,
		logger:     logging.NewLogger().Named("daemon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Plugins returns the currently running plugin set.
func (d *Daemon) Plugins() []plugin.Plugin {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]plugin.Plugin{}, d.plugins...)
}

// Run starts every component and blocks until the context is cancelled or a
// component fails.
func (d *Daemon) Run(ctx context.Context) (err error) {
	d.logger = logging.FromContext(ctx).Named("daemon")
	d.epoch = window.ProcessEpoch(d.clock)
	d.logger.Infow("Starting statscache", zap.Time("epoch", d.epoch))

	cfg, err := config.Watch(d.configPath,
		func(next *config.Config) { d.applyConfig(next) },
		func(err error) { d.logger.Errorw("Ignoring unparseable configuration change", zap.Error(err)) },
	)
	if err != nil {
		return err
	}

	plugins := d.buildPlugins(cfg.Plugins)
	if len(plugins) == 0 {
		return fmt.Errorf("no usable plugins configured")
	}
	d.mu.Lock()
	d.plugins = plugins
	d.mu.Unlock()

	s, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()
	src, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	agg := aggregator.New(ctx, s, src, plugins,
		aggregator.WithPollInterval(cfg.PollInterval),
		aggregator.WithReadBatchSize(int64(sharedutil.LookupEnvIntOr("STATSCACHE_READ_BATCH_SIZE", 100))),
		aggregator.WithClock(d.clock))
	d.mu.Lock()
	d.agg = agg
	d.mu.Unlock()

	prunerOpts := []pruner.Option{pruner.WithClock(d.clock)}
	if cfg.Pruner.Schedule != "" {
		prunerOpts = append(prunerOpts, pruner.WithSchedule(cfg.Pruner.Schedule))
	}
	pr := pruner.New(ctx, s, d.Plugins, prunerOpts...)

	handler := v1.NewHandler(s, d.Plugins,
		v1.WithRunnerInfo(agg.Runners),
		v1.WithClock(d.clock))
	srv := server.NewServer(cfg.Server.Address, handler)

	g, gctx := errgroup.WithContext(ctx)
	if err := pr.Start(gctx); err != nil {
		return fmt.Errorf("failed to start pruner: %w", err)
	}
	g.Go(func() error {
		return agg.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})
	return g.Wait()
}

// buildPlugins constructs plugins from config entries. A broken entry is
// logged and skipped; it never takes the other plugins down.
func (d *Daemon) buildPlugins(entries []config.PluginConfig) []plugin.Plugin {
	var plugins []plugin.Plugin
	seen := make(map[string]bool)
	for _, pc := range entries {
		p, err := d.buildPlugin(pc)
		if err != nil {
			d.logger.Errorw("Skipping unusable plugin configuration",
				zap.String("name", pc.Name), zap.String("kind", pc.Kind), zap.Error(err))
			continue
		}
		if seen[p.Ident()] {
			d.logger.Errorw("Skipping duplicate plugin", zap.String("plugin", p.Ident()))
			continue
		}
		seen[p.Ident()] = true
		plugins = append(plugins, p)
	}
	return plugins
}

func (d *Daemon) buildPlugin(pc config.PluginConfig) (plugin.Plugin, error) {
	if pc.Kind == "" {
		return nil, fmt.Errorf("plugin entry has no kind")
	}
	builder, ok := plugin.GetBuilder(pc.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown plugin kind %q", pc.Kind)
	}
	sched := window.NewSchedule(d.epoch, pc.Interval)
	return builder(pc.Spec, sched, plugin.WithClock(d.clock))
}

// applyConfig reconciles a reloaded plugin set against the running one.
// Unchanged plugins keep their runners; added, removed and modified entries
// only touch their own.
func (d *Daemon) applyConfig(next *config.Config) {
	d.mu.RLock()
	agg := d.agg
	d.mu.RUnlock()
	if agg == nil {
		return
	}

	desired := make(map[string]plugin.Plugin)
	for _, pc := range next.Plugins {
		p, err := d.buildPlugin(pc)
		if err != nil {
			d.logger.Errorw("Skipping unusable plugin configuration on reload",
				zap.String("name", pc.Name), zap.String("kind", pc.Kind), zap.Error(err))
			continue
		}
		desired[p.Ident()] = p
	}

	d.mu.Lock()
	current := make(map[string]plugin.Plugin, len(d.plugins))
	for _, p := range d.plugins {
		current[p.Ident()] = p
	}
	running := make([]plugin.Plugin, 0, len(desired))
	for ident, p := range desired {
		if kept, ok := current[ident]; ok {
			// same name and interval, runner keeps going
			running = append(running, kept)
			continue
		}
		if err := agg.AddPlugin(p); err != nil {
			d.logger.Errorw("Failed to add plugin on reload", zap.String("plugin", ident), zap.Error(err))
			continue
		}
		d.logger.Infow("Plugin added on reload", zap.String("plugin", ident))
		running = append(running, p)
	}
	for ident := range current {
		if _, ok := desired[ident]; !ok {
			agg.RemovePlugin(ident)
			d.logger.Infow("Plugin removed on reload", zap.String("plugin", ident))
		}
	}
	d.plugins = running
	d.mu.Unlock()
}
