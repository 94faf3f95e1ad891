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

package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekanand1101/statscache/pkg/aggregator"
	"github.com/vivekanand1101/statscache/pkg/config"
	"github.com/vivekanand1101/statscache/pkg/plugin"
	"github.com/vivekanand1101/statscache/pkg/store/inmem"
)

func TestBuildPluginsIsolatesBrokenEntries(t *testing.T) {
	d := New("unused.yaml")
	d.epoch = time.Unix(1651129200, 0).UTC()
	plugins := d.buildPlugins([]config.PluginConfig{
		{Kind: "volume", Spec: pluginSpec("Volume", time.Minute)},
		{Kind: "", Spec: pluginSpec("Kindless", time.Minute)},
		{Kind: "no-such-kind", Spec: pluginSpec("Unknown", time.Minute)},
		{Kind: "topics", Spec: plugin.Spec{}},                     // missing identity fields
		{Kind: "volume", Spec: pluginSpec("Volume", time.Minute)}, // duplicate ident
	})
	require.Len(t, plugins, 1)
	assert.Equal(t, "volume-1m0s", plugins[0].Ident())
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()
	s, err := buildStore(ctx, &config.Config{Store: config.StoreConfig{Backend: "inmem"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = buildStore(ctx, &config.Config{Store: config.StoreConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = buildStore(ctx, &config.Config{Store: config.StoreConfig{Backend: "etcd"}})
	assert.Error(t, err)
}

func TestBuildSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, err := buildSource(ctx, &config.Config{Source: config.SourceConfig{
		Backend:   "generator",
		Generator: config.GeneratorConfig{RPU: 1, Topic: "test"},
	}})
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = buildSource(ctx, &config.Config{Source: config.SourceConfig{Backend: "carrier-pigeon"}})
	assert.Error(t, err)
}

func TestDaemonRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statscache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poll_interval: 10ms
store:
  backend: inmem
source:
  backend: generator
  generator:
    rpu: 10
    topic: test
server:
  address: "127.0.0.1:0"
plugins:
  - kind: volume
    name: Volume
    summary: message volume
    description: messages observed per window
    interval: 1m
`), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	d := New(path)
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		infos := pluginsOf(d)
		return len(infos) == 1
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		d.mu.RLock()
		agg := d.agg
		d.mu.RUnlock()
		if agg == nil {
			return false
		}
		infos := agg.Runners()
		return len(infos) == 1 && infos[0].Processed > 0
	}, 5*time.Second, 20*time.Millisecond, "generated messages should flow through the plugin")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestApplyConfigReconcilesPluginSet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := New("unused.yaml")
	d.epoch = time.Unix(1651129200, 0).UTC()
	plugins := d.buildPlugins([]config.PluginConfig{
		{Kind: "volume", Spec: pluginSpec("Volume", time.Minute)},
		{Kind: "topics", Spec: pluginSpec("Topics", time.Minute)},
	})
	require.Len(t, plugins, 2)
	d.plugins = plugins

	s := inmem.NewInMemStore()
	defer func() { _ = s.Close() }()
	src, err := buildSource(ctx, &config.Config{Source: config.SourceConfig{
		Backend:   "generator",
		Generator: config.GeneratorConfig{RPU: 1, Topic: "test"},
	}})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	agg := aggregator.New(ctx, s, src, plugins, aggregator.WithPollInterval(10*time.Millisecond))
	d.agg = agg
	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(agg.Runners()) == 2
	}, 3*time.Second, 10*time.Millisecond)

	// volume is unchanged, topics goes away, latency is new
	d.applyConfig(&config.Config{Plugins: []config.PluginConfig{
		{Kind: "volume", Spec: pluginSpec("Volume", time.Minute)},
		{Kind: "latency", Spec: pluginSpec("Latency", time.Minute)},
	}})

	require.Eventually(t, func() bool {
		infos := agg.Runners()
		return len(infos) == 2 &&
			infos[0].Ident == "latency-1m0s" &&
			infos[1].Ident == "volume-1m0s"
	}, 3*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"latency-1m0s", "volume-1m0s"}, pluginsOf(d))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("aggregator did not stop")
	}
}

func pluginsOf(d *Daemon) []string {
	var idents []string
	for _, p := range d.Plugins() {
		idents = append(idents, p.Ident())
	}
	return idents
}

func pluginSpec(name string, interval time.Duration) plugin.Spec {
	return plugin.Spec{
		Name:        name,
		Summary:     "summary",
		Description: "description",
		Interval:    interval,
	}
}

func TestApplyConfigWithoutAggregatorIsNoop(t *testing.T) {
	d := New("unused.yaml")
	d.applyConfig(&config.Config{})
	assert.Empty(t, d.Plugins())
}
