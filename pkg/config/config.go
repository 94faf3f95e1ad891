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

// Package config loads and watches the daemon configuration file. Plugin
// entries inherit from a shared defaults block, so a deployment tunes
// interval, backlog and retention once.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/imdario/mergo"
	"github.com/spf13/viper"

	"github.com/vivekanand1101/statscache/pkg/plugin"
)

// Config is the full daemon configuration.
type Config struct {
	// PollInterval is how often runners check their window boundaries.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Store        StoreConfig   `mapstructure:"store"`
	Source       SourceConfig  `mapstructure:"source"`
	Server       ServerConfig  `mapstructure:"server"`
	Pruner       PrunerConfig  `mapstructure:"pruner"`
	// Defaults is merged under every plugin entry.
	Defaults plugin.Spec    `mapstructure:"defaults"`
	Plugins  []PluginConfig `mapstructure:"plugins"`
}

// PluginConfig selects a registered builder and carries its spec.
type PluginConfig struct {
	Kind        string `mapstructure:"kind"`
	plugin.Spec `mapstructure:",squash"`
}

// StoreConfig selects the model storage backend.
type StoreConfig struct {
	// Backend is one of "sqlite", "redis" or "inmem".
	Backend string       `mapstructure:"backend"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	DB       int      `mapstructure:"db"`
}

// SourceConfig selects the bus transport.
type SourceConfig struct {
	// Backend is one of "nats", "kafka" or "generator".
	Backend   string          `mapstructure:"backend"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

type NATSConfig struct {
	URL      string `mapstructure:"url"`
	Stream   string `mapstructure:"stream"`
	Subject  string `mapstructure:"subject"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumerGroup"`
	// Config is an optional sarama configuration in YAML.
	Config string `mapstructure:"config"`
	SASL   struct {
		Enable    bool   `mapstructure:"enable"`
		Mechanism string `mapstructure:"mechanism"`
		User      string `mapstructure:"user"`
		Password  string `mapstructure:"password"`
	} `mapstructure:"sasl"`
}

type GeneratorConfig struct {
	RPU   int    `mapstructure:"rpu"`
	Topic string `mapstructure:"topic"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type PrunerConfig struct {
	Schedule string `mapstructure:"schedule"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite.path", "statscache.db")
	v.SetDefault("source.backend", "nats")
	v.SetDefault("source.nats.url", "nats://localhost:4222")
	v.SetDefault("server.address", ":8080")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	for i := range c.Plugins {
		if err := mergo.Merge(&c.Plugins[i].Spec, c.Defaults); err != nil {
			return nil, fmt.Errorf("failed to apply plugin defaults: %w", err)
		}
	}
	return c, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return unmarshal(v)
}

// Watch reads the configuration file and invokes onChange with a freshly
// parsed Config every time the file changes. Parse failures of a changed
// file are reported to onError and the previous configuration stays in
// effect.
func Watch(path string, onChange func(*Config), onError func(error)) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	c, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		next, err := unmarshal(v)
		if err != nil {
			onError(err)
			return
		}
		onChange(next)
	})
	v.WatchConfig()
	return c, nil
}
