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
	"fmt"

	natslib "github.com/nats-io/nats.go"

	redislib "github.com/redis/go-redis/v9"

	"github.com/vivekanand1101/statscache/pkg/config"
	"github.com/vivekanand1101/statscache/pkg/shared/clients/natsclient"
	"github.com/vivekanand1101/statscache/pkg/sources"
	"github.com/vivekanand1101/statscache/pkg/sources/generator"
	"github.com/vivekanand1101/statscache/pkg/sources/kafka"
	"github.com/vivekanand1101/statscache/pkg/sources/natssrc"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/store/inmem"
	"github.com/vivekanand1101/statscache/pkg/store/redis"
	"github.com/vivekanand1101/statscache/pkg/store/sqlite"
)

const defaultGeneratorRPU = 5

func buildStore(_ context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return sqlite.Open(cfg.Store.SQLite.Path)
	case "redis":
		return redis.NewRedisStore(&redislib.UniversalOptions{
			Addrs:    cfg.Store.Redis.Addrs,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}), nil
	case "inmem":
		return inmem.NewInMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildSource(ctx context.Context, cfg *config.Config) (sources.Source, error) {
	switch cfg.Source.Backend {
	case "nats":
		nc := cfg.Source.NATS
		var natsOpts []natslib.Option
		if nc.User != "" {
			natsOpts = append(natsOpts, natsclient.WithAuth(nc.User, nc.Password))
		}
		if nc.Token != "" {
			natsOpts = append(natsOpts, natslib.Token(nc.Token))
		}
		client, err := natsclient.NewNATSClient(ctx, nc.URL, natsOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		return natssrc.New(ctx, client, nc.Stream, nc.Subject)
	case "kafka":
		kc := cfg.Source.Kafka
		var kafkaOpts []kafka.Option
		if kc.Config != "" {
			kafkaOpts = append(kafkaOpts, kafka.WithSaramaConfigYAML(kc.Config))
		}
		if kc.SASL.Enable {
			kafkaOpts = append(kafkaOpts, kafka.WithSASL(kafka.SASL{
				Mechanism: kc.SASL.Mechanism,
				User:      kc.SASL.User,
				Password:  kc.SASL.Password,
			}))
		}
		return kafka.New(ctx, kc.Brokers, kc.Topic, kc.ConsumerGroup, kafkaOpts...)
	case "generator":
		rpu := cfg.Source.Generator.RPU
		if rpu <= 0 {
			rpu = defaultGeneratorRPU
		}
		return generator.NewMemGen(ctx, rpu, cfg.Source.Generator.Topic)
	default:
		return nil, fmt.Errorf("unknown source backend %q", cfg.Source.Backend)
	}
}
