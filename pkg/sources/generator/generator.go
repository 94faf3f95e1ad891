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

// Package generator implements a synthetic message source emitting
// well-formed envelopes at a fixed rate. It exists for development and
// end-to-end tests, no bus required.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	"github.com/vivekanand1101/statscache/pkg/sources"
)

type memGen struct {
	// rps is the number of messages to generate per second
	rps int
	// topic the synthetic messages are stamped with
	topic       string
	messages    chan *message.Message
	readTimeout time.Duration
	cancel      context.CancelFunc
	logger      *zap.SugaredLogger
}

type Option func(*memGen) error

// WithReadTimeout sets the timeout for a Read call
func WithReadTimeout(t time.Duration) Option {
	return func(o *memGen) error {
		o.readTimeout = t
		return nil
	}
}

// WithLogger is used to return logger information
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *memGen) error {
		o.logger = l
		return nil
	}
}

// NewMemGen starts a generator emitting rps messages per second on the
// given topic.
func NewMemGen(ctx context.Context, rps int, topic string, opts ...Option) (sources.Source, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("generator rate must be positive, got %d", rps)
	}
	gctx, cancel := context.WithCancel(context.Background())
	g := &memGen{
		rps:         rps,
		topic:       topic,
		messages:    make(chan *message.Message, 1000),
		readTimeout: 1 * time.Second,
		cancel:      cancel,
		logger:      logging.FromContext(ctx),
	}
	for _, o := range opts {
		if err := o(g); err != nil {
			cancel()
			return nil, err
		}
	}
	go g.generate(gctx)
	return g, nil
}

func (g *memGen) generate(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(g.rps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			body, _ := json.Marshal(map[string]interface{}{
				"msg_id":    uuid.New().String(),
				"timestamp": now.UTC().Format(time.RFC3339Nano),
				"msg":       map[string]interface{}{"value": now.UnixNano()},
			})
			select {
			case g.messages <- message.Decode(g.topic, body, now):
			default:
				// consumer is behind, drop on the floor
			}
		}
	}
}

func (g *memGen) Read(_ context.Context, count int64) ([]*message.Message, error) {
	var msgs []*message.Message
	timeout := time.After(g.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-g.messages:
			msgs = append(msgs, m)
		case <-timeout:
			break loop
		}
	}
	return msgs, nil
}

func (g *memGen) Pending(_ context.Context) (int64, error) {
	return int64(len(g.messages)), nil
}

func (g *memGen) Close() error {
	g.logger.Info("Shutting down the generator source...")
	g.cancel()
	return nil
}
