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

// Package natssrc implements the message source on a NATS JetStream
// stream. JetStream can start delivery at an arbitrary instant, which
// makes this source replayable for watermark catch-up.
package natssrc

import (
	"context"
	"fmt"
	"sync"
	"time"

	natslib "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/shared/clients/natsclient"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	"github.com/vivekanand1101/statscache/pkg/sources"
)

type natsSource struct {
	lock        sync.Mutex
	client      *natsclient.Client
	sub         *natslib.Subscription
	quit        chan struct{}
	stream      string
	subject     string
	bufferSize  int
	messages    chan *message.Message
	readTimeout time.Duration
	logger      *zap.SugaredLogger
}

type Option func(*natsSource) error

// WithLogger is used to return logger information
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *natsSource) error {
		o.logger = l
		return nil
	}
}

// WithBufferSize sets the buffer size for storing the messages from nats
func WithBufferSize(s int) Option {
	return func(o *natsSource) error {
		o.bufferSize = s
		return nil
	}
}

// WithReadTimeout sets the read timeout
func WithReadTimeout(t time.Duration) Option {
	return func(o *natsSource) error {
		o.readTimeout = t
		return nil
	}
}

// New subscribes the given stream/subject and returns the source. Delivery
// starts with new messages; use Replay to start at an earlier instant.
func New(ctx context.Context, client *natsclient.Client, stream, subject string, opts ...Option) (sources.Source, error) {
	n := &natsSource{
		client:      client,
		stream:      stream,
		subject:     subject,
		bufferSize:  1000,            // default size
		readTimeout: 1 * time.Second, // default timeout
		logger:      logging.FromContext(ctx),
	}
	for _, o := range opts {
		if err := o(n); err != nil {
			return nil, err
		}
	}
	n.messages = make(chan *message.Message, n.bufferSize)
	if err := n.subscribe(natslib.DeliverNew()); err != nil {
		return nil, err
	}
	return n, nil
}

func (ns *natsSource) subscribe(start natslib.SubOpt) error {
	sub, err := ns.client.Subscribe(ns.subject, ns.stream,
		start,
		natslib.AckNone(),
		natslib.ReplayInstant(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %q: %w", ns.subject, err)
	}
	ns.sub = sub
	ns.quit = make(chan struct{})
	go ns.pump(sub, ns.quit)
	return nil
}

// stopPump releases the pump goroutine of the current subscription.
// Callers hold the lock.
func (ns *natsSource) stopPump() {
	if ns.quit != nil {
		close(ns.quit)
		ns.quit = nil
	}
}

// pump moves raw bus messages into the buffered channel until the
// subscription becomes invalid or quit closes. The quit channel is what
// frees a pump blocked on a full buffer after an unsubscribe.
func (ns *natsSource) pump(sub *natslib.Subscription, quit chan struct{}) {
	for {
		msg, err := sub.NextMsg(time.Second)
		if err != nil {
			if err == natslib.ErrTimeout {
				select {
				case <-quit:
					return
				default:
					continue
				}
			}
			// closed or drained subscription, stop
			return
		}
		arrival := time.Now()
		if meta, err := msg.Metadata(); err == nil {
			arrival = meta.Timestamp
		}
		m := message.Decode(msg.Subject, msg.Data, arrival)
		natsSourceReadCount.WithLabelValues(ns.stream).Inc()
		select {
		case ns.messages <- m:
		case <-quit:
			return
		}
	}
}

// Replay drops the current subscription and starts a new one delivering
// every stream message timestamped at or after since.
func (ns *natsSource) Replay(_ context.Context, since time.Time) error {
	ns.lock.Lock()
	defer ns.lock.Unlock()
	ns.stopPump()
	if ns.sub != nil {
		if err := ns.sub.Unsubscribe(); err != nil {
			ns.logger.Errorw("Failed to unsubscribe before replay", zap.Error(err))
		}
	}
	ns.logger.Infow("Replaying the stream", zap.String("stream", ns.stream), zap.Time("since", since))
	// a zero instant means no watermark exists yet, start from the oldest
	// retained message
	start := natslib.StartTime(since)
	if since.IsZero() {
		start = natslib.DeliverAll()
	}
	return ns.subscribe(start)
}

func (ns *natsSource) Read(_ context.Context, count int64) ([]*message.Message, error) {
	var msgs []*message.Message
	timeout := time.After(ns.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-ns.messages:
			msgs = append(msgs, m)
		case <-timeout:
			ns.logger.Debugw("Timed out waiting for messages to read.", zap.Duration("waited", ns.readTimeout), zap.Int("read", len(msgs)))
			break loop
		}
	}
	ns.logger.Debugf("Read %d messages.", len(msgs))
	return msgs, nil
}

func (ns *natsSource) Pending(_ context.Context) (int64, error) {
	ns.lock.Lock()
	defer ns.lock.Unlock()
	if ns.sub == nil {
		return sources.PendingNotAvailable, nil
	}
	info, err := ns.sub.ConsumerInfo()
	if err != nil {
		return sources.PendingNotAvailable, fmt.Errorf("failed to get consumer info: %w", err)
	}
	return int64(info.NumPending), nil
}

func (ns *natsSource) Close() error {
	ns.logger.Info("Shutting down nats source...")
	ns.lock.Lock()
	defer ns.lock.Unlock()
	ns.stopPump()
	if ns.sub != nil {
		if err := ns.sub.Unsubscribe(); err != nil {
			ns.logger.Errorw("Failed to unsubscribe nats subscription", zap.Error(err))
		}
	}
	ns.logger.Info("Nats source shutdown")
	return nil
}
