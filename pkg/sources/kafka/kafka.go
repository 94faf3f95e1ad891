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

// Package kafka implements the message source on a Kafka consumer group.
// Catch-up after a restart comes from the committed group offsets; the
// source is not replayable by time.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
	"github.com/vivekanand1101/statscache/pkg/sources"
)

type kafkaSource struct {
	// topic to consume messages from
	topic string
	// kafka brokers
	brokers []string
	// group name for the consumer group
	groupName string
	// sarama config for the consumer group
	config *sarama.Config
	// handler for the consumer group session
	handler *consumerHandler
	// lifecycle context
	lifecycleCtx context.Context
	cancelFn     context.CancelFunc
	// channel to indicate that the consume loop is done
	stopCh chan struct{}
	// size of the buffer that holds consumed but unread messages
	handlerBuffer int
	// read timeout for the from buffer
	readTimeout time.Duration
	// client used to calculate pending messages
	adminClient  sarama.ClusterAdmin
	saramaClient sarama.Client
	logger       *zap.SugaredLogger
}

// New starts a consumer group reader for the given brokers/topic.
func New(ctx context.Context, brokers []string, topic, groupName string, opts ...Option) (sources.Source, error) {
	k := &kafkaSource{
		topic:         topic,
		brokers:       brokers,
		groupName:     groupName,
		handlerBuffer: 100,             // default buffer size for kafka reads
		readTimeout:   1 * time.Second, // default timeout
		logger:        logging.FromContext(ctx),
	}
	for _, o := range opts {
		if err := o(k); err != nil {
			return nil, err
		}
	}
	if k.groupName == "" {
		return nil, fmt.Errorf("kafka consumer group name is required")
	}
	if k.config == nil {
		cfg := sarama.NewConfig()
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
		k.config = cfg
	}

	sarama.Logger = zap.NewStdLog(k.logger.Desugar())

	k.handler = newConsumerHandler(k.handlerBuffer)
	k.lifecycleCtx, k.cancelFn = context.WithCancel(context.Background())
	k.stopCh = make(chan struct{})

	client, err := sarama.NewClient(k.brokers, k.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	k.saramaClient = client
	adminClient, err := sarama.NewClusterAdminFromClient(client)
	if err != nil {
		if !client.Closed() {
			_ = client.Close()
		}
		return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	k.adminClient = adminClient

	go k.startConsumer()
	// wait for the consumer to set up.
	<-k.handler.ready
	k.logger.Info("Consumer ready. Starting kafka reader...")
	return k, nil
}

func (r *kafkaSource) startConsumer() {
	defer close(r.stopCh)
	group, err := sarama.NewConsumerGroupFromClient(r.groupName, r.saramaClient)
	if err != nil {
		r.logger.Errorw("Failed to create consumer group", zap.Error(err))
		r.handler.setupOnce.Do(func() { close(r.handler.ready) })
		return
	}
	defer func() { _ = group.Close() }()
	for {
		// `Consume` should be called inside an infinite loop, when a
		// server-side rebalance happens, the consumer session needs to be
		// recreated to get the new claims
		if err := group.Consume(r.lifecycleCtx, []string{r.topic}, r.handler); err != nil {
			r.logger.Errorw("Consume exited with error", zap.Error(err))
		}
		if r.lifecycleCtx.Err() != nil {
			return
		}
	}
}

func (r *kafkaSource) Read(_ context.Context, count int64) ([]*message.Message, error) {
	msgs := make([]*message.Message, 0, count)
	timeout := time.After(r.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-r.handler.messages:
			kafkaSourceReadCount.WithLabelValues(r.topic).Inc()
			msgs = append(msgs, message.Decode(m.Topic, m.Value, m.Timestamp))
		case <-timeout:
			// log that timeout has happened and don't return an error
			r.logger.Debugw("Timed out waiting for messages to read.", zap.Duration("waited", r.readTimeout))
			break loop
		}
	}
	return msgs, nil
}

func (r *kafkaSource) Pending(_ context.Context) (int64, error) {
	if r.adminClient == nil || r.saramaClient == nil {
		return sources.PendingNotAvailable, nil
	}
	partitions, err := r.saramaClient.Partitions(r.topic)
	if err != nil {
		return sources.PendingNotAvailable, fmt.Errorf("failed to get partitions, %w", err)
	}
	totalPending := int64(0)
	rep, err := r.adminClient.ListConsumerGroupOffsets(r.groupName, map[string][]int32{r.topic: partitions})
	if err != nil {
		return sources.PendingNotAvailable, fmt.Errorf("failed to list consumer group offsets, %w", err)
	}
	for _, partition := range partitions {
		block := rep.GetBlock(r.topic, partition)
		if block.Offset == -1 {
			// no offset under the consumer group usually means no data has
			// been published to the partition yet, skip it
			continue
		}
		partitionOffset, err := r.saramaClient.GetOffset(r.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return sources.PendingNotAvailable, fmt.Errorf("failed to get offset of topic %q, partition %v, %w", r.topic, partition, err)
		}
		totalPending += partitionOffset - block.Offset
	}
	kafkaPending.WithLabelValues(r.topic, r.groupName).Set(float64(totalPending))
	return totalPending, nil
}

func (r *kafkaSource) Close() error {
	r.logger.Info("Closing kafka reader...")
	r.cancelFn()
	if r.adminClient != nil {
		// closes the underlying sarama client as well.
		if err := r.adminClient.Close(); err != nil {
			r.logger.Errorw("Error in closing kafka admin client", zap.Error(err))
		}
	}
	<-r.stopCh
	r.logger.Info("Kafka reader closed")
	return nil
}

// WithSaramaConfigYAML overrides the consumer configuration with a YAML
// document in sarama's own shape.
func WithSaramaConfigYAML(yaml string) Option {
	return func(o *kafkaSource) error {
		cfg, err := sharedutil.GetSaramaConfigFromYAMLString(yaml)
		if err != nil {
			return err
		}
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
		o.config = cfg
		return nil
	}
}
