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

package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Option func(*kafkaSource) error

// WithLogger is used to return logger information
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *kafkaSource) error {
		o.logger = l
		return nil
	}
}

// WithBufferSize is used to return size of message channel information
func WithBufferSize(s int) Option {
	return func(o *kafkaSource) error {
		o.handlerBuffer = s
		return nil
	}
}

// WithReadTimeOut is used to set the read timeout for the from buffer
func WithReadTimeOut(t time.Duration) Option {
	return func(o *kafkaSource) error {
		o.readTimeout = t
		return nil
	}
}

// SASL carries the authentication parameters for the brokers.
type SASL struct {
	// Mechanism is one of "plain", "scram-sha-256", "scram-sha-512".
	Mechanism string `mapstructure:"mechanism"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
}

// WithSASL enables SASL authentication on the consumer connection.
func WithSASL(s SASL) Option {
	return func(o *kafkaSource) error {
		if o.config == nil {
			cfg := sarama.NewConfig()
			cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
			o.config = cfg
		}
		o.config.Net.SASL.Enable = true
		o.config.Net.SASL.User = s.User
		o.config.Net.SASL.Password = s.Password
		switch s.Mechanism {
		case "plain", "":
			o.config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "scram-sha-256":
			o.config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			o.config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha256HashGenerator}
			}
		case "scram-sha-512":
			o.config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			o.config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha512HashGenerator}
			}
		default:
			return fmt.Errorf("unsupported sasl mechanism %q", s.Mechanism)
		}
		return nil
	}
}
