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

// Package plugin defines the processing unit the aggregator drives. A plugin
// consumes bus messages into in-memory state and commits window results to
// its persisted model on schedule boundaries. All three operations of one
// plugin are serialized by the aggregator, implementations never need their
// own locking.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vivekanand1101/statscache/pkg/message"
	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

// ErrMissingField is wrapped by construction errors for specs missing a
// required identity field. This is a configuration error; registration of
// the offending plugin aborts, other plugins are unaffected.
var ErrMissingField = errors.New("missing required field")

// Plugin is a named statistics unit owning one persisted model.
type Plugin interface {
	Name() string
	Summary() string
	Description() string
	// Ident is the normalized identifier of the plugin's model, safe for
	// URLs and storage keys, unique per (name, schedule).
	Ident() string
	Schedule() *window.Schedule
	Layout() model.Layout
	// Spec returns the configuration the plugin was built from.
	Spec() Spec

	// Process consumes one message into in-memory state only. It must not
	// touch the store and must not fail: messages outside the plugin's
	// domain are silently ignored, the bus redelivers nothing on error.
	Process(m *message.Message)
	// Update persists the results of all closed windows into the model.
	// Calling it again after a matching Revert must yield the same model
	// state.
	Update(ctx context.Context, s store.Store) error
	// Latest returns the instant up to which the model is authoritative.
	Latest(ctx context.Context, s store.Store) (time.Time, error)
	// Revert deletes every model row with timestamp >= when.
	Revert(ctx context.Context, when time.Time, s store.Store) error
}

// Spec carries the configured identity and scheduling parameters of a
// plugin instance.
type Spec struct {
	// Name, Summary and Description are required.
	Name        string `mapstructure:"name"`
	Summary     string `mapstructure:"summary"`
	Description string `mapstructure:"description"`
	// Interval is the window length; zero means continuous.
	Interval time.Duration `mapstructure:"interval"`
	// BacklogLimit bounds how far back the plugin will ever reprocess
	// after a restart or outage; zero means unlimited.
	BacklogLimit time.Duration `mapstructure:"backlogLimit"`
	// Retention is how long committed rows are kept; zero disables pruning.
	Retention time.Duration `mapstructure:"retention"`
	// Topics restricts processing to messages whose topic has one of the
	// given prefixes; empty means all topics.
	Topics []string `mapstructure:"topics"`
}

// Validate checks the required identity fields.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if s.Summary == "" {
		return fmt.Errorf("%w: summary", ErrMissingField)
	}
	if s.Description == "" {
		return fmt.Errorf("%w: description", ErrMissingField)
	}
	return nil
}

// Wants reports whether a message falls inside the spec's topic domain.
func (s Spec) Wants(m *message.Message) bool {
	if len(s.Topics) == 0 {
		return true
	}
	for _, prefix := range s.Topics {
		if len(m.Topic) >= len(prefix) && m.Topic[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
