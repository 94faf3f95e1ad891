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

package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/store"
	"github.com/vivekanand1101/statscache/pkg/window"
)

// Base carries the identity fields and the generic watermark machinery
// shared by all plugins. Concrete plugins embed it and implement Process
// and Update.
type Base struct {
	spec  Spec
	sched *window.Schedule
	clock window.Clock
}

// Option customizes a Base.
type Option func(*Base)

// WithClock overrides the time source used by Latest and the window math.
func WithClock(clock window.Clock) Option {
	return func(b *Base) {
		b.clock = clock
	}
}

// NewBase validates the spec and binds the plugin to its schedule.
func NewBase(spec Spec, sched *window.Schedule, opts ...Option) (*Base, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plugin spec: %w", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("plugin %q: a schedule is required", spec.Name)
	}
	b := &Base{
		spec:  spec,
		sched: sched,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Base) Name() string        { return b.spec.Name }
func (b *Base) Summary() string     { return b.spec.Summary }
func (b *Base) Description() string { return b.spec.Description }

// Spec returns the validated configuration of the plugin.
func (b *Base) Spec() Spec { return b.spec }

// Schedule returns the window schedule the plugin commits against.
func (b *Base) Schedule() *window.Schedule { return b.sched }

// Now returns the current instant from the injected clock.
func (b *Base) Now() time.Time { return b.clock() }

// Ident returns the normalized identifier of the plugin's model. The
// schedule identity is suffixed so the same plugin name can run under
// multiple schedules without the persisted rows colliding.
func (b *Base) Ident() string {
	ident := SanitizeName(b.spec.Name)
	if s := b.sched.String(); s != "" {
		ident = ident + "-" + s
	}
	return ident
}

// Layout returns the default three column layout; plugins with a richer
// shape override it.
func (b *Base) Layout() model.Layout {
	return model.DefaultLayout(b.spec.Name, b.spec.Summary)
}

// Latest returns the instant up to which the model is authoritative: the
// newest committed row, floored by now minus the backlog limit. A plugin
// whose data has only a bounded relevance never re-scans unbounded history
// after an outage.
func (b *Base) Latest(ctx context.Context, s store.Store) (time.Time, error) {
	newest, err := s.Newest(ctx, b.Ident())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to find newest row of %q: %w", b.Ident(), err)
	}
	if b.spec.BacklogLimit > 0 {
		if floor := b.clock().Add(-b.spec.BacklogLimit); newest.Before(floor) {
			newest = floor
		}
	}
	return newest, nil
}

// Revert deletes every model row with timestamp >= when. Reverting the
// window start before a corrective Update guarantees at most one committed
// result per window.
func (b *Base) Revert(ctx context.Context, when time.Time, s store.Store) error {
	if _, err := s.DeleteSince(ctx, b.Ident(), when); err != nil {
		return fmt.Errorf("failed to revert %q to %v: %w", b.Ident(), when, err)
	}
	return nil
}

// ClosedBefore returns the boundary below which windows have closed, i.e.
// the start of the window currently being filled. Rows at or after this
// instant are still provisional.
func (b *Base) ClosedBefore() time.Time {
	return b.sched.Truncate(b.clock())
}
