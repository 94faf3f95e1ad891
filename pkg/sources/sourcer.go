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

// Package sources defines the message bus boundary. Delivery is
// at-least-once; the bus guarantees non-decreasing timestamp order per
// subscription, cross-subscription interleaving is unconstrained.
package sources

import (
	"context"
	"math"
	"time"

	"github.com/vivekanand1101/statscache/pkg/message"
)

// PendingNotAvailable is returned by Pending when the transport cannot
// report a backlog size.
const PendingNotAvailable = int64(math.MinInt64)

// Source reads messages off the bus.
type Source interface {
	// Read returns up to count messages, waiting at most the source's read
	// timeout. A short read is not an error.
	Read(ctx context.Context, count int64) ([]*message.Message, error)
	// Pending returns the number of messages not yet read, or
	// PendingNotAvailable.
	Pending(ctx context.Context) (int64, error)
	Close() error
}

// Replayer is implemented by sources that can restart delivery at a given
// instant, which is what lets the aggregator catch a stalled plugin up from
// its watermark.
type Replayer interface {
	Replay(ctx context.Context, since time.Time) error
}
