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

package util

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff holds parameters applied to a retry loop.
type Backoff struct {
	// Steps is the remaining number of attempts.
	Steps int
	// Duration is the base delay between the attempts.
	Duration time.Duration
	// Factor multiplies the delay after each attempt.
	Factor float64
	// Jitter randomizes each delay by up to the given fraction.
	Jitter float64
}

var DefaultRetryBackoff = Backoff{
	Steps:    10,
	Duration: 5 * time.Second,
	Factor:   2.0,
	Jitter:   0.1,
}

// Step returns the next delay and decrements the remaining steps.
func (b *Backoff) Step() time.Duration {
	b.Steps--
	d := b.Duration
	if b.Factor > 0 {
		b.Duration = time.Duration(float64(b.Duration) * b.Factor)
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Float64() * b.Jitter * float64(d))
	}
	return d
}

// ExponentialBackoff retries fn with the given backoff until it succeeds,
// the steps run out, or the context is done.
func ExponentialBackoff(ctx context.Context, backoff Backoff, fn func() error) error {
	var err error
	for backoff.Steps > 0 {
		if err = fn(); err == nil {
			return nil
		}
		if backoff.Steps == 1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff.Step()):
		}
	}
	return fmt.Errorf("retries exhausted: %w", err)
}
