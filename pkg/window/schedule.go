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

package window

import (
	"time"
)

// Schedule computes epoch-aligned window boundaries for one plugin.
// A zero interval means continuous scheduling, every update call is
// "on schedule". Schedules are read-only after construction and safe
// to share across goroutines.
type Schedule struct {
	epoch    time.Time
	interval time.Duration
}

// NewSchedule returns a Schedule anchored at the given epoch.
func NewSchedule(epoch time.Time, interval time.Duration) *Schedule {
	if interval < 0 {
		interval = 0
	}
	return &Schedule{epoch: epoch.UTC(), interval: interval}
}

// Epoch returns the reference instant the schedule is anchored at.
func (s *Schedule) Epoch() time.Time {
	return s.epoch
}

// Interval returns the window length, zero for continuous schedules.
func (s *Schedule) Interval() time.Duration {
	return s.interval
}

// Continuous reports whether the schedule has no windowing.
func (s *Schedule) Continuous() bool {
	return s.interval == 0
}

// NextBoundary returns the smallest instant that is >= the epoch, >= after,
// and a whole number of intervals from the epoch. Continuous schedules
// return max(epoch, after).
func (s *Schedule) NextBoundary(after time.Time) time.Time {
	if !after.After(s.epoch) {
		return s.epoch
	}
	if s.interval == 0 {
		return after
	}
	d := after.Sub(s.epoch)
	k := d / s.interval
	if d%s.interval != 0 {
		k++
	}
	return s.epoch.Add(k * s.interval)
}

// Truncate returns the largest boundary <= t, i.e. the start of the window
// t falls into. Instants before the epoch truncate to the epoch.
func (s *Schedule) Truncate(t time.Time) time.Time {
	if !t.After(s.epoch) {
		return s.epoch
	}
	if s.interval == 0 {
		return t
	}
	d := t.Sub(s.epoch)
	return s.epoch.Add(d - d%s.interval)
}

// String returns the stable textual identity of the schedule, empty for
// continuous ones. Two schedules with the same interval share the identity,
// which is what makes a plugin's persisted rows addressable across restarts.
func (s *Schedule) String() string {
	if s.interval == 0 {
		return ""
	}
	return s.interval.String()
}
