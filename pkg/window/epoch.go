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

// Package window implements the statistics epoch and the epoch-aligned
// schedules the plugins commit their windows against. The epoch is fixed once
// per process so that no plugin's first window starts before the daemon was
// able to observe data, and so that a restart never shifts boundaries a
// plugin has already committed rows for.
package window

import (
	"sync"
	"time"
)

// Clock returns the current instant. It is injected wherever the package
// needs "now" so tests can run against a deterministic time source.
type Clock func() time.Time

var (
	epochOnce sync.Once
	epoch     time.Time
)

// ProcessEpoch fixes and returns the process-wide statistics epoch. The
// first call pins the epoch from the given clock, every later call returns
// the same instant regardless of the clock passed.
func ProcessEpoch(clock Clock) time.Time {
	epochOnce.Do(func() {
		if clock == nil {
			clock = time.Now
		}
		epoch = clock().UTC()
	})
	return epoch
}
