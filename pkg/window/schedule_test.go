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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testEpoch = time.Unix(1651129200, 0).In(time.UTC)

func TestNextBoundary(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		after    time.Time
		want     time.Time
	}{
		{
			name:     "before_epoch",
			interval: time.Minute,
			after:    testEpoch.Add(-25 * time.Hour),
			want:     testEpoch,
		},
		{
			name:     "at_epoch",
			interval: time.Minute,
			after:    testEpoch,
			want:     testEpoch,
		},
		{
			name:     "mid_window",
			interval: time.Minute,
			after:    testEpoch.Add(10 * time.Second),
			want:     testEpoch.Add(time.Minute),
		},
		{
			name:     "on_boundary",
			interval: time.Minute,
			after:    testEpoch.Add(3 * time.Minute),
			want:     testEpoch.Add(3 * time.Minute),
		},
		{
			name:     "just_past_boundary",
			interval: time.Minute,
			after:    testEpoch.Add(3*time.Minute + time.Nanosecond),
			want:     testEpoch.Add(4 * time.Minute),
		},
		{
			name:     "continuous",
			interval: 0,
			after:    testEpoch.Add(42 * time.Second),
			want:     testEpoch.Add(42 * time.Second),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchedule(testEpoch, tt.interval)
			got := s.NextBoundary(tt.after)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func TestNextBoundaryEpochAligned(t *testing.T) {
	// boundaries must always be a whole number of intervals from the epoch
	s := NewSchedule(testEpoch, 7*time.Minute)
	for _, offset := range []time.Duration{0, time.Second, 6 * time.Minute, 13 * time.Minute, 100 * time.Hour} {
		b := s.NextBoundary(testEpoch.Add(offset))
		assert.Zero(t, b.Sub(testEpoch)%(7*time.Minute))
		assert.False(t, b.Before(testEpoch))
		assert.False(t, b.Before(testEpoch.Add(offset)))
	}
}

func TestTruncate(t *testing.T) {
	s := NewSchedule(testEpoch, time.Hour)
	assert.True(t, testEpoch.Equal(s.Truncate(testEpoch.Add(59*time.Minute))))
	assert.True(t, testEpoch.Add(time.Hour).Equal(s.Truncate(testEpoch.Add(time.Hour))))
	assert.True(t, testEpoch.Equal(s.Truncate(testEpoch.Add(-time.Minute))))
}

func TestScheduleIdentity(t *testing.T) {
	assert.Equal(t, "", NewSchedule(testEpoch, 0).String())
	assert.Equal(t, "1m0s", NewSchedule(testEpoch, time.Minute).String())
	// same interval, same identity, regardless of when the process started
	other := NewSchedule(testEpoch.Add(3*time.Hour), time.Minute)
	assert.Equal(t, NewSchedule(testEpoch, time.Minute).String(), other.String())
}

func TestProcessEpochIsFixed(t *testing.T) {
	first := ProcessEpoch(func() time.Time { return testEpoch })
	// a different clock on a later call must not move the epoch
	second := ProcessEpoch(func() time.Time { return testEpoch.Add(time.Hour) })
	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(ProcessEpoch(nil)))
}
