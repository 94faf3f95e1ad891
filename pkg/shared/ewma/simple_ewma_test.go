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

package ewma

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleEWMA(t *testing.T) {
	e := NewSimpleEWMA()
	assert.Equal(t, 0.0, e.Get())

	// the first sample initializes the average
	e.Add(10)
	assert.Equal(t, 10.0, e.Get())

	// later samples pull the average towards them
	e.Add(20)
	got := e.Get()
	assert.Greater(t, got, 10.0)
	assert.Less(t, got, 20.0)

	e.Reset()
	assert.Equal(t, 0.0, e.Get())
	e.Add(5)
	assert.Equal(t, 5.0, e.Get())
}

func TestSimpleEWMACustomAlpha(t *testing.T) {
	// alpha=1 gives decay 1.0, the average tracks the last sample exactly
	e := NewSimpleEWMA(1.0)
	e.Add(10)
	e.Add(30)
	assert.Equal(t, 30.0, e.Get())
}

func TestSimpleEWMASet(t *testing.T) {
	e := NewSimpleEWMA()
	e.Set(42)
	assert.Equal(t, 42.0, e.Get())
}
