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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupEnvStringOr(t *testing.T) {
	assert.Equal(t, "fallback", LookupEnvStringOr("STATSCACHE_TEST_STR", "fallback"))
	t.Setenv("STATSCACHE_TEST_STR", "set")
	assert.Equal(t, "set", LookupEnvStringOr("STATSCACHE_TEST_STR", "fallback"))
	t.Setenv("STATSCACHE_TEST_STR", "")
	assert.Equal(t, "fallback", LookupEnvStringOr("STATSCACHE_TEST_STR", "fallback"))
}

func TestLookupEnvIntOr(t *testing.T) {
	assert.Equal(t, 100, LookupEnvIntOr("STATSCACHE_TEST_INT", 100))
	t.Setenv("STATSCACHE_TEST_INT", "250")
	assert.Equal(t, 250, LookupEnvIntOr("STATSCACHE_TEST_INT", 100))
	t.Setenv("STATSCACHE_TEST_INT", "not-a-number")
	assert.Panics(t, func() { LookupEnvIntOr("STATSCACHE_TEST_INT", 100) })
}

func TestLookupEnvBoolOr(t *testing.T) {
	assert.False(t, LookupEnvBoolOr("STATSCACHE_TEST_BOOL", false))
	t.Setenv("STATSCACHE_TEST_BOOL", "true")
	assert.True(t, LookupEnvBoolOr("STATSCACHE_TEST_BOOL", false))
	t.Setenv("STATSCACHE_TEST_BOOL", "0")
	assert.False(t, LookupEnvBoolOr("STATSCACHE_TEST_BOOL", true))
}
