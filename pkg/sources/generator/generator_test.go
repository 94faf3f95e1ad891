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

package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemGenRejectsBadRate(t *testing.T) {
	_, err := NewMemGen(context.Background(), 0, "test.topic")
	assert.Error(t, err)
	_, err = NewMemGen(context.Background(), -5, "test.topic")
	assert.Error(t, err)
}

func TestMemGenRead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, err := NewMemGen(ctx, 100, "test.topic", WithReadTimeout(2*time.Second))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	msgs, err := g.Read(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.LessOrEqual(t, len(msgs), 5)
	for _, m := range msgs {
		assert.Equal(t, "test.topic", m.Topic)
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Timestamp.IsZero())
		assert.NotEmpty(t, m.Body)
	}
}

func TestMemGenShortRead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, err := NewMemGen(ctx, 5, "test.topic", WithReadTimeout(500*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	// far more than 5 rps can produce within the read timeout
	msgs, err := g.Read(ctx, 1000)
	require.NoError(t, err)
	assert.Less(t, len(msgs), 1000)
}

func TestMemGenPending(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, err := NewMemGen(ctx, 100, "test.topic")
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	assert.Eventually(t, func() bool {
		p, err := g.Pending(ctx)
		return err == nil && p > 0
	}, 3*time.Second, 20*time.Millisecond)
}
