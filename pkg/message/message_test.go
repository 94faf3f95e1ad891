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

package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	arrival := time.Unix(1651129200, 0).UTC()

	t.Run("full envelope", func(t *testing.T) {
		m := Decode("git.commit", []byte(`{"msg_id":"2022-abc","timestamp":1651129260,"msg":{"author":"ralph"}}`), arrival)
		assert.Equal(t, "git.commit", m.Topic)
		assert.Equal(t, "2022-abc", m.ID)
		assert.Equal(t, time.Unix(1651129260, 0).UTC(), m.Timestamp)
		assert.JSONEq(t, `{"author":"ralph"}`, string(m.Body))
	})

	t.Run("string timestamp", func(t *testing.T) {
		m := Decode("git.commit", []byte(`{"msg_id":"x","timestamp":"2022-04-28T08:00:00Z","msg":{}}`), arrival)
		assert.Equal(t, time.Date(2022, 4, 28, 8, 0, 0, 0, time.UTC), m.Timestamp)
	})

	t.Run("missing id gets one", func(t *testing.T) {
		m := Decode("git.commit", []byte(`{"timestamp":1651129260,"msg":{}}`), arrival)
		assert.NotEmpty(t, m.ID)
	})

	t.Run("missing timestamp falls back to arrival", func(t *testing.T) {
		m := Decode("git.commit", []byte(`{"msg_id":"x","msg":{}}`), arrival)
		assert.Equal(t, arrival, m.Timestamp)
	})

	t.Run("unparseable payload keeps raw body", func(t *testing.T) {
		m := Decode("git.commit", []byte(`not json at all`), arrival)
		assert.Equal(t, arrival, m.Timestamp)
		assert.NotEmpty(t, m.ID)
		assert.Equal(t, []byte(`not json at all`), m.Body)
	})

	t.Run("garbage timestamp falls back to arrival", func(t *testing.T) {
		m := Decode("git.commit", []byte(`{"msg_id":"x","timestamp":"whenever","msg":{}}`), arrival)
		assert.Equal(t, arrival, m.Timestamp)
	})
}
