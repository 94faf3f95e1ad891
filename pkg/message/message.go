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

// Package message defines the envelope the bus transports deliver to the
// aggregator. The envelope carries just enough for scheduling, the payload
// stays opaque until a plugin interprets it.
package message

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	sharedutil "github.com/vivekanand1101/statscache/pkg/shared/util"
)

// Message is one bus message as seen by the plugins.
type Message struct {
	// Topic the message was published on.
	Topic string `json:"topic"`
	// ID is the bus message id, used for duplicate suppression.
	ID string `json:"id"`
	// Timestamp is the event time of the message.
	Timestamp time.Time `json:"timestamp"`
	// Body is the raw payload.
	Body []byte `json:"body"`
}

// envelope is the wire shape of a bus payload. Fields are best-effort,
// publishers are not uniform.
type envelope struct {
	ID        string          `json:"msg_id"`
	Timestamp json.RawMessage `json:"timestamp"`
	Body      json.RawMessage `json:"msg"`
}

// Decode builds a Message from a raw bus payload. It is total: payloads that
// cannot be interpreted yield a message carrying the raw body and the arrival
// time, which plugins are free to ignore.
func Decode(topic string, data []byte, arrival time.Time) *Message {
	m := &Message{
		Topic:     topic,
		Timestamp: arrival.UTC(),
		Body:      data,
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.ID = uuid.New().String()
		return m
	}
	if env.ID != "" {
		m.ID = env.ID
	} else {
		m.ID = uuid.New().String()
	}
	if len(env.Body) > 0 {
		m.Body = env.Body
	}
	if ts := decodeTimestamp(env.Timestamp); !ts.IsZero() {
		m.Timestamp = ts
	}
	return m
}

func decodeTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// not a string, try a bare number
		s = string(raw)
	}
	t, err := sharedutil.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
