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

package natssrc

import (
	"context"
	"fmt"
	"testing"
	"time"

	natslib "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vivekanand1101/statscache/pkg/shared/clients/natsclient"
	"github.com/vivekanand1101/statscache/pkg/shared/clients/natsclient/natstest"
	"github.com/vivekanand1101/statscache/pkg/sources"
)

func publishEnvelope(t *testing.T, js natslib.JetStreamContext, subject string, id int, ts time.Time) {
	t.Helper()
	payload := fmt.Sprintf(`{"msg_id":"msg-%d","timestamp":%q,"msg":{"value":%d}}`,
		id, ts.UTC().Format(time.RFC3339), id)
	_, err := js.Publish(subject, []byte(payload))
	require.NoError(t, err)
}

func TestNatsSourceReadAndReplay(t *testing.T) {
	srv := natstest.RunJetStreamServer(t)
	defer natstest.ShutdownJetStreamServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := natsclient.NewNATSClient(ctx, srv.ClientURL())
	require.NoError(t, err)
	defer client.Close()

	js := client.JetStreamContext()
	_, err = js.AddStream(&natslib.StreamConfig{
		Name:     "events",
		Subjects: []string{"events.*"},
	})
	require.NoError(t, err)

	src, err := New(ctx, client, "events", "events.test", WithReadTimeout(3*time.Second))
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		publishEnvelope(t, js, "events.test", i, now.Add(time.Duration(i)*time.Second))
	}

	msgs, err := src.Read(ctx, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg-0", msgs[0].ID)
	assert.Equal(t, "events.test", msgs[0].Topic)
	assert.True(t, msgs[0].Timestamp.Equal(now.Truncate(time.Second)))
	assert.JSONEq(t, `{"value":0}`, string(msgs[0].Body))

	// a zero instant replays the whole stream
	replayer, ok := src.(sources.Replayer)
	require.True(t, ok)
	require.NoError(t, replayer.Replay(ctx, time.Time{}))

	msgs, err = src.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg-0", msgs[0].ID)

	// replaying from a later instant skips the earlier messages
	require.NoError(t, replayer.Replay(ctx, now.Add(2*time.Second)))
	msgs, err = src.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-2", msgs[0].ID)
}

func TestNatsSourceCloseReleasesBlockedPump(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := natstest.RunJetStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := natsclient.NewNATSClient(ctx, srv.ClientURL())
	require.NoError(t, err)

	js := client.JetStreamContext()
	_, err = js.AddStream(&natslib.StreamConfig{
		Name:     "events",
		Subjects: []string{"events.*"},
	})
	require.NoError(t, err)

	// a one-slot buffer that nobody reads leaves the pump blocked mid-send
	src, err := New(ctx, client, "events", "events.test", WithBufferSize(1), WithReadTimeout(100*time.Millisecond))
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		publishEnvelope(t, js, "events.test", i, now)
	}
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, src.Close())
	client.Close()
	natstest.ShutdownJetStreamServer(t, srv)
}

func TestNatsSourcePending(t *testing.T) {
	srv := natstest.RunJetStreamServer(t)
	defer natstest.ShutdownJetStreamServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := natsclient.NewNATSClient(ctx, srv.ClientURL())
	require.NoError(t, err)
	defer client.Close()

	js := client.JetStreamContext()
	_, err = js.AddStream(&natslib.StreamConfig{
		Name:     "events",
		Subjects: []string{"events.*"},
	})
	require.NoError(t, err)

	src, err := New(ctx, client, "events", "events.test", WithReadTimeout(time.Second))
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	pending, err := src.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}
