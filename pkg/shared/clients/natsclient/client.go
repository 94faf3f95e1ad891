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

package natsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vivekanand1101/statscache/pkg/shared/logging"
)

// Client is a client for the NATS server which can be shared by multiple
// subscriptions against the same bus.
type Client struct {
	sync.Mutex
	nc    *nats.Conn
	jsCtx nats.JetStreamContext
	log   *zap.SugaredLogger
}

// NewNATSClient creates a new NATS client for the given url
func NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// Enable Nats auto reconnect
		// if max reconnects is set to -1, it will try to reconnect forever
		nats.MaxReconnects(-1),
		// error handler for the connection
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		// connection closed handler
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		// retry on failed connect should be true, else it wont try to reconnect during initial connect
		nats.RetryOnFailedConnect(true),
		// disconnect handler to log when we lose connection
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		// reconnect handler to log when we reconnect
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		// Write (and flush) timeout
		nats.FlusherTimeout(10 * time.Second),
		// If the server doesn't respond to 2 pings we will reconnect
		nats.MaxPingsOutstanding(2),
		// log when the server enters lame duck mode
		nats.LameDuckModeHandler(func(nc *nats.Conn) {
			log.Info("Nats default: entering lame duck mode to avoid reconnect storm")
		}),
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	jsCtx, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create nats jetstream context: %w", err)
	}
	return &Client{nc: nc, jsCtx: jsCtx, log: log}, nil
}

// WithAuth returns a nats option for username/password authentication.
func WithAuth(user, password string) nats.Option {
	return nats.UserInfo(user, password)
}

// WithInsecureTLS returns a nats option enabling TLS without certificate verification.
func WithInsecureTLS() nats.Option {
	return nats.Secure(&tls.Config{InsecureSkipVerify: true})
}

// JetStreamContext returns the JetStream context of the underlying connection.
func (c *Client) JetStreamContext() nats.JetStreamContext {
	return c.jsCtx
}

// Subscribe returns a synchronous JetStream subscription for the given
// subject and stream, suitable for NextMsg.
func (c *Client) Subscribe(subject, stream string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	c.Lock()
	defer c.Unlock()
	if c.jsCtx == nil {
		return nil, fmt.Errorf("nats jetstream context is not available")
	}
	return c.jsCtx.SubscribeSync(subject, append(opts, nats.BindStream(stream))...)
}

// ChanSubscribe subscribes the given subject delivering messages to ch.
func (c *Client) ChanSubscribe(subject, stream string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	c.Lock()
	defer c.Unlock()
	if c.jsCtx == nil {
		return nil, fmt.Errorf("nats jetstream context is not available")
	}
	return c.jsCtx.ChanSubscribe(subject, ch, append(opts, nats.BindStream(stream))...)
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.Lock()
	defer c.Unlock()
	if c.nc != nil && !c.nc.IsClosed() {
		c.nc.Close()
	}
}
