package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscribeBuffer is the per-subscription channel depth. Handlers drain
// quickly, but a stalled consumer must never block the NATS client.
const subscribeBuffer = 256

// Conn is a NATS connection serving both publish and subscribe roles.
type Conn struct {
	nc *nats.Conn
}

// Connect dials NATS with automatic reconnection. Extra nats.Option
// values (e.g. disconnect/reconnect handlers) can be appended.
func Connect(url, name string, opts ...nats.Option) (*Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Conn{nc: nc}, nil
}

// Publish JSON-encodes msg and publishes it to subject.
func (c *Conn) Publish(ctx context.Context, subject string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message for %s: %w", subject, err)
	}
	return c.nc.Publish(subject, data)
}

// Request JSON-encodes msg, publishes it to subject, and waits for the
// first reply.
func (c *Conn) Request(ctx context.Context, subject string, msg any) (Msg, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Msg{}, fmt.Errorf("marshaling request for %s: %w", subject, err)
	}
	resp, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return Msg{}, fmt.Errorf("requesting %s: %w", subject, err)
	}
	return Msg{Subject: resp.Subject, Reply: resp.Reply, Data: resp.Data}, nil
}

// Subscribe returns a channel that receives messages for the given
// subject (supports NATS wildcards like "doors.cmd.>"). Call the
// returned cancel function to unsubscribe and close the channel.
func (c *Conn) Subscribe(subject string) (<-chan Msg, func(), error) {
	ch := make(chan Msg, subscribeBuffer)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Msg{Subject: msg.Subject, Reply: msg.Reply, Data: msg.Data}:
		default:
			// Dropping is preferable to blocking the NATS client; the
			// consumer is far behind if this ever fires.
			slog.Warn("bus: dropping message, subscriber buffer full", "subject", msg.Subject)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := c.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			// Drain remaining messages so senders don't block, then close.
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

// Flush forces buffered publishes out to the server.
func (c *Conn) Flush() error {
	return c.nc.Flush()
}

// Close shuts the connection down.
func (c *Conn) Close() error {
	c.nc.Close()
	return nil
}
