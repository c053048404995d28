// Package client provides a producer-side client for the scopedb sample
// feed: connect to a daemon and stream timestamped samples into named
// channels. Used by feeders and adapters; queries stay in-process on the
// server side.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
	"github.com/xtxerr/scopedb/internal/wire"
)

// DefaultDialTimeout bounds connection establishment.
const DefaultDialTimeout = 10 * time.Second

// Client streams samples to a scopedb daemon. Safe for concurrent use,
// but samples for one channel must be sent from a single goroutine to
// preserve ordering.
type Client struct {
	addr string

	mu     sync.Mutex
	conn   net.Conn
	wc     *wire.Conn
	nextID uint64
	closed bool
}

// New creates a client for the given address. No connection is made
// until Connect.
func New(addr string) *Client {
	return &Client{addr: addr}
}

// Connect dials the daemon.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClosed
	}
	if c.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", errors.ErrConnectionFailed, c.addr, err)
	}

	c.conn = conn
	c.wc = wire.NewConn(conn)
	return nil
}

// Send streams a single sample into the named channel.
func (c *Client) Send(channel string, timestamp, value float64) error {
	return c.SendBatch(channel, []types.Sample{{Timestamp: timestamp, Value: value}})
}

// SendBatch streams an ordered batch of samples into the named channel.
// Delivery is fire-and-forget; the daemon reports rejected batches
// asynchronously via error replies, which Drain surfaces.
func (c *Client) SendBatch(channel string, samples []types.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClosed
	}
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", errors.ErrConnectionFailed)
	}

	c.nextID++
	env := wire.NewAppend(c.nextID, channel, samples)
	if err := c.wc.Write(env); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Drain reads one pending error reply, if any, within the given timeout.
// Returns nil when the deadline passes without a reply.
func (c *Client) Drain(timeout time.Duration) error {
	c.mu.Lock()
	conn, wc := c.conn, c.wc
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	env, err := wc.Read()
	if err != nil {
		if ne, ok := underlyingNetError(err); ok && ne.Timeout() {
			return nil
		}
		return err
	}

	if env.Error != nil {
		return errors.CodeToError(env.Error.Code, env.Error.Message)
	}
	return nil
}

func underlyingNetError(err error) (net.Error, bool) {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// Close closes the connection. The client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.wc = nil
		return err
	}
	return nil
}
