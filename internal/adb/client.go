package adb

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Client is a session handle over an authenticated transport.
type Client struct {
	mu     sync.Mutex
	t      Transport
	closed bool
}

// NewClient wraps an authenticated transport.
func NewClient(t Transport) *Client {
	return &Client{t: t}
}

// Serial returns the serial of the transport.
func (c *Client) Serial() string {
	return c.t.Serial()
}

// GetProp reads one system property, e.g. "ro.product.model".
func (c *Client) GetProp(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	out, err := c.t.Shell(ctx, "getprop", name)
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", name, err)
	}
	return strings.TrimRight(out, "\r\n"), nil
}

// Close closes the underlying transport. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.t.Close(); err != nil {
		return fmt.Errorf("close transport %s: %w", c.t.Serial(), err)
	}
	return nil
}
