// Package client speaks the gridpath wire protocol to a server. It is used by
// the load generator and by the server tests.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/wire"
)

// ErrServer wraps an ERROR response.
var ErrServer = errors.New("server error")

// Client is one connection. Calls are serialised; the protocol answers
// requests in order.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
}

// SetTimeout bounds each round trip. Zero disables the deadline.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends req and returns the decoded response, whatever its status.
func (c *Client) Do(req *wire.Request) (*wire.Response, error) {
	msg, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := wire.WriteFrame(c.w, msg); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	frame, err := wire.ReadFrame(c.r, 0)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return wire.UnmarshalResponse(frame)
}

func (c *Client) call(req *wire.Request) (*wire.Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusOK {
		return resp, fmt.Errorf("%w: %s", ErrServer, resp.ErrMsg)
	}
	return resp, nil
}

// Walk sends a trace.
func (c *Client) Walk(points []grid.Point, lengths []uint32) error {
	w := &wire.Walk{Locations: make([]wire.Location, len(points)), Lengths: lengths}
	for i, p := range points {
		w.Locations[i] = location(p)
	}
	_, err := c.call(&wire.Request{Walk: w})
	return err
}

// OneToOne returns the shortest path length between two points.
func (c *Client) OneToOne(origin, destination grid.Point) (uint64, error) {
	resp, err := c.call(&wire.Request{OneToOne: &wire.OneToOne{
		Origin:      location(origin),
		Destination: location(destination),
	}})
	if err != nil {
		return 0, err
	}
	return resp.ShortestPathLength, nil
}

// OneToAll returns the total shortest path length from origin. Servers
// configured to close after one-to-all hang up once it is answered.
func (c *Client) OneToAll(origin grid.Point) (uint64, error) {
	resp, err := c.call(&wire.Request{OneToAll: &wire.OneToAll{Origin: location(origin)}})
	if err != nil {
		return 0, err
	}
	return resp.TotalLength, nil
}

// Reset clears the server's grid.
func (c *Client) Reset() error {
	_, err := c.call(&wire.Request{Reset: &wire.Reset{}})
	return err
}

func location(p grid.Point) wire.Location {
	return wire.Location{X: int32(p.X), Y: int32(p.Y)}
}
