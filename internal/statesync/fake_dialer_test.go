package statesync_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/nfrund/vrpanel/internal/statesync"
)

// fakeDialer hands out in-memory connections and records every dial.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (statesync.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		d.conns = append(d.conns, nil)
		return nil, d.fail
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// latest returns the most recent successful connection.
func (d *fakeDialer) latest() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.conns) - 1; i >= 0; i-- {
		if d.conns[i] != nil {
			return d.conns[i]
		}
	}
	return nil
}

type fakeConn struct {
	frames    chan string
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	err      error
	closedBy string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan string, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return []byte(f), nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.err
	}
}

// Close is the client side closing the connection.
func (c *fakeConn) Close() error {
	c.end("client", io.EOF)
	return nil
}

// push delivers a frame from the server.
func (c *fakeConn) push(frame string) {
	c.frames <- frame
}

// drop ends the connection from the server side with err.
func (c *fakeConn) drop(err error) {
	c.end("server", err)
}

func (c *fakeConn) end(by string, err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.closedBy = by
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) closer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedBy
}

var errReset = errors.New("connection reset by peer")
