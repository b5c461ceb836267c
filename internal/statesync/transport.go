package statesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	gorilla "github.com/gorilla/websocket"
)

// readLimit bounds a single frame. Battery telemetry carries its charge
// history, which is larger than the coder/websocket default of 32 KiB.
const readLimit = 1 << 20

// Conn is one established socket connection. The store never writes to it.
type Conn interface {
	// Read blocks until the next frame arrives or the connection ends.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens connections to the state socket.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Driver names accepted by NewDialer.
const (
	DriverCoder   = "coder"
	DriverGorilla = "gorilla"
)

// NewDialer returns the dialer for the named websocket driver.
func NewDialer(driver string) (Dialer, error) {
	switch driver {
	case "", DriverCoder:
		return &CoderDialer{}, nil
	case DriverGorilla:
		return &GorillaDialer{}, nil
	default:
		return nil, fmt.Errorf("unknown websocket driver %q", driver)
	}
}

// CoderDialer dials with github.com/coder/websocket.
type CoderDialer struct {
	Options *websocket.DialOptions
}

func (d *CoderDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &coderConn{conn: conn}, nil
}

type coderConn struct {
	conn *websocket.Conn
}

func (c *coderConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *coderConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client unsubscribed")
}

// GorillaDialer dials with github.com/gorilla/websocket. A nil Dialer uses
// gorilla's DefaultDialer.
type GorillaDialer struct {
	Dialer *gorilla.Dialer
}

func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = gorilla.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn      *gorilla.Conn
	closeOnce sync.Once
	closeErr  error
}

// Read ignores ctx; gorilla connections are unblocked by Close.
func (c *gorillaConn) Read(_ context.Context) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close may be called by both the reader and a disconnect; gorilla allows
// only one writer, so the close frame is sent once.
func (c *gorillaConn) Close() error {
	c.closeOnce.Do(func() {
		msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "client unsubscribed")
		_ = c.conn.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// isNormalClosure reports whether err is an orderly end of the connection
// rather than a transport failure.
func isNormalClosure(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway)
}
