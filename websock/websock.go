// Package websock serializes access to a gorilla websocket connection, which supports at
// most one concurrent reader and one concurrent writer.
package websock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	// Time allowed to write a message to the peer.
	WriteWait = 1 * time.Second

	semWait = time.Second
)

// Conn wraps a websocket so that every read and every write holds a 1-slot semaphore.
type Conn struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func New(ws *websocket.Conn) *Conn {
	return &Conn{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Raw returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *Conn) Raw() *websocket.Conn {
	return sock.ws
}

// Read serializes read operations on the websocket. A cancelled ctx returns nil without reading.
func (sock *Conn) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	if ctx.Err() != nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(semWait):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket. A cancelled ctx returns nil without writing.
func (sock *Conn) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	if ctx.Err() != nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(semWait):
		return ErrSockCongestion
	}
}

// ReadMessage blocks for the next data message.
func (sock *Conn) ReadMessage() (data []byte, err error) {
	err = sock.Read(context.Background(), func(ws *websocket.Conn) (readErr error) {
		_, data, readErr = ws.ReadMessage()
		return
	})
	return
}

// WriteMessage sends data as one text message within WriteWait.
func (sock *Conn) WriteMessage(data []byte) error {
	return sock.Write(context.Background(), func(ws *websocket.Conn) error {
		return writeWithDeadline(ws, func() error {
			return ws.WriteMessage(websocket.TextMessage, data)
		})
	})
}

// WriteJSON sends v as one JSON text message within WriteWait.
func (sock *Conn) WriteJSON(ctx context.Context, v interface{}) error {
	return sock.Write(ctx, func(ws *websocket.Conn) error {
		return writeWithDeadline(ws, func() error {
			return ws.WriteJSON(v)
		})
	})
}

// Ping sends a ping control frame.
func (sock *Conn) Ping(ctx context.Context) error {
	return sock.Write(ctx, func(ws *websocket.Conn) (err error) {
		if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait)); err != nil {
			if IsUnexpected(err) {
				err = fmt.Errorf("ping failed: %T %v", err, err)
			}
		}
		return
	})
}

func writeWithDeadline(ws *websocket.Conn, write func() error) (err error) {
	if err = ws.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return fmt.Errorf("failed to set deadline: %T %w", err, err)
	}
	if err = write(); err != nil && IsUnexpected(err) {
		err = fmt.Errorf("write failed: %T %v", err, err)
	}
	return
}

// Close sends a best effort close frame and closes the connection. It does not wait on
// in-flight readers; closing the connection is what unblocks them.
func (sock *Conn) Close() error {
	select {
	case sock.writeSem <- struct{}{}:
		_ = sock.ws.SetWriteDeadline(time.Now().Add(WriteWait))
		_ = sock.ws.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-sock.writeSem
	case <-time.After(semWait):
	}
	return sock.ws.Close()
}

// IsUnexpected reports whether err is a close error other than a normal or going-away closure.
func IsUnexpected(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// IsClosure reports whether err is a normal or going-away closure.
func IsClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
