package fastview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rob102-staff/nav-app/websock"
	"golang.org/x/sync/errgroup"
)

const (
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	pingResolution = time.Millisecond * 500
	// By definition, it encompasses the number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 8
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded is returned when the browser stops answering pings.
var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// ErrDropped is returned when the hub dropped a subscriber that could not keep up.
var ErrDropped error = errors.New("client dropped, frames not consumed fast enough")

// Joiner hands out frame subscriptions that begin with a full frame.
type Joiner interface {
	Join(ctx context.Context) (uuid.UUID, <-chan Frame, error)
	Leave(id uuid.UUID)
}

// MessageHandler receives every browser message except resync requests.
type MessageHandler func(ctx context.Context, data []byte) error

// A client synchronizes one browser page with the scene: it publishes frames to the page and
// passes the page's messages back.
type client struct {
	ws        *websock.Conn
	joiner    Joiner
	onMessage MessageHandler
	rootCtx   context.Context
	resyncs   chan struct{}
}

// NewClient upgrades the request to a websocket.
func NewClient(
	w http.ResponseWriter,
	r *http.Request,
	joiner Joiner,
	onMessage MessageHandler,
) (*client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	return &client{
		ws:        websock.New(ws),
		joiner:    joiner,
		onMessage: onMessage,
		rootCtx:   r.Context(),
		resyncs:   make(chan struct{}, 1),
	}, nil
}

// Sync runs the read, ping-pong and publish pumps until the page goes away or one fails.
// It returns nil upon normal client disconnect.
func (cli *client) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	group.Go(func() error {
		// Closing the socket is what unblocks a pending read.
		<-groupCtx.Done()
		_ = cli.ws.Close()
		return nil
	})
	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	if err := group.Wait(); err != nil && !websock.IsClosure(err) {
		return err
	}
	return nil
}

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Raw().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ws.Ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

type messageType struct {
	Type string `json:"type"`
}

// readMessages passes page messages to the handler. Errors returned by websocket Read methods
// are permanent, hence any error must trigger full teardown.
func (cli *client) readMessages(ctx context.Context) error {
	for {
		var data []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, data, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		var msg messageType
		if json.Unmarshal(data, &msg) == nil && msg.Type == "resync" {
			select {
			case cli.resyncs <- struct{}{}:
			default:
			}
			continue
		}
		if cli.onMessage != nil {
			if err = cli.onMessage(ctx, data); err != nil {
				return err
			}
		}
	}
}

// publish writes frames to the page. Frames that queue up while a write is in flight are
// merged into one write.
func (cli *client) publish(ctx context.Context) error {
	id, frames, err := cli.joiner.Join(ctx)
	if err != nil {
		return err
	}
	defer func() { cli.joiner.Leave(id) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cli.resyncs:
			cli.joiner.Leave(id)
			if id, frames, err = cli.joiner.Join(ctx); err != nil {
				return err
			}
		case frame, ok := <-frames:
			if !ok {
				return ErrDropped
			}
			frame = drain(frame, frames)
			if err = cli.ws.WriteJSON(ctx, frame); err != nil {
				return err
			}
		}
	}
}

// drain merges every frame already waiting on frames into first.
func drain(first Frame, frames <-chan Frame) Frame {
	for {
		select {
		case next, ok := <-frames:
			if !ok {
				return first
			}
			first = first.Merge(next)
		default:
			return first
		}
	}
}
