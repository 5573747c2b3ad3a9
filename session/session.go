// Package session keeps one logical, always-reconnecting websocket connection to the planning
// backend. Connection failures are never fatal: the manager retries on a fixed period until it
// is closed.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rob102-staff/nav-app/clock"
	"github.com/rob102-staff/nav-app/websock"
)

// Logf is the package diagnostic logger. Tests may replace it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// Status is what the manager reports to its observer: every state but an open connection
// collapses to Closed.
type Status int

const (
	Closed Status = iota
	Open
)

func (s Status) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Phase is the manager's internal retry state.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	// Backoff means a retry ticker is pending and no dial is in flight.
	Backoff
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	}
	return "unknown"
}

// Conn is one established connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Conn, error)
}

// URI builds the backend address.
func URI(host string, port int, endpoint string) string {
	return fmt.Sprintf("ws://%s/%s", net.JoinHostPort(host, strconv.Itoa(port)), endpoint)
}

// DefaultReconnectPeriod is the fixed retry period when none is configured.
const DefaultReconnectPeriod = 5 * time.Second

const dialTimeout = 3 * time.Second

// WebsocketDialer dials with gorilla/websocket; writes on the returned Conn are serialized.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

func (d WebsocketDialer) Dial(ctx context.Context, uri string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	ws, resp, err := dialer.DialContext(ctx, uri, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return websock.New(ws), nil
}

// Options configure a Manager. Zero values select the real clock, the gorilla dialer and
// DefaultReconnectPeriod.
type Options struct {
	URI             string
	ReconnectPeriod time.Duration
	Dialer          Dialer
	Clock           clock.Clock
	// OnStatus observes every status notification. Called from the manager's goroutines.
	OnStatus func(Status)
	// OnMessage receives inbound messages in arrival order from a single goroutine.
	OnMessage func([]byte)
}

// Manager owns the backend connection and its retry ticker.
type Manager struct {
	uri       string
	period    time.Duration
	dialer    Dialer
	clk       clock.Clock
	onStatus  func(Status)
	onMessage func([]byte)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	phase      Phase
	conn       Conn
	attempting bool
	retry      clock.Ticker
	retryStop  chan struct{}
	closed     bool
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		uri:       opts.URI,
		period:    opts.ReconnectPeriod,
		dialer:    opts.Dialer,
		clk:       opts.Clock,
		onStatus:  opts.OnStatus,
		onMessage: opts.OnMessage,
	}
	if m.period <= 0 {
		m.period = DefaultReconnectPeriod
	}
	if m.dialer == nil {
		m.dialer = WebsocketDialer{}
	}
	if m.clk == nil {
		m.clk = clock.Real{}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// URI is the address the manager dials.
func (m *Manager) URI() string {
	return m.uri
}

// Status is Open while a connection is established, otherwise Closed.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status()
}

func (m *Manager) status() Status {
	if m.phase == Connected {
		return Open
	}
	return Closed
}

// Phase reports the retry state.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Connect dials once unless a connection is already open (reports true) or another dial is
// in flight (reports false). A failed dial notifies Closed.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return false
	case m.phase == Connected:
		m.mu.Unlock()
		return true
	case m.phase == Connecting:
		m.mu.Unlock()
		return false
	}
	m.phase = Connecting
	m.mu.Unlock()

	conn, err := m.dialer.Dial(m.ctx, m.uri)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return false
	}
	if err != nil {
		m.phase = Disconnected
		if m.retry != nil {
			m.phase = Backoff
		}
		m.mu.Unlock()
		Logf("backend %s: %v", m.uri, err)
		m.notify(Closed)
		return false
	}

	m.conn = conn
	m.phase = Connected
	m.attempting = false
	m.stopRetry()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.readPump(conn)
	Logf("backend %s: connected", m.uri)
	m.notify(Open)
	return true
}

// AttemptConnection is the entry point for (re)connecting: unless an attempt is already under
// way it connects once and, if that fails, starts the fixed-period retry ticker which keeps
// connecting until open. It always ends by notifying the current status.
func (m *Manager) AttemptConnection() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	starting := !m.attempting
	m.attempting = true
	m.mu.Unlock()

	if starting && !m.Connect() {
		m.startRetry()
	}
	m.notify(m.Status())
}

func (m *Manager) startRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.retry != nil || m.phase == Connected || !m.attempting {
		return
	}
	m.retry = m.clk.NewTicker(m.period)
	m.retryStop = make(chan struct{})
	if m.phase == Disconnected {
		m.phase = Backoff
	}
	m.wg.Add(1)
	go m.retryLoop(m.retry.C(), m.retryStop)
}

// stopRetry cancels the retry ticker. Callers hold mu.
func (m *Manager) stopRetry() {
	if m.retry == nil {
		return
	}
	m.retry.Stop()
	close(m.retryStop)
	m.retry = nil
	m.retryStop = nil
}

func (m *Manager) retryLoop(ticks <-chan time.Time, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticks:
			// A tick may race the stop; Connect is a no-op once open.
			select {
			case <-stop:
				return
			default:
			}
			m.Connect()
		}
	}
}

// readPump delivers inbound messages until the connection fails, then reconnects.
func (m *Manager) readPump(conn Conn) {
	defer m.wg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		if m.onMessage != nil {
			m.onMessage(data)
		}
	}
}

func (m *Manager) handleClose(conn Conn, err error) {
	conn.Close()

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.phase = Disconnected
	}
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if !websock.IsClosure(err) {
		Logf("backend %s: connection lost: %v", m.uri, err)
	}
	m.notify(Closed)
	m.AttemptConnection()
}

// Send encodes msg as JSON and writes it. Messages are silently dropped unless the
// connection is open; the result reports whether the write happened.
func (m *Manager) Send(msg interface{}) bool {
	m.mu.Lock()
	conn := m.conn
	open := m.phase == Connected && conn != nil
	m.mu.Unlock()
	if !open {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		Logf("backend %s: encode %T: %v", m.uri, msg, err)
		return false
	}
	if err = conn.WriteMessage(data); err != nil {
		Logf("backend %s: send: %v", m.uri, err)
		return false
	}
	return true
}

// Close tears the manager down: the retry ticker and read pump stop and no reconnect follows.
// It blocks until the manager's goroutines exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopRetry()
	conn := m.conn
	m.conn = nil
	m.phase = Disconnected
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		conn.Close()
	}
	m.wg.Wait()
}

// Run connects and keeps the session alive until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	m.AttemptConnection()
	<-ctx.Done()
	m.Close()
	return nil
}

func (m *Manager) notify(s Status) {
	if m.onStatus != nil {
		m.onStatus(s)
	}
}
