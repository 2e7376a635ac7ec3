package gateway

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
	"github.com/oxyl/shardgate/pkg/etf"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock only moves when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// active counts timers that have neither fired nor been stopped.
func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeFrame struct {
	data []byte
	err  error
}

// fakeConn is the server side of one connection: frames pushed to in are
// read by the shard, writes made by the shard arrive on writes.
type fakeConn struct {
	url       string
	in        chan fakeFrame
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	buf bytes.Buffer
	zw  *zlib.Writer
}

func newFakeConn(url string) *fakeConn {
	c := &fakeConn{
		url:    url,
		in:     make(chan fakeFrame, 64),
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	c.zw = zlib.NewWriter(&c.buf)
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.in:
		if f.err != nil {
			return 0, nil, f.err
		}
		return websocket.BinaryMessage, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed network connection")
	default:
	}
	c.writes <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send compresses one packet onto the connection's zlib stream.
func (c *fakeConn) send(t *testing.T, p map[string]any) {
	t.Helper()
	data, err := etf.Encode(p)
	require.NoError(t, err)
	_, err = c.zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, c.zw.Flush())
	c.in <- fakeFrame{data: append([]byte(nil), c.buf.Bytes()...)}
	c.buf.Reset()
}

func (c *fakeConn) sendRaw(data []byte) {
	c.in <- fakeFrame{data: data}
}

func (c *fakeConn) closeWith(code int) {
	c.in <- fakeFrame{err: &websocket.CloseError{Code: code}}
}

func (c *fakeConn) dispatch(t *testing.T, name string, seq int64, d any) {
	t.Helper()
	c.send(t, map[string]any{"op": int64(OpDispatch), "t": name, "s": seq, "d": d})
}

// next returns the next packet the shard wrote.
func (c *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.writes:
		v, err := etf.Decode(data)
		require.NoError(t, err)
		return v.(map[string]any)
	case <-time.After(waitTimeout):
		t.Fatal("no packet written")
		return nil
	}
}

func (c *fakeConn) expectOp(t *testing.T, op Opcode) map[string]any {
	t.Helper()
	p := c.next(t)
	require.Equal(t, int64(op), p["op"], "packet %v", p)
	return p
}

func (c *fakeConn) expectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-c.writes:
		v, _ := etf.Decode(data)
		t.Fatalf("unexpected packet %v", v)
	case <-time.After(d):
	}
}

type fakeDialer struct {
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Transport, error) {
	c := newFakeConn(url)
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("no dial")
		return nil
	}
}

func (d *fakeDialer) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case c := <-d.conns:
		t.Fatalf("unexpected dial to %s", c.url)
	case <-time.After(wait):
	}
}

// failingDialer fails the first dials before handing out connections.
type failingDialer struct {
	*fakeDialer
	mu       sync.Mutex
	failures int
}

func (d *failingDialer) Dial(ctx context.Context, url string) (Transport, error) {
	d.mu.Lock()
	fail := d.failures > 0
	d.failures--
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return d.fakeDialer.Dial(ctx, url)
}

type fakeMessageSink struct {
	mu       sync.Mutex
	messages []*Message
}

func (f *fakeMessageSink) PushMessage(shard int, m *Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *fakeMessageSink) all() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Message(nil), f.messages...)
}

type fakeEntitySink struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEntitySink) PushEvent(shard int, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeEntitySink) kinds() []EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]EventKind, 0, len(f.events))
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type testShard struct {
	*Shard
	clock  *fakeClock
	dialer *fakeDialer
	cancel context.CancelFunc
	errC   chan error
}

func newTestShard(t *testing.T, opt ...Option) *testShard {
	t.Helper()
	clock := newFakeClock()
	dialer := newFakeDialer()
	opts := append([]Option{
		WithToken("secret"),
		WithGatewayURL("wss://gateway.example"),
		WithClock(clock),
		WithDialer(dialer),
	}, opt...)
	s, err := New(0, 1, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testShard{Shard: s, clock: clock, dialer: dialer, cancel: cancel, errC: make(chan error, 1)}
	go func() {
		ts.errC <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.errC:
		case <-time.After(waitTimeout):
		}
	})
	return ts
}

func (ts *testShard) waitStatus(t *testing.T, st Status) {
	t.Helper()
	require.Eventually(t, func() bool { return ts.Session().Status == st }, waitTimeout, 5*time.Millisecond)
}

func hello(interval int64) map[string]any {
	return map[string]any{"op": int64(OpHello), "d": map[string]any{"heartbeat_interval": interval}}
}

func readyPayload(sessionID string) map[string]any {
	return map[string]any{
		"session_id":         sessionID,
		"resume_gateway_url": "wss://resume.example",
		"user":               map[string]any{"id": "1001", "username": "oxyl", "bot": true},
		"guilds":             []any{map[string]any{"id": "42", "unavailable": true}},
	}
}

// handshake takes a freshly dialed connection to ready with session "abc"
// at sequence 1.
func (ts *testShard) handshake(t *testing.T, c *fakeConn) {
	t.Helper()
	c.send(t, hello(41250))
	c.expectOp(t, OpIdentify)
	c.expectOp(t, OpHeartbeat)
	c.dispatch(t, "READY", 1, readyPayload("abc"))
	ts.waitStatus(t, StatusReady)
}
