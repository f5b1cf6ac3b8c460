package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"chatterbox/internal/registry"
)

var testRooms = []string{"general", "tech", "fun", "random"}

// envelope is the union of every outbound field, for assertions.
type envelope struct {
	Type      string   `json:"type"`
	Username  string   `json:"username,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Users     []string `json:"users,omitempty"`
	Online    *int     `json:"online,omitempty"`
	Code      string   `json:"code,omitempty"`
}

func online(n int) *int { return &n }

type fakeConn struct {
	frames    chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read() ([]byte, error) {
	select {
	case data := <-f.frames:
		return data, nil
	case err := <-f.fail:
		return nil, err
	case <-f.closed:
		return nil, ErrClientClosed
	}
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return ErrClientClosed
	default:
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeConn) push(t *testing.T, v any) {
	t.Helper()
	data, ok := v.(string)
	if !ok {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		data = string(raw)
	}
	f.frames <- []byte(data)
}

func (f *fakeConn) disconnect(code websocket.StatusCode) {
	f.fail <- websocket.CloseError{Code: code}
}

func (f *fakeConn) received(t *testing.T) []envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]envelope, 0, len(f.sent))
	for _, data := range f.sent {
		var e envelope
		require.NoError(t, json.Unmarshal(data, &e))
		out = append(out, e)
	}
	return out
}

// waitFor blocks until the connection has received want, in order, as a
// contiguous run anywhere in its history.
func (f *fakeConn) waitFor(t *testing.T, want ...envelope) {
	t.Helper()
	require.Eventually(t, func() bool {
		return containsRun(f.received(t), want)
	}, time.Second, 5*time.Millisecond, "expected %+v", want)
}

func containsRun(got, want []envelope) bool {
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j := range want {
			if !equalEnvelope(got[i+j], want[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func equalEnvelope(a, b envelope) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingReporter struct {
	notified atomic.Int32
}

func (r *recordingReporter) Notify() {
	r.notified.Add(1)
}

type testEnv struct {
	manager  *Manager
	registry *registry.Registry
	clock    *fakeClock
	reporter *recordingReporter
	wg       sync.WaitGroup
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)}
	reg := registry.New(testRooms)
	reporter := &recordingReporter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := DefaultOptions()
	opts.Clock = clock.Now

	env := &testEnv{
		manager:  NewManager(context.Background(), logger, reg, reporter, opts),
		registry: reg,
		clock:    clock,
		reporter: reporter,
	}
	t.Cleanup(env.wg.Wait)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = env.manager.Shutdown(ctx)
	})
	return env
}

// connect starts a session over a fresh fake connection.
func (e *testEnv) connect() *fakeConn {
	conn := newFakeConn()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.manager.serve(conn)
	}()
	return conn
}

// join connects and waits until the join has been admitted.
func (e *testEnv) join(t *testing.T, username, room string) *fakeConn {
	t.Helper()
	conn := e.connect()
	conn.push(t, map[string]string{"username": username, "room": room})
	conn.waitFor(t, envelope{Type: "system", Message: username + " joined the room", Timestamp: "09:07"})
	return conn
}
