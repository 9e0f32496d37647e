package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errDialRefused = errors.New("connection refused")

// fakeConn is an in-memory connection.
type fakeConn struct {
	inbox   chan []byte
	dropped chan struct{}
	closed  chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	sent    []Frame
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:   make(chan []byte, 16),
		dropped: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.dropped:
		return nil, errors.New("connection reset by peer")
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

func (c *fakeConn) push(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.inbox <- frame
}

func (c *fakeConn) frames(event string) []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Frame
	for _, f := range c.sent {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// fakeTransport hands out fakeConns, or fails while refuse is set.
type fakeTransport struct {
	mu      sync.Mutex
	refuse  bool
	dials   int
	conns   []*fakeConn
	urls    []string
	headers []http.Header
}

func (tr *fakeTransport) Dial(_ context.Context, url string, header http.Header) (Conn, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.dials++
	tr.urls = append(tr.urls, url)
	tr.headers = append(tr.headers, header.Clone())
	if tr.refuse {
		return nil, errDialRefused
	}
	conn := newFakeConn()
	tr.conns = append(tr.conns, conn)
	return conn, nil
}

func (tr *fakeTransport) setRefuse(refuse bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.refuse = refuse
}

func (tr *fakeTransport) dialCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.dials
}

func (tr *fakeTransport) last() *fakeConn {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.conns) == 0 {
		return nil
	}
	return tr.conns[len(tr.conns)-1]
}

// fakeBootstrapper returns a fixed device id.
type fakeBootstrapper struct {
	mu    sync.Mutex
	id    string
	err   error
	calls int
}

func (b *fakeBootstrapper) FetchDeviceID(context.Context, string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.id, b.err
}

type harness struct {
	ch        *Channel
	transport *fakeTransport
	store     *store.MemoryStore
	clock     *clock.FakeClock
}

func newHarness(t *testing.T, cfg Config, boot Bootstrapper) *harness {
	t.Helper()
	if cfg.URL == "" {
		cfg.URL = "wss://dashboard.example.com/ws"
	}
	st := store.NewMemoryStore()
	ctx := context.Background()
	if err := st.Set(ctx, store.KeyAuthToken, []byte("opaque-token")); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if boot == nil {
		if err := st.Set(ctx, store.KeyDeviceID, []byte("dev-1")); err != nil {
			t.Fatalf("seed device id: %v", err)
		}
	}

	h := &harness{
		transport: &fakeTransport{},
		store:     st,
		clock:     clock.Fake(testEpoch),
	}
	h.ch = New(cfg, Deps{
		Transport:    h.transport,
		Store:        st,
		Bootstrapper: boot,
		Clock:        h.clock,
	})
	t.Cleanup(func() { h.ch.Close() })
	return h
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
