package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in       chan string
	gone     chan struct{}
	mu       sync.Mutex
	written  []Message
	closed   bool
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan string, 4), gone: make(chan struct{})}
}

// ReadJSON blocks until a message arrives or the connection is closed.
func (c *fakeConn) ReadJSON(v any) error {
	select {
	case raw, ok := <-c.in:
		if !ok {
			return io.EOF
		}
		return json.Unmarshal([]byte(raw), v)
	case <-c.gone:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v.(Message))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.gone)
	}
	return nil
}

func (c *fakeConn) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func TestPublishReachesAllClients(t *testing.T) {
	h, _ := startHub(t)
	a, b := newFakeConn(), newFakeConn()
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Clients())

	h.Publish("note_deleted", map[string]string{"id": "n1"})

	for _, c := range []*fakeConn{a, b} {
		c := c
		assert.Eventually(t, func() bool { return len(c.messages()) == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, "note_deleted", c.messages()[0].Type)
	}
}

func TestFailedWriteDropsClient(t *testing.T) {
	h, _ := startHub(t)
	bad := newFakeConn()
	bad.writeErr = errors.New("broken pipe")
	h.Register(bad)

	h.Publish("folder_created", nil)

	assert.Eventually(t, bad.isClosed, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestHandleConnectionUnregistersOnDisconnect(t *testing.T) {
	h, _ := startHub(t)
	c := newFakeConn()

	done := make(chan struct{})
	go func() {
		h.HandleConnection(c)
		close(done)
	}()

	c.in <- `{"type":"subscribe"}`
	assert.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, time.Millisecond)

	close(c.in)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleConnection did not return")
	}
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, time.Millisecond)
	assert.Eventually(t, c.isClosed, time.Second, time.Millisecond)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	h, cancel := startHub(t)
	c := newFakeConn()

	done := make(chan struct{})
	go func() {
		h.HandleConnection(c)
		close(done)
	}()
	assert.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.Eventually(t, c.isClosed, time.Second, time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleConnection still running after shutdown")
	}
}

func TestRegisterAfterShutdownClosesConn(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	c := newFakeConn()
	finished := make(chan struct{})
	go func() {
		h.HandleConnection(c)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("HandleConnection blocked on a stopped hub")
	}
	assert.True(t, c.isClosed())
	assert.Equal(t, 0, h.Clients())
}

func TestMessageJSON(t *testing.T) {
	b, err := json.Marshal(Message{Type: "selection_changed", Data: map[string]any{"note_id": "x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"selection_changed","data":{"note_id":"x"}}`, string(b))
}
