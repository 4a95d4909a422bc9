package http

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniZap4/lumi-notes/autosave"
	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/richtext"
	"github.com/ViniZap4/lumi-notes/store/memory"
	"github.com/ViniZap4/lumi-notes/workspace"
)

type pipeConn struct {
	in chan string

	mu  sync.Mutex
	out []map[string]any
}

func newPipeConn() *pipeConn { return &pipeConn{in: make(chan string, 8)} }

func (c *pipeConn) ReadJSON(v any) error {
	raw, ok := <-c.in
	if !ok {
		return io.EOF
	}
	return json.Unmarshal([]byte(raw), v)
}

func (c *pipeConn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.mu.Lock()
	c.out = append(c.out, m)
	c.mu.Unlock()
	return nil
}

func (c *pipeConn) Close() error { return nil }

func (c *pipeConn) sent() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.out...)
}

func (c *pipeConn) hasMessage(match func(map[string]any) bool) bool {
	for _, m := range c.sent() {
		if match(m) {
			return true
		}
	}
	return false
}

func sessionServer(t *testing.T) (*Server, *memory.Store, *workspace.Workspace) {
	t.Helper()
	s := memory.New()
	w := workspace.New(s, zerolog.Nop(), nil)
	srv := NewServer(Deps{
		Store:     s,
		Workspace: w,
		Log:       zerolog.Nop(),
		Engine:    []autosave.Option{autosave.WithDelays(20*time.Millisecond, 30*time.Millisecond, 20*time.Millisecond)},
	})
	return srv, s, w
}

func TestSessionSavesEdits(t *testing.T) {
	srv, s, w := sessionServer(t)
	ctx := context.Background()
	require.NoError(t, w.Load(ctx))
	n, err := w.CreateNote(ctx)
	require.NoError(t, err)

	conn := newPipeConn()
	done := make(chan struct{})
	go func() {
		srv.RunSession(conn, n.ID)
		close(done)
	}()

	conn.in <- `{"type":"set_title","title":"Grocery List"}`
	conn.in <- `{"type":"set_document","document":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"milk"}]}]}}`

	assert.Eventually(t, func() bool {
		stored, err := s.GetNote(ctx, n.ID)
		return err == nil && stored.Title == "Grocery List" && richtext.ExcerptOf(stored.Content) == "milk"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		sum, _ := w.Summary(n.ID)
		return sum.Title == "Grocery List" && sum.Excerpt == "milk"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return conn.hasMessage(func(m map[string]any) bool {
			st, _ := m["status"].(map[string]any)
			return m["type"] == "status" && st["state"] == "saved"
		})
	}, 2*time.Second, 5*time.Millisecond)

	close(conn.in)
	<-done

	first := conn.sent()[0]
	assert.Equal(t, "loaded", first["type"])
	note := first["note"].(map[string]any)
	assert.Equal(t, n.ID, note["id"])
}

func TestSessionReportsBadMessages(t *testing.T) {
	srv, _, w := sessionServer(t)
	ctx := context.Background()
	n, err := w.CreateNote(ctx)
	require.NoError(t, err)

	conn := newPipeConn()
	conn.in <- `{"type":"set_document","document":{"type":"paragraph"}}`
	conn.in <- `{"type":"rename"}`
	close(conn.in)

	srv.RunSession(conn, n.ID)

	var errs []string
	for _, m := range conn.sent() {
		if m["type"] == "error" {
			errs = append(errs, m["error"].(string))
		}
	}
	require.Len(t, errs, 2)
	assert.Contains(t, errs[1], "unknown message type")
}

func TestSessionUnknownNote(t *testing.T) {
	srv, _, _ := sessionServer(t)
	conn := newPipeConn()

	srv.RunSession(conn, "missing")

	msgs := conn.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Contains(t, msgs[0]["error"], domain.ErrNotFound.Error())
}
