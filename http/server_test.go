package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniZap4/lumi-notes/auth"
	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/metrics"
	"github.com/ViniZap4/lumi-notes/store/memory"
	"github.com/ViniZap4/lumi-notes/workspace"
	"github.com/ViniZap4/lumi-notes/ws"
)

const token = "secret"

type testServer struct {
	app   *fiber.App
	srv   *Server
	store *memory.Store
	ws    *workspace.Workspace
	dir   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := memory.New()
	hub := ws.NewHub(zerolog.Nop())
	w := workspace.New(s, zerolog.Nop(), hub)
	require.NoError(t, w.Load(context.Background()))

	dir := t.TempDir()
	srv := NewServer(Deps{
		Store:     s,
		Workspace: w,
		Hub:       hub,
		Auth:      auth.NewChecker(token, ""),
		Metrics:   metrics.NewCollector("lumi"),
		Log:       zerolog.Nop(),
		ExportDir: dir,
	})
	return &testServer{app: srv.App(), srv: srv, store: s, ws: w, dir: dir}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *nethttp.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(auth.Header, token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *nethttp.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func bodyString(t *testing.T, resp *nethttp.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealthzNeedsNoToken(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.app.Test(httptest.NewRequest("GET", "/api/notes", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Contains(t, bodyString(t, resp), "unauthorized")
}

func TestNoteLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/api/notes", "")
	require.Equal(t, 201, resp.StatusCode)
	created := decode[domain.Summary](t, resp)
	assert.Equal(t, "", created.Title)

	resp = ts.do(t, "PUT", "/api/notes/"+created.ID, `{
		"title": "Grocery List",
		"content": {"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"milk"}]}]}
	}`)
	require.Equal(t, 200, resp.StatusCode)
	note := decode[domain.Note](t, resp)
	assert.Equal(t, "Grocery List", note.Title)

	resp = ts.do(t, "GET", "/api/notes", "")
	list := decode[[]domain.Summary](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Grocery List", list[0].Title)
	assert.Equal(t, "milk", list[0].Excerpt)

	resp = ts.do(t, "GET", "/api/notes/"+created.ID+"/html", "")
	assert.Equal(t, "<p>milk</p>", bodyString(t, resp))

	resp = ts.do(t, "GET", "/api/notes/"+created.ID+"/markdown", "")
	assert.Equal(t, "milk\n", bodyString(t, resp))

	resp = ts.do(t, "DELETE", "/api/notes/"+created.ID, "")
	assert.Equal(t, 204, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/notes/"+created.ID, "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestUpdateRejectsBadContent(t *testing.T) {
	ts := newTestServer(t)
	n, _ := ts.ws.CreateNote(context.Background())

	resp := ts.do(t, "PUT", "/api/notes/"+n.ID, `{"content":{"type":"paragraph"}}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp = ts.do(t, "PUT", "/api/notes/"+n.ID, `{"folder_id": 12}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp = ts.do(t, "PUT", "/api/notes/"+n.ID, `not json`)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestPinAndSearch(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	a, _ := ts.ws.AddNote(ctx, domain.NewNote{Title: "Weekly review"})
	b, _ := ts.ws.AddNote(ctx, domain.NewNote{Title: "Grocery list"})

	resp := ts.do(t, "POST", "/api/notes/"+a.ID+"/pin", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.True(t, decode[domain.Summary](t, resp).IsPinned)

	list := decode[[]domain.Summary](t, ts.do(t, "GET", "/api/notes", ""))
	assert.Equal(t, a.ID, list[0].ID)

	list = decode[[]domain.Summary](t, ts.do(t, "GET", "/api/notes?q=grocery", ""))
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list = decode[[]domain.Summary](t, ts.do(t, "GET", "/api/notes?q=grcry&mode=fuzzy", ""))
	require.NotEmpty(t, list)
	assert.Equal(t, b.ID, list[0].ID)

	list = decode[[]domain.Summary](t, ts.do(t, "GET", "/api/notes?q=nothing", ""))
	assert.Empty(t, list)
}

func TestFoldersAndMove(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	n, _ := ts.ws.AddNote(ctx, domain.NewNote{Title: "N"})

	resp := ts.do(t, "POST", "/api/folders", `{"name":"   "}`)
	assert.Equal(t, 400, resp.StatusCode)
	resp = ts.do(t, "POST", "/api/folders", `{}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp = ts.do(t, "POST", "/api/folders", `{"name":"Work"}`)
	require.Equal(t, 201, resp.StatusCode)
	f := decode[domain.Folder](t, resp)

	resp = ts.do(t, "PUT", "/api/folders/"+f.ID, `{"name":"Office"}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Office", decode[domain.Folder](t, resp).Name)

	resp = ts.do(t, "POST", "/api/notes/"+n.ID+"/move", `{"folder_id":"`+f.ID+`"}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, f.ID, *decode[domain.Summary](t, resp).FolderID)

	sel := decode[workspace.Selection](t, ts.do(t, "GET", "/api/selection", ""))
	assert.Equal(t, f.ID, *sel.FolderID)

	resp = ts.do(t, "DELETE", "/api/folders/"+f.ID, "")
	assert.Equal(t, 204, resp.StatusCode)

	stored, _ := ts.store.GetNote(ctx, n.ID)
	assert.Nil(t, stored.FolderID)
	sel = decode[workspace.Selection](t, ts.do(t, "GET", "/api/selection", ""))
	assert.Nil(t, sel.FolderID)

	folders := decode[[]domain.Folder](t, ts.do(t, "GET", "/api/folders", ""))
	assert.Empty(t, folders)

	resp = ts.do(t, "DELETE", "/api/folders/"+f.ID, "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestListClearsMissingFolder(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	f, _ := ts.store.InsertFolder(ctx, "Gone")
	ts.store.InsertNote(ctx, domain.NewNote{Title: "orphan", FolderID: &f.ID})
	require.NoError(t, ts.store.DeleteFolder(ctx, f.ID))
	require.NoError(t, ts.ws.Load(ctx))

	list := decode[[]map[string]any](t, ts.do(t, "GET", "/api/notes", ""))
	require.Len(t, list, 1)
	assert.Contains(t, list[0], "folder_id")
	assert.Nil(t, list[0]["folder_id"])
}

func TestSelection(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	a, _ := ts.ws.AddNote(ctx, domain.NewNote{Title: "A"})
	ts.ws.AddNote(ctx, domain.NewNote{Title: "B"})
	f, _ := ts.ws.CreateFolder(ctx, "F")

	resp := ts.do(t, "PUT", "/api/selection", `{"note_id":"`+a.ID+`","folder_id":null}`)
	require.Equal(t, 200, resp.StatusCode)
	sel := decode[workspace.Selection](t, resp)
	assert.Equal(t, a.ID, sel.NoteID)
	assert.Nil(t, sel.FolderID)

	resp = ts.do(t, "PUT", "/api/selection", `{"folder_id":"`+f.ID+`"}`)
	sel = decode[workspace.Selection](t, resp)
	assert.Equal(t, f.ID, *sel.FolderID)
	assert.Equal(t, a.ID, sel.NoteID)

	resp = ts.do(t, "PUT", "/api/selection", `{"note_id":"missing"}`)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestImportAndExport(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/import", strings.NewReader("# Trip\n\nPack the **tent**\n"))
	req.Header.Set(auth.Header, token)
	req.Header.Set("Content-Type", "text/markdown")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	sum := decode[domain.Summary](t, resp)
	assert.Equal(t, "Trip", sum.Title)
	assert.Equal(t, "Pack the ", sum.Excerpt)

	resp = ts.do(t, "POST", "/api/import", "")
	assert.Equal(t, 400, resp.StatusCode)

	resp = ts.do(t, "POST", "/api/export", "")
	require.Equal(t, 200, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, 1.0, out["written"])

	data, err := os.ReadFile(filepath.Join(ts.dir, "unfiled", sum.ID+".md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Trip")
	assert.Contains(t, string(data), "Pack the **tent**")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, "GET", "/api/notes", "")

	resp, err := ts.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body := bodyString(t, resp)
	assert.Contains(t, body, `lumi_http_requests_total{method="GET",route="/api/notes",status="200"} 1`)
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, "GET", "/ws/notes/abc", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
