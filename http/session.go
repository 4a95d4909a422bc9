// server/http/session.go
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ViniZap4/lumi-notes/autosave"
	"github.com/ViniZap4/lumi-notes/richtext"
	"github.com/ViniZap4/lumi-notes/ws"
)

const (
	msgSetTitle    = "set_title"
	msgSetDocument = "set_document"
	msgLoaded      = "loaded"
	msgStatus      = "status"
	msgError       = "error"
)

type clientMessage struct {
	Type     string          `json:"type"`
	Title    string          `json:"title,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

type serverMessage struct {
	Type   string             `json:"type"`
	Note   *autosave.Snapshot `json:"note,omitempty"`
	Status *autosave.Status   `json:"status,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// RunSession edits one note over conn until the client disconnects. Each
// session owns its own autosave engine; edits still waiting on a debounce
// timer when the client leaves are dropped.
func (s *Server) RunSession(conn ws.Conn, id string) {
	log := s.log.With().Str("note_id", id).Logger()

	var mu sync.Mutex
	send := func(m serverMessage) {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.WriteJSON(m); err != nil {
			log.Debug().Err(err).Str("type", m.Type).Msg("session write failed")
		}
	}

	opts := append([]autosave.Option(nil), s.engine...)
	opts = append(opts,
		autosave.OnSummary(s.workspace.ApplySummary),
		autosave.OnStatus(func(st autosave.Status) {
			send(serverMessage{Type: msgStatus, Status: &st})
		}),
	)
	if s.metrics != nil {
		opts = append(opts, autosave.WithObserver(s.metrics))
		s.metrics.Sessions.Inc()
		defer s.metrics.Sessions.Dec()
	}

	engine := autosave.New(s.store, log, opts...)
	defer engine.Close()

	snap, err := engine.Open(context.Background(), id)
	if err != nil {
		send(serverMessage{Type: msgError, Error: err.Error()})
		return
	}
	send(serverMessage{Type: msgLoaded, Note: &snap})
	log.Debug().Msg("editing session started")

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case msgSetTitle:
			err = engine.SetTitle(msg.Title)
		case msgSetDocument:
			var doc richtext.Node
			if doc, err = richtext.Parse(msg.Document); err == nil {
				err = engine.SetDocument(doc)
			}
		default:
			err = fmt.Errorf("unknown message type %q", msg.Type)
		}
		if err != nil {
			send(serverMessage{Type: msgError, Error: err.Error()})
		}
	}
	log.Debug().Msg("editing session closed")
}
