// server/autosave/engine.go

// Package autosave keeps a locally edited note, its stored record and the
// list summary eventually consistent without writing on every keystroke.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/richtext"
	"github.com/ViniZap4/lumi-notes/store"
)

const (
	DefaultTitleDelay   = 1000 * time.Millisecond
	DefaultContentDelay = 1500 * time.Millisecond
	DefaultSummaryDelay = 1000 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

var ErrNotOpen = errors.New("autosave: no note open")

type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// Observer is told about every completed remote write.
type Observer interface {
	WriteCompleted(field Field, err error, took time.Duration)
}

type Snapshot struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Document richtext.Node `json:"document"`
	Status   Status        `json:"status"`
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithDelays(title, content, summary time.Duration) Option {
	return func(e *Engine) {
		e.titleDelay = title
		e.contentDelay = content
		e.summaryDelay = summary
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.writeTimeout = d }
}

// OnSummary registers the callback that receives in-progress title and
// excerpt for the list view.
func OnSummary(fn func(domain.SummaryPatch)) Option {
	return func(e *Engine) { e.onSummary = fn }
}

func OnStatus(fn func(Status)) Option {
	return func(e *Engine) { e.onStatus = fn }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine is bound to at most one note at a time. Title and content are
// written independently, each behind its own debounce timer, and may land
// out of order.
type Engine struct {
	store store.Notes
	log   zerolog.Logger
	clock Clock

	titleDelay   time.Duration
	contentDelay time.Duration
	summaryDelay time.Duration
	writeTimeout time.Duration

	onSummary func(domain.SummaryPatch)
	onStatus  func(Status)
	observer  Observer

	titleTimer   *Debouncer
	contentTimer *Debouncer
	summaryTimer *Debouncer

	openMu sync.Mutex

	mu           sync.Mutex
	epoch        uint64
	id           string
	title        string
	doc          richtext.Node
	hasDoc       bool
	pendingTitle *string
	pendingDoc   *richtext.Node
	status       Status
}

func New(notes store.Notes, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        notes,
		log:          log,
		clock:        RealClock(),
		titleDelay:   DefaultTitleDelay,
		contentDelay: DefaultContentDelay,
		summaryDelay: DefaultSummaryDelay,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.titleTimer = NewDebouncer(e.clock)
	e.contentTimer = NewDebouncer(e.clock)
	e.summaryTimer = NewDebouncer(e.clock)
	return e
}

// Open binds the engine to id, discarding every pending write of the
// previous note, and loads the stored record once. A missing note is
// reported as domain.ErrNotFound and leaves the engine unbound.
func (e *Engine) Open(ctx context.Context, id string) (Snapshot, error) {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	e.unbind()

	note, err := e.store.GetNote(ctx, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open note %s: %w", id, err)
	}

	doc, ok := note.Document()
	if !ok {
		e.log.Warn().Str("note_id", id).Err(domain.ErrMalformedContent).
			Msg("stored content is not a document, using empty document")
	}

	e.mu.Lock()
	e.id = note.ID
	e.title = note.Title
	e.doc = doc
	e.hasDoc = true
	e.status = Status{State: Idle}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.log.Debug().Str("note_id", id).Msg("note opened")
	return snap, nil
}

// Close cancels pending timers and unbinds the engine.
func (e *Engine) Close() {
	e.openMu.Lock()
	defer e.openMu.Unlock()
	e.unbind()
}

func (e *Engine) unbind() {
	e.titleTimer.Stop()
	e.contentTimer.Stop()
	e.summaryTimer.Stop()

	e.mu.Lock()
	if e.id != "" && (e.pendingTitle != nil || e.pendingDoc != nil) {
		e.log.Debug().Str("note_id", e.id).Msg("discarding unsaved edits")
	}
	e.epoch++
	e.id = ""
	e.title = ""
	e.doc = richtext.Node{}
	e.hasDoc = false
	e.pendingTitle = nil
	e.pendingDoc = nil
	e.status = Status{State: Idle}
	e.mu.Unlock()
}

func (e *Engine) SetTitle(value string) error {
	e.mu.Lock()
	if e.id == "" {
		e.mu.Unlock()
		return ErrNotOpen
	}
	e.title = value
	e.pendingTitle = &value
	status, changed := e.setStatusLocked(Status{State: Pending})
	epoch := e.epoch
	e.mu.Unlock()

	e.notify(status, changed)
	e.titleTimer.Schedule(e.titleDelay, func() { e.flushTitle(epoch) })
	e.summaryTimer.Schedule(e.summaryDelay, func() { e.reconcile(epoch) })
	return nil
}

func (e *Engine) SetDocument(doc richtext.Node) error {
	e.mu.Lock()
	if e.id == "" {
		e.mu.Unlock()
		return ErrNotOpen
	}
	e.doc = doc
	e.hasDoc = true
	e.pendingDoc = &doc
	status, changed := e.setStatusLocked(Status{State: Pending})
	epoch := e.epoch
	e.mu.Unlock()

	e.notify(status, changed)
	e.contentTimer.Schedule(e.contentDelay, func() { e.flushContent(epoch) })
	e.summaryTimer.Schedule(e.summaryDelay, func() { e.reconcile(epoch) })
	return nil
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{ID: e.id, Title: e.title, Document: e.doc, Status: e.status}
}

func (e *Engine) flushTitle(epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	id, title := e.id, e.title
	if strings.TrimSpace(title) == "" {
		// The stored title stays as it was; the note remains pending.
		e.pendingTitle = nil
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	err := e.write(FieldTitle, id, domain.NotePatch{Title: &title})

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	if err == nil && e.pendingTitle != nil && *e.pendingTitle == title {
		e.pendingTitle = nil
	}
	status, changed := e.afterWriteLocked(err)
	e.mu.Unlock()
	e.notify(status, changed)
}

func (e *Engine) flushContent(epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	id, doc, sent := e.id, e.doc, e.pendingDoc
	if !richtext.HasBlocks(doc) {
		// Transient empty state produced mid-edit.
		e.pendingDoc = nil
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	raw, err := doc.JSON()
	if err == nil {
		err = e.write(FieldContent, id, domain.NotePatch{Content: raw})
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	if err == nil && e.pendingDoc == sent {
		e.pendingDoc = nil
	}
	status, changed := e.afterWriteLocked(err)
	e.mu.Unlock()
	e.notify(status, changed)
}

func (e *Engine) write(field Field, id string, patch domain.NotePatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()

	start := time.Now()
	err := e.store.UpdateNote(ctx, id, patch)
	took := time.Since(start)
	if e.observer != nil {
		e.observer.WriteCompleted(field, err, took)
	}
	if err != nil {
		// The cause stays in the log; the status reaches clients.
		e.log.Error().Err(err).Str("note_id", id).Str("field", string(field)).
			Msg(domain.ErrWriteFailed.Error())
		return fmt.Errorf("%w: %s", domain.ErrWriteFailed, field)
	}
	e.log.Debug().Str("note_id", id).Str("field", string(field)).Dur("took", took).Msg("saved")
	return nil
}

// afterWriteLocked records a failure, or Saved once no field is waiting on
// a write.
func (e *Engine) afterWriteLocked(err error) (Status, bool) {
	if err != nil {
		return e.setStatusLocked(FailedStatus(err))
	}
	if e.pendingTitle == nil && e.pendingDoc == nil && e.status.State == Pending {
		return e.setStatusLocked(Status{State: Saved})
	}
	return e.status, false
}

func (e *Engine) setStatusLocked(s Status) (Status, bool) {
	if e.status == s {
		return s, false
	}
	e.status = s
	return s, true
}

func (e *Engine) notify(s Status, changed bool) {
	if changed && e.onStatus != nil {
		e.onStatus(s)
	}
}

func (e *Engine) reconcile(epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	id, title, doc, hasDoc := e.id, e.title, e.doc, e.hasDoc
	e.mu.Unlock()

	if title == "" || !hasDoc || e.onSummary == nil {
		return
	}
	excerpt, _ := richtext.Excerpt(doc)
	e.onSummary(domain.SummaryPatch{ID: id, Title: title, Excerpt: excerpt})
}
