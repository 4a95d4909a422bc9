// server/workspace/workspace.go

// Package workspace owns the list-side view of the notes collection: the
// summary list, the folder list and the current selection. Pin and folder
// changes go straight to the store; in-progress edits arrive through
// ApplySummary.
package workspace

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/store"
)

const (
	EventNoteCreated      = "note_created"
	EventNoteUpdated      = "note_updated"
	EventNoteDeleted      = "note_deleted"
	EventSummaryUpdated   = "summary_updated"
	EventFolderCreated    = "folder_created"
	EventFolderUpdated    = "folder_updated"
	EventFolderDeleted    = "folder_deleted"
	EventSelectionChanged = "selection_changed"
)

// Publisher fans workspace changes out to connected clients.
type Publisher interface {
	Publish(event string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// Selection is the selected note ("" for none) and folder (nil for All).
type Selection struct {
	NoteID   string  `json:"note_id"`
	FolderID *string `json:"folder_id"`
}

type deleted struct {
	ID string `json:"id"`
}

type Workspace struct {
	store store.Store
	log   zerolog.Logger
	pub   Publisher

	mu             sync.RWMutex
	notes          []domain.Summary
	folders        []domain.Folder
	selectedNote   string
	selectedFolder *string
}

func New(s store.Store, log zerolog.Logger, pub Publisher) *Workspace {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Workspace{store: s, log: log, pub: pub}
}

// Load replaces local state with the stored folders and notes. The current
// selection survives when it still resolves; otherwise the first note is
// selected.
func (w *Workspace) Load(ctx context.Context) error {
	folders, err := w.store.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("load folders: %w", err)
	}
	notes, err := w.store.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	summaries := make([]domain.Summary, 0, len(notes))
	for _, n := range notes {
		summaries = append(summaries, domain.SummaryOf(n))
	}
	domain.SortSummaries(summaries)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.folders = w.folders[:0]
	for _, f := range folders {
		w.folders = append(w.folders, *f)
	}
	w.notes = summaries

	if w.selectedFolder != nil && w.folderIndexLocked(*w.selectedFolder) < 0 {
		w.selectedFolder = nil
	}
	if w.selectedNote != "" && w.noteIndexLocked(w.selectedNote) < 0 {
		w.selectedNote = ""
	}
	if w.selectedNote == "" && len(w.notes) > 0 {
		w.selectedNote = w.notes[0].ID
	}

	w.log.Info().Int("notes", len(w.notes)).Int("folders", len(w.folders)).Msg("workspace loaded")
	return nil
}

func (w *Workspace) Notes() []domain.Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.Summary, len(w.notes))
	for i, s := range w.notes {
		out[i] = w.resolvedLocked(s)
	}
	return out
}

func (w *Workspace) Folders() []domain.Folder {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]domain.Folder(nil), w.folders...)
}

func (w *Workspace) Summary(id string) (domain.Summary, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := w.noteIndexLocked(id)
	if i < 0 {
		return domain.Summary{}, false
	}
	return w.resolvedLocked(w.notes[i]), true
}

func (w *Workspace) Selection() Selection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selectionLocked()
}

func (w *Workspace) SelectNote(id string) error {
	w.mu.Lock()
	if id != "" && w.noteIndexLocked(id) < 0 {
		w.mu.Unlock()
		return domain.NoteNotFound(id)
	}
	w.selectedNote = id
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.pub.Publish(EventSelectionChanged, sel)
	return nil
}

// SelectFolder filters the list by folder id; nil selects All.
func (w *Workspace) SelectFolder(id *string) error {
	w.mu.Lock()
	if id != nil && w.folderIndexLocked(*id) < 0 {
		w.mu.Unlock()
		return domain.FolderNotFound(*id)
	}
	w.selectedFolder = copyID(id)
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.pub.Publish(EventSelectionChanged, sel)
	return nil
}

// FolderOf resolves the folder a summary is filed under. Ids that no longer
// name a folder read as unfiled.
func (w *Workspace) FolderOf(s domain.Summary) (domain.Folder, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.folderOfLocked(s)
}

// Visible returns the notes in the selected folder whose title or excerpt
// contains query, ignoring case.
func (w *Workspace) Visible(query string) []domain.Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.Summary
	for _, s := range w.visibleLocked() {
		if q != "" &&
			!strings.Contains(strings.ToLower(s.Title), q) &&
			!strings.Contains(strings.ToLower(s.Excerpt), q) {
			continue
		}
		out = append(out, w.resolvedLocked(s))
	}
	return out
}

type summarySource []domain.Summary

func (s summarySource) String(i int) string { return s[i].Title + " " + s[i].Excerpt }
func (s summarySource) Len() int            { return len(s) }

// Search ranks the notes in the selected folder by fuzzy match against
// title and excerpt, best first. An empty query returns the visible list.
func (w *Workspace) Search(query string) []domain.Summary {
	query = strings.TrimSpace(query)
	if query == "" {
		return w.Visible("")
	}

	w.mu.RLock()
	src := summarySource(w.visibleLocked())
	matches := fuzzy.FindFrom(query, src)
	out := make([]domain.Summary, 0, len(matches))
	for _, m := range matches {
		out = append(out, w.resolvedLocked(src[m.Index]))
	}
	w.mu.RUnlock()
	return out
}

// CreateNote inserts an empty note into the selected folder and selects it.
func (w *Workspace) CreateNote(ctx context.Context) (domain.Summary, error) {
	w.mu.RLock()
	folder := copyID(w.selectedFolder)
	w.mu.RUnlock()

	return w.AddNote(ctx, domain.NewNote{FolderID: folder})
}

// AddNote inserts nn as given and selects it.
func (w *Workspace) AddNote(ctx context.Context, nn domain.NewNote) (domain.Summary, error) {
	n, err := w.store.InsertNote(ctx, nn)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("create note: %w", err)
	}
	s := domain.SummaryOf(n)

	w.mu.Lock()
	w.notes = append([]domain.Summary{s}, w.notes...)
	domain.SortSummaries(w.notes)
	w.selectedNote = s.ID
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.log.Info().Str("note_id", s.ID).Msg("note created")
	w.pub.Publish(EventNoteCreated, s)
	w.pub.Publish(EventSelectionChanged, sel)
	return cloneSummary(s), nil
}

// DeleteNote removes the note. When it was selected the selection moves to
// the next visible note, else the previous one, else none.
func (w *Workspace) DeleteNote(ctx context.Context, id string) error {
	if err := w.store.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	w.mu.Lock()
	selChanged := false
	if w.selectedNote == id {
		w.selectedNote = ""
		visible := w.visibleLocked()
		for i, s := range visible {
			if s.ID != id {
				continue
			}
			switch {
			case i+1 < len(visible):
				w.selectedNote = visible[i+1].ID
			case i > 0:
				w.selectedNote = visible[i-1].ID
			}
			break
		}
		selChanged = true
	}
	if i := w.noteIndexLocked(id); i >= 0 {
		w.notes = append(w.notes[:i], w.notes[i+1:]...)
	}
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.log.Info().Str("note_id", id).Msg("note deleted")
	w.pub.Publish(EventNoteDeleted, deleted{ID: id})
	if selChanged {
		w.pub.Publish(EventSelectionChanged, sel)
	}
	return nil
}

// TogglePin flips the stored pinned flag and re-sorts the list.
func (w *Workspace) TogglePin(ctx context.Context, id string) (domain.Summary, error) {
	n, err := w.store.GetNote(ctx, id)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("toggle pin: %w", err)
	}
	pinned := !n.IsPinned
	if err := w.store.UpdateNote(ctx, id, domain.NotePatch{IsPinned: &pinned}); err != nil {
		return domain.Summary{}, fmt.Errorf("toggle pin: %w", err)
	}

	s, ok := w.patchLocal(id, func(s *domain.Summary) { s.IsPinned = pinned }, n)
	if !ok {
		return domain.Summary{}, domain.NoteNotFound(id)
	}

	w.log.Info().Str("note_id", id).Bool("pinned", pinned).Msg("pin toggled")
	w.pub.Publish(EventNoteUpdated, s)
	return s, nil
}

// MoveNote files the note under folderID, or unfiles it when folderID is
// nil, and selects the destination.
func (w *Workspace) MoveNote(ctx context.Context, id string, folderID *string) (domain.Summary, error) {
	patch := domain.NotePatch{FolderID: copyID(folderID), ClearFolder: folderID == nil}
	if err := w.store.UpdateNote(ctx, id, patch); err != nil {
		return domain.Summary{}, fmt.Errorf("move note: %w", err)
	}

	s, ok := w.patchLocal(id, func(s *domain.Summary) { s.FolderID = copyID(folderID) }, nil)
	if !ok {
		return domain.Summary{}, domain.NoteNotFound(id)
	}

	w.mu.Lock()
	selChanged := !domain.SameFolder(w.selectedFolder, folderID)
	w.selectedFolder = copyID(folderID)
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.log.Info().Str("note_id", id).Msg("note moved")
	w.pub.Publish(EventNoteUpdated, s)
	if selChanged {
		w.pub.Publish(EventSelectionChanged, sel)
	}
	return s, nil
}

// UpdateNote writes patch straight to the store and refreshes the list entry
// from the stored record.
func (w *Workspace) UpdateNote(ctx context.Context, id string, patch domain.NotePatch) (*domain.Note, error) {
	if !patch.Empty() {
		if err := w.store.UpdateNote(ctx, id, patch); err != nil {
			return nil, fmt.Errorf("update note: %w", err)
		}
	}
	n, err := w.store.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	fresh := domain.SummaryOf(n)
	s, _ := w.patchLocal(id, func(s *domain.Summary) { *s = fresh }, n)

	w.pub.Publish(EventNoteUpdated, s)
	return n, nil
}

// ApplySummary copies an editing session's title and excerpt onto the list
// entry. Unknown ids are ignored.
func (w *Workspace) ApplySummary(p domain.SummaryPatch) {
	w.mu.Lock()
	i := w.noteIndexLocked(p.ID)
	if i < 0 {
		w.mu.Unlock()
		return
	}
	w.notes[i].Title = p.Title
	w.notes[i].Excerpt = p.Excerpt
	w.mu.Unlock()

	w.pub.Publish(EventSummaryUpdated, p)
}

// patchLocal applies fn to the summary for id and re-sorts. A note missing
// from the list is added from fallback when one is given.
func (w *Workspace) patchLocal(id string, fn func(*domain.Summary), fallback *domain.Note) (domain.Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.noteIndexLocked(id)
	if i < 0 {
		if fallback == nil {
			return domain.Summary{}, false
		}
		w.notes = append(w.notes, domain.SummaryOf(fallback))
		i = len(w.notes) - 1
	}
	fn(&w.notes[i])
	s := cloneSummary(w.notes[i])
	domain.SortSummaries(w.notes)
	return s, true
}

func (w *Workspace) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	name, err := domain.FolderName(name)
	if err != nil {
		return domain.Folder{}, err
	}
	f, err := w.store.InsertFolder(ctx, name)
	if err != nil {
		return domain.Folder{}, fmt.Errorf("create folder: %w", err)
	}

	w.mu.Lock()
	w.folders = append(w.folders, *f)
	w.selectedFolder = copyID(&f.ID)
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.log.Info().Str("folder_id", f.ID).Str("name", f.Name).Msg("folder created")
	w.pub.Publish(EventFolderCreated, *f)
	w.pub.Publish(EventSelectionChanged, sel)
	return *f, nil
}

func (w *Workspace) RenameFolder(ctx context.Context, id, name string) (domain.Folder, error) {
	name, err := domain.FolderName(name)
	if err != nil {
		return domain.Folder{}, err
	}
	if err := w.store.RenameFolder(ctx, id, name); err != nil {
		return domain.Folder{}, fmt.Errorf("rename folder: %w", err)
	}

	w.mu.Lock()
	i := w.folderIndexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return domain.Folder{}, domain.FolderNotFound(id)
	}
	w.folders[i].Name = name
	f := w.folders[i]
	w.mu.Unlock()

	w.pub.Publish(EventFolderUpdated, f)
	return f, nil
}

// DeleteFolder unfiles every note in the folder and then removes it. Stores
// implementing store.FolderRemover do both in one transaction.
func (w *Workspace) DeleteFolder(ctx context.Context, id string) error {
	if r, ok := w.store.(store.FolderRemover); ok {
		if err := r.RemoveFolder(ctx, id); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
	} else {
		moved, err := w.store.ReassignFolder(ctx, id)
		if err != nil {
			return fmt.Errorf("unfile notes: %w", err)
		}
		if err := w.store.DeleteFolder(ctx, id); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
		w.log.Debug().Str("folder_id", id).Int64("unfiled", moved).Msg("notes unfiled")
	}

	w.mu.Lock()
	var updated []domain.Summary
	for i := range w.notes {
		if domain.SameFolder(w.notes[i].FolderID, &id) {
			w.notes[i].FolderID = nil
			updated = append(updated, cloneSummary(w.notes[i]))
		}
	}
	if i := w.folderIndexLocked(id); i >= 0 {
		w.folders = append(w.folders[:i], w.folders[i+1:]...)
	}
	selChanged := false
	if domain.SameFolder(w.selectedFolder, &id) {
		w.selectedFolder = nil
		selChanged = true
	}
	sel := w.selectionLocked()
	w.mu.Unlock()

	w.log.Info().Str("folder_id", id).Int("unfiled", len(updated)).Msg("folder deleted")
	for _, s := range updated {
		w.pub.Publish(EventNoteUpdated, s)
	}
	w.pub.Publish(EventFolderDeleted, deleted{ID: id})
	if selChanged {
		w.pub.Publish(EventSelectionChanged, sel)
	}
	return nil
}

func (w *Workspace) visibleLocked() []domain.Summary {
	if w.selectedFolder == nil {
		return w.notes
	}
	var out []domain.Summary
	for _, s := range w.notes {
		if f, ok := w.folderOfLocked(s); ok && f.ID == *w.selectedFolder {
			out = append(out, s)
		}
	}
	return out
}

func (w *Workspace) folderOfLocked(s domain.Summary) (domain.Folder, bool) {
	if s.FolderID == nil {
		return domain.Folder{}, false
	}
	i := w.folderIndexLocked(*s.FolderID)
	if i < 0 {
		return domain.Folder{}, false
	}
	return w.folders[i], true
}

// resolvedLocked copies s for callers, clearing a folder id that no longer
// names a folder.
func (w *Workspace) resolvedLocked(s domain.Summary) domain.Summary {
	if _, ok := w.folderOfLocked(s); !ok {
		s.FolderID = nil
	}
	return cloneSummary(s)
}

func (w *Workspace) selectionLocked() Selection {
	return Selection{NoteID: w.selectedNote, FolderID: copyID(w.selectedFolder)}
}

func (w *Workspace) noteIndexLocked(id string) int {
	for i := range w.notes {
		if w.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *Workspace) folderIndexLocked(id string) int {
	for i := range w.folders {
		if w.folders[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneSummary(s domain.Summary) domain.Summary {
	s.FolderID = copyID(s.FolderID)
	return s
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
