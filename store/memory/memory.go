// server/store/memory/memory.go

// Package memory is an in-process store used by tests and by servers started
// without a database.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/richtext"
	"github.com/ViniZap4/lumi-notes/store"
)

type Store struct {
	mu      sync.RWMutex
	notes   map[string]*domain.Note
	folders map[string]*domain.Folder
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		notes:   make(map[string]*domain.Note),
		folders: make(map[string]*domain.Folder),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return nil, domain.NoteNotFound(id)
	}
	return copyNote(n), nil
}

func (s *Store) ListNotes(ctx context.Context) ([]*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, copyNote(n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertNote(ctx context.Context, nn domain.NewNote) (*domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nn.FolderID != nil {
		if _, ok := s.folders[*nn.FolderID]; !ok {
			return nil, domain.FolderNotFound(*nn.FolderID)
		}
	}

	content := nn.Content
	if content == nil {
		content = richtext.BlankJSON()
	}
	n := &domain.Note{
		ID:        uuid.NewString(),
		Title:     nn.Title,
		Content:   append(json.RawMessage(nil), content...),
		IsPinned:  nn.IsPinned,
		FolderID:  copyID(nn.FolderID),
		CreatedAt: s.now(),
	}
	s.notes[n.ID] = n
	return copyNote(n), nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch domain.NotePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok {
		return domain.NoteNotFound(id)
	}
	if patch.FolderID != nil && !patch.ClearFolder {
		if _, ok := s.folders[*patch.FolderID]; !ok {
			return domain.FolderNotFound(*patch.FolderID)
		}
	}
	patch.Apply(n)
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return domain.NoteNotFound(id)
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) ReassignFolder(ctx context.Context, folderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.notes {
		if n.FolderID != nil && *n.FolderID == folderID {
			n.FolderID = nil
			changed++
		}
	}
	return changed, nil
}

func (s *Store) ListFolders(ctx context.Context) ([]*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		c := *f
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertFolder(ctx context.Context, name string) (*domain.Folder, error) {
	name, err := domain.FolderName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := &domain.Folder{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	s.folders[f.ID] = f
	c := *f
	return &c, nil
}

func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	name, err := domain.FolderName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return domain.FolderNotFound(id)
	}
	f.Name = name
	return nil
}

// DeleteFolder removes only the folder row; notes still pointing at it keep
// the dangling id until ReassignFolder runs.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[id]; !ok {
		return domain.FolderNotFound(id)
	}
	delete(s.folders, id)
	return nil
}

func copyNote(n *domain.Note) *domain.Note {
	c := *n
	c.Content = append(json.RawMessage(nil), n.Content...)
	c.FolderID = copyID(n.FolderID)
	return &c
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
