// server/store/store.go

// Package store defines the row-oriented persistence service over the notes
// and folders collections.
package store

import (
	"context"

	"github.com/ViniZap4/lumi-notes/domain"
)

type Notes interface {
	GetNote(ctx context.Context, id string) (*domain.Note, error)
	// ListNotes returns every note, pinned first then newest first.
	ListNotes(ctx context.Context) ([]*domain.Note, error)
	InsertNote(ctx context.Context, n domain.NewNote) (*domain.Note, error)
	UpdateNote(ctx context.Context, id string, patch domain.NotePatch) error
	DeleteNote(ctx context.Context, id string) error
	// ReassignFolder moves every note filed under folderID back to unfiled
	// and reports how many rows changed.
	ReassignFolder(ctx context.Context, folderID string) (int64, error)
}

type Folders interface {
	// ListFolders returns folders oldest first.
	ListFolders(ctx context.Context) ([]*domain.Folder, error)
	InsertFolder(ctx context.Context, name string) (*domain.Folder, error)
	RenameFolder(ctx context.Context, id, name string) error
	DeleteFolder(ctx context.Context, id string) error
}

type Store interface {
	Notes
	Folders
}

// FolderRemover is implemented by stores that can reassign a folder's notes
// and delete the folder in one transaction.
type FolderRemover interface {
	RemoveFolder(ctx context.Context, id string) error
}
