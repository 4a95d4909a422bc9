// server/domain/note.go
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ViniZap4/lumi-notes/richtext"
)

type Note struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	IsPinned  bool            `json:"is_pinned"`
	FolderID  *string         `json:"folder_id"`
	CreatedAt time.Time       `json:"created_at"`
}

type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNote is the row handed to the store on insert. Zero values produce an
// empty, unpinned, unfiled note.
type NewNote struct {
	Title    string
	Content  json.RawMessage
	IsPinned bool
	FolderID *string
}

// NotePatch is a partial update. Nil fields are left untouched; ClearFolder
// moves the note back to unfiled and wins over FolderID.
type NotePatch struct {
	Title       *string
	Content     json.RawMessage
	IsPinned    *bool
	FolderID    *string
	ClearFolder bool
}

func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.IsPinned == nil && p.FolderID == nil && !p.ClearFolder
}

// Apply copies the patched fields onto n.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = append(json.RawMessage(nil), p.Content...)
	}
	if p.IsPinned != nil {
		n.IsPinned = *p.IsPinned
	}
	switch {
	case p.ClearFolder:
		n.FolderID = nil
	case p.FolderID != nil:
		id := *p.FolderID
		n.FolderID = &id
	}
}

// FolderName trims and checks a folder name.
func FolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "must not be empty"}
	}
	return name, nil
}

// Document returns the note content as a tree, substituting the canonical
// empty document when the stored content is malformed.
func (n *Note) Document() (richtext.Node, bool) {
	return richtext.Normalize(n.Content)
}

func SameFolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
