// server/filesystem/export.go
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/store"
)

// UnfiledDir holds notes without a folder, including notes whose folder no
// longer exists.
const UnfiledDir = "unfiled"

// NotePath is <root>/<folder>/<id>.md. folders maps folder id to name.
func NotePath(root string, note *domain.Note, folders map[string]string) string {
	dir := UnfiledDir
	if note.FolderID != nil {
		if name, ok := folders[*note.FolderID]; ok {
			dir = dirName(name)
		}
	}
	return filepath.Join(root, dir, note.ID+".md")
}

func dirName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == UnfiledDir {
		return "_" + name
	}
	return name
}

// Export writes every stored note under root and reports how many were
// written.
func Export(ctx context.Context, root string, s store.Store) (int, error) {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list folders: %w", err)
	}
	notes, err := s.ListNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notes: %w", err)
	}

	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	written := 0
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := NotePath(root, n, names)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return written, err
		}
		if err := WriteNote(path, n); err != nil {
			return written, fmt.Errorf("write %s: %w", n.ID, err)
		}
		written++
	}
	return written, nil
}

// ReadTree reads every exported note below root. Files that fail to parse
// are skipped.
func ReadTree(root string) ([]*domain.Note, error) {
	var notes []*domain.Note
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		note, err := ReadNote(path)
		if err != nil {
			return nil
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}
