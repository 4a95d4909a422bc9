// server/filesystem/parser.go
package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ViniZap4/lumi-notes/domain"
	"github.com/ViniZap4/lumi-notes/richtext"
)

// Frontmatter is the YAML header written above each exported note.
type Frontmatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	CreatedAt time.Time `yaml:"created_at"`
	Pinned    bool      `yaml:"pinned"`
	FolderID  *string   `yaml:"folder_id,omitempty"`
}

var delim = []byte("---\n")

func ReadNote(path string) (*domain.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	note, err := ParseNote(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return note, nil
}

// ParseNote reads a frontmatter document back into a note. The markdown body
// becomes the note's content tree.
func ParseNote(data []byte) (*domain.Note, error) {
	header, body, ok := splitFrontmatter(data)
	if !ok {
		return nil, fmt.Errorf("invalid frontmatter format")
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	content, err := richtext.FromMarkdown(body).JSON()
	if err != nil {
		return nil, err
	}
	return &domain.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Content:   content,
		IsPinned:  fm.Pinned,
		FolderID:  fm.FolderID,
		CreatedAt: fm.CreatedAt,
	}, nil
}

// ParseImport accepts either an exported note or plain markdown. Plain
// markdown takes its title from a leading level-one heading, which is then
// dropped from the body.
func ParseImport(data []byte) (title string, doc richtext.Node) {
	if note, err := ParseNote(data); err == nil {
		doc, _ = note.Document()
		return note.Title, doc
	}

	doc = richtext.FromMarkdown(data)
	if len(doc.Content) > 0 && doc.Content[0].Type == richtext.TypeHeading && doc.Content[0].HeadingLevel() == 1 {
		title = strings.TrimSpace(richtext.PlainText(doc.Content[0]))
		doc.Content = doc.Content[1:]
	}
	return title, doc
}

func splitFrontmatter(data []byte) (header, body []byte, ok bool) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, delim) {
		return nil, nil, false
	}
	rest := data[len(delim):]
	end := bytes.Index(rest, append([]byte("\n"), delim...))
	if end < 0 {
		return nil, nil, false
	}
	return rest[:end+1], bytes.TrimSpace(rest[end+1+len(delim):]), true
}

// Render produces the on-disk form of a note.
func Render(note *domain.Note) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(delim)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	fm := Frontmatter{
		ID:        note.ID,
		Title:     note.Title,
		CreatedAt: note.CreatedAt.UTC(),
		Pinned:    note.IsPinned,
		FolderID:  note.FolderID,
	}
	if err := encoder.Encode(fm); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	encoder.Close()

	buf.Write(delim)
	buf.WriteString("\n")

	doc, _ := note.Document()
	buf.WriteString(richtext.Markdown(doc))
	return buf.Bytes(), nil
}

func WriteNote(path string, note *domain.Note) error {
	data, err := Render(note)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
