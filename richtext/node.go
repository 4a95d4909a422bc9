// server/richtext/node.go

// Package richtext models the editor's document tree: a doc root holding
// blocks, blocks holding inline text runs, text runs carrying marks.
package richtext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Node types produced by the editor.
const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeHeading     = "heading"
	TypeText        = "text"
	TypeBulletList  = "bulletList"
	TypeOrderedList = "orderedList"
	TypeListItem    = "listItem"
	TypeHardBreak   = "hardBreak"
	TypeBlockquote  = "blockquote"
	TypeCodeBlock   = "codeBlock"
)

// Mark types.
const (
	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkHighlight = "highlight"
	MarkTextStyle = "textStyle"
	MarkCode      = "code"
	MarkStrike    = "strike"
)

var ErrNotDocument = errors.New("root node is not a doc")

type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Empty is the canonical empty document handed to the editor when stored
// content cannot be used.
func Empty() Node {
	return Node{
		Type:    TypeDoc,
		Content: []Node{{Type: TypeParagraph}},
	}
}

// Blank is the document a freshly created note starts with.
func Blank() Node {
	return Node{Type: TypeDoc, Content: []Node{}}
}

// BlankJSON is Blank encoded the way it is stored.
func BlankJSON() json.RawMessage {
	return json.RawMessage(`{"type":"doc","content":[]}`)
}

func Parse(raw []byte) (Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Node{}, ErrNotDocument
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return Node{}, fmt.Errorf("decode document: %w", err)
	}
	if n.Type != TypeDoc {
		return Node{}, fmt.Errorf("%w: got %q", ErrNotDocument, n.Type)
	}
	return n, nil
}

// Normalize parses raw content and falls back to Empty when it is not a
// well-formed document. The boolean reports whether raw was usable.
func Normalize(raw []byte) (Node, bool) {
	n, err := Parse(raw)
	if err != nil {
		return Empty(), false
	}
	return n, true
}

func (n Node) JSON() (json.RawMessage, error) {
	return json.Marshal(n)
}

// HasBlocks reports whether the root has at least one child block.
func HasBlocks(doc Node) bool {
	return len(doc.Content) > 0
}

func (n Node) HasMark(typ string) bool {
	for _, m := range n.Marks {
		if m.Type == typ {
			return true
		}
	}
	return false
}

// IsBlock reports whether n is one of the block types the editor knows.
func (n Node) IsBlock() bool {
	switch n.Type {
	case TypeParagraph, TypeHeading, TypeBulletList, TypeOrderedList,
		TypeListItem, TypeBlockquote, TypeCodeBlock:
		return true
	}
	return false
}

// PlainText concatenates every text run below n.
func PlainText(n Node) string {
	var b strings.Builder
	Walk(n, func(c Node) WalkStatus {
		switch c.Type {
		case TypeText:
			b.WriteString(c.Text)
		case TypeHardBreak:
			b.WriteByte('\n')
		}
		return WalkContinue
	})
	return b.String()
}

func (m Mark) FontSize() (int, bool) {
	if m.Type != MarkTextStyle {
		return 0, false
	}
	return attrInt(m.Attrs, "fontSize")
}

func (n Node) LineHeight() (string, bool) {
	if n.Type != TypeParagraph {
		return "", false
	}
	v, ok := n.Attrs["lineHeight"]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

func (n Node) HeadingLevel() int {
	level, ok := attrInt(n.Attrs, "level")
	if !ok || level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// attrInt reads a numeric attribute. The editor stores font sizes as strings
// ("16") while decoded JSON numbers arrive as float64.
func attrInt(attrs map[string]any, key string) (int, bool) {
	v, ok := attrs[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return int(x), x > 0
	case int:
		return x, x > 0
	case string:
		i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(x), "px"))
		if err != nil || i <= 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
