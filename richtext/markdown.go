// server/richtext/markdown.go
package richtext

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Strikethrough)).Parser()

// FromMarkdown converts a markdown source into a document tree. Constructs
// the editor has no node for (tables, images, html) are dropped.
func FromMarkdown(src []byte) Node {
	root := markdownParser.Parse(gmtext.NewReader(src))

	doc := Node{Type: TypeDoc, Content: []Node{}}
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		if b, ok := convertBlock(c, src); ok {
			doc.Content = append(doc.Content, b)
		}
	}
	return doc
}

func convertBlock(n ast.Node, src []byte) (Node, bool) {
	switch v := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return Node{Type: TypeParagraph, Content: inlines(n, src)}, true

	case *ast.Heading:
		return Node{
			Type:    TypeHeading,
			Attrs:   map[string]any{"level": v.Level},
			Content: inlines(n, src),
		}, true

	case *ast.List:
		list := Node{Type: TypeBulletList}
		if v.IsOrdered() {
			list.Type = TypeOrderedList
		}
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			if item, ok := convertBlock(c, src); ok {
				list.Content = append(list.Content, item)
			}
		}
		return list, true

	case *ast.ListItem:
		return Node{Type: TypeListItem, Content: convertBlocks(n, src)}, true

	case *ast.Blockquote:
		return Node{Type: TypeBlockquote, Content: convertBlocks(n, src)}, true

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		code := strings.TrimSuffix(b.String(), "\n")
		block := Node{Type: TypeCodeBlock}
		if code != "" {
			block.Content = []Node{{Type: TypeText, Text: code}}
		}
		return block, true
	}
	return Node{}, false
}

func convertBlocks(n ast.Node, src []byte) []Node {
	var out []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if b, ok := convertBlock(c, src); ok {
			out = append(out, b)
		}
	}
	return out
}

// inlines converts the inline children of n. Text runs keep their source
// bytes until merged, so backslash escapes are resolved once per run. Code
// spans are literal and are left alone.
func inlines(n ast.Node, src []byte) []Node {
	out := convertInlines(n, src, nil)
	for i := range out {
		if out[i].Type == TypeText && !out[i].HasMark(MarkCode) {
			out[i].Text = string(util.UnescapePunctuations([]byte(out[i].Text)))
		}
	}
	return out
}

func convertInlines(n ast.Node, src []byte, marks []Mark) []Node {
	var out []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			out = appendText(out, string(v.Segment.Value(src)), marks)
			if v.HardLineBreak() {
				out = append(out, Node{Type: TypeHardBreak})
			} else if v.SoftLineBreak() {
				out = appendText(out, " ", marks)
			}
		case *ast.String:
			out = appendText(out, string(v.Value), marks)
		case *ast.Emphasis:
			mark := MarkItalic
			if v.Level >= 2 {
				mark = MarkBold
			}
			out = append(out, convertInlines(v, src, withMark(marks, mark))...)
		case *ast.CodeSpan:
			out = append(out, convertInlines(v, src, withMark(marks, MarkCode))...)
		case *extast.Strikethrough:
			out = append(out, convertInlines(v, src, withMark(marks, MarkStrike))...)
		case *ast.AutoLink:
			out = appendText(out, string(v.Label(src)), marks)
		default:
			out = append(out, convertInlines(c, src, marks)...)
		}
	}
	return out
}

func withMark(marks []Mark, typ string) []Mark {
	out := make([]Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, Mark{Type: typ})
}

func appendText(out []Node, s string, marks []Mark) []Node {
	if s == "" {
		return out
	}
	// Merge with the previous run when the marks are identical.
	if last := len(out) - 1; last >= 0 && out[last].Type == TypeText && sameMarks(out[last].Marks, marks) {
		out[last].Text += s
		return out
	}
	n := Node{Type: TypeText, Text: s}
	if len(marks) > 0 {
		n.Marks = append([]Mark(nil), marks...)
	}
	return append(out, n)
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

// Markdown renders doc as CommonMark. highlight and textStyle marks have no
// markdown form and are rendered as plain text. Text is escaped so that
// FromMarkdown reads back the same runs.
func Markdown(doc Node) string {
	lines := blockLines(doc.Content, true)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func blockLines(blocks []Node, loose bool) []string {
	var lines []string
	for i, b := range blocks {
		if i > 0 && loose {
			lines = append(lines, "")
		}
		lines = append(lines, markdownBlock(b)...)
	}
	return lines
}

func markdownBlock(n Node) []string {
	switch n.Type {
	case TypeParagraph:
		return strings.Split(markdownInline(n.Content), "\n")
	case TypeHeading:
		return []string{strings.Repeat("#", n.HeadingLevel()) + " " + markdownInline(n.Content)}
	case TypeBulletList, TypeOrderedList:
		var lines []string
		for i, item := range n.Content {
			marker := "- "
			if n.Type == TypeOrderedList {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			indent := strings.Repeat(" ", len(marker))
			for j, l := range blockLines(item.Content, false) {
				if j == 0 {
					lines = append(lines, marker+l)
				} else if l == "" {
					lines = append(lines, "")
				} else {
					lines = append(lines, indent+l)
				}
			}
		}
		return lines
	case TypeBlockquote:
		inner := blockLines(n.Content, true)
		for i, l := range inner {
			if l == "" {
				inner[i] = ">"
			} else {
				inner[i] = "> " + l
			}
		}
		return inner
	case TypeCodeBlock:
		code := PlainText(n)
		fence := strings.Repeat("`", max(3, longestRun(code, '`')+1))
		lines := []string{fence}
		if code != "" {
			lines = append(lines, strings.Split(code, "\n")...)
		}
		return append(lines, fence)
	case TypeListItem:
		return blockLines(n.Content, false)
	case TypeText, TypeHardBreak:
		return strings.Split(markdownInline([]Node{n}), "\n")
	}
	// Unknown wrappers keep their children, as in HTML.
	if len(n.Content) > 0 && n.Content[0].IsBlock() {
		return blockLines(n.Content, true)
	}
	if s := markdownInline(n.Content); s != "" {
		return strings.Split(s, "\n")
	}
	return nil
}

func markdownInline(nodes []Node) string {
	var b strings.Builder
	lineStart := true
	for _, n := range nodes {
		switch n.Type {
		case TypeHardBreak:
			b.WriteString("  \n")
			lineStart = true
		case TypeText:
			if n.Text == "" {
				continue
			}
			out := markdownRun(n, lineStart)
			b.WriteString(out)
			if i := strings.LastIndexByte(out, '\n'); i >= 0 {
				lineStart = strings.Trim(out[i+1:], " \t") == ""
			} else {
				lineStart = lineStart && strings.Trim(out, " \t") == ""
			}
		}
	}
	return b.String()
}

// markdownRun writes one text run with its marks. Surrounding whitespace is
// kept outside emphasis delimiters, which do not match next to a space.
func markdownRun(n Node, lineStart bool) string {
	open, close := markDelimiters(n.Marks)
	if n.HasMark(MarkCode) {
		return open + codeSpan(n.Text) + close
	}
	if open == "" {
		return escapeMarkdown(n.Text, lineStart)
	}
	body := strings.TrimSpace(n.Text)
	if body == "" {
		return escapeMarkdown(n.Text, lineStart)
	}
	lead := n.Text[:strings.Index(n.Text, body)]
	trail := n.Text[len(lead)+len(body):]
	return escapeMarkdown(lead, lineStart) + open + escapeMarkdown(body, false) + close + trail
}

func markDelimiters(marks []Mark) (string, string) {
	var open, close string
	for _, m := range marks {
		var d string
		switch m.Type {
		case MarkBold:
			d = "**"
		case MarkItalic:
			d = "*"
		case MarkStrike:
			d = "~~"
		default:
			continue
		}
		open += d
		close = d + close
	}
	return open, close
}

// codeSpan wraps s in a backtick run longer than any inside it.
func codeSpan(s string) string {
	fence := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") ||
		(strings.HasPrefix(s, " ") && strings.HasSuffix(s, " ") && strings.TrimSpace(s) != "") {
		s = " " + s + " "
	}
	return fence + s + fence
}

func longestRun(s string, c byte) int {
	best, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			run = 0
			continue
		}
		run++
		best = max(best, run)
	}
	return best
}

// escapeMarkdown backslash-escapes inline punctuation and, at the start of a
// line, anything that would open a block.
func escapeMarkdown(s string, lineStart bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			lineStart = true
			b.WriteByte(c)
			continue
		}
		if lineStart {
			if c == ' ' || c == '\t' {
				b.WriteByte(c)
				continue
			}
			lineStart = false
			if j := orderedMarker(s[i:]); j > 0 {
				b.WriteString(s[i : i+j])
				b.WriteByte('\\')
				i += j
				b.WriteByte(s[i])
				continue
			}
			switch c {
			case '-', '+', '=', '>':
				b.WriteByte('\\')
				b.WriteByte(c)
				continue
			}
		}
		switch c {
		case '\\', '`', '*', '_', '~', '[', ']', '<', '#':
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// orderedMarker returns the number of leading digits when s starts like an
// ordered list item ("1." or "1)"), or 0.
func orderedMarker(s string) int {
	i := 0
	for i < len(s) && i < 9 && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(s) || (s[i] != '.' && s[i] != ')') {
		return 0
	}
	return i
}
