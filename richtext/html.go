// server/richtext/html.go
package richtext

import (
	"fmt"
	"html"
	"strings"
)

// HTML renders doc the way the editor does, including the fontSize and
// lineHeight style attributes.
func HTML(doc Node) string {
	var b strings.Builder
	for _, c := range doc.Content {
		writeHTML(&b, c)
	}
	return b.String()
}

func writeHTML(b *strings.Builder, n Node) {
	switch n.Type {
	case TypeParagraph:
		if lh, ok := n.LineHeight(); ok {
			fmt.Fprintf(b, `<p style="line-height: %s">`, html.EscapeString(lh))
		} else {
			b.WriteString("<p>")
		}
		writeChildren(b, n)
		b.WriteString("</p>")
	case TypeHeading:
		level := n.HeadingLevel()
		fmt.Fprintf(b, "<h%d>", level)
		writeChildren(b, n)
		fmt.Fprintf(b, "</h%d>", level)
	case TypeBulletList:
		b.WriteString("<ul>")
		writeChildren(b, n)
		b.WriteString("</ul>")
	case TypeOrderedList:
		b.WriteString("<ol>")
		writeChildren(b, n)
		b.WriteString("</ol>")
	case TypeListItem:
		b.WriteString("<li>")
		writeChildren(b, n)
		b.WriteString("</li>")
	case TypeBlockquote:
		b.WriteString("<blockquote>")
		writeChildren(b, n)
		b.WriteString("</blockquote>")
	case TypeCodeBlock:
		b.WriteString("<pre><code>")
		b.WriteString(html.EscapeString(PlainText(n)))
		b.WriteString("</code></pre>")
	case TypeHardBreak:
		b.WriteString("<br>")
	case TypeText:
		writeText(b, n)
	default:
		// Unknown nodes keep their children.
		writeChildren(b, n)
	}
}

func writeChildren(b *strings.Builder, n Node) {
	for _, c := range n.Content {
		writeHTML(b, c)
	}
}

func writeText(b *strings.Builder, n Node) {
	var closers []string
	for _, m := range n.Marks {
		switch m.Type {
		case MarkBold:
			b.WriteString("<strong>")
			closers = append(closers, "</strong>")
		case MarkItalic:
			b.WriteString("<em>")
			closers = append(closers, "</em>")
		case MarkHighlight:
			b.WriteString("<mark>")
			closers = append(closers, "</mark>")
		case MarkCode:
			b.WriteString("<code>")
			closers = append(closers, "</code>")
		case MarkStrike:
			b.WriteString("<s>")
			closers = append(closers, "</s>")
		case MarkTextStyle:
			if size, ok := m.FontSize(); ok {
				fmt.Fprintf(b, `<span style="font-size: %dpx">`, size)
			} else {
				b.WriteString("<span>")
			}
			closers = append(closers, "</span>")
		}
	}
	b.WriteString(html.EscapeString(n.Text))
	for i := len(closers) - 1; i >= 0; i-- {
		b.WriteString(closers[i])
	}
}
