// server/richtext/walk.go
package richtext

type WalkStatus int

const (
	WalkContinue WalkStatus = iota
	WalkSkipChildren
	WalkStop
)

// Walk visits n and its descendants depth-first, parents before children.
func Walk(n Node, fn func(Node) WalkStatus) {
	walk(n, fn)
}

func walk(n Node, fn func(Node) WalkStatus) WalkStatus {
	switch fn(n) {
	case WalkStop:
		return WalkStop
	case WalkSkipChildren:
		return WalkContinue
	}
	for _, c := range n.Content {
		if walk(c, fn) == WalkStop {
			return WalkStop
		}
	}
	return WalkContinue
}

// Excerpt returns the first text run of the first top-level paragraph in
// doc. ok is false when the document has no paragraph or the paragraph has
// no text run.
func Excerpt(doc Node) (excerpt string, ok bool) {
	if doc.Type != TypeDoc {
		return "", false
	}
	Walk(doc, func(n Node) WalkStatus {
		switch n.Type {
		case TypeDoc:
			return WalkContinue
		case TypeParagraph:
		default:
			return WalkSkipChildren
		}
		for _, c := range n.Content {
			if c.Type == TypeText {
				excerpt, ok = c.Text, true
				break
			}
		}
		return WalkStop
	})
	return excerpt, ok
}

// ExcerptOf extracts the excerpt straight from stored content. Malformed
// content yields "".
func ExcerptOf(raw []byte) string {
	doc, err := Parse(raw)
	if err != nil {
		return ""
	}
	s, _ := Excerpt(doc)
	return s
}
