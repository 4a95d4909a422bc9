// server/domain/summary.go
package domain

import (
	"sort"
	"time"

	"github.com/ViniZap4/lumi-notes/richtext"
)

// Summary is the list-facing projection of a note.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	CreatedAt time.Time `json:"created_at"`
	IsPinned  bool      `json:"is_pinned"`
	FolderID  *string   `json:"folder_id"`
}

// SummaryPatch carries in-progress edits from an editing session to the list.
type SummaryPatch struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

func SummaryOf(n *Note) Summary {
	s := Summary{
		ID:        n.ID,
		Title:     n.Title,
		Excerpt:   richtext.ExcerptOf(n.Content),
		CreatedAt: n.CreatedAt,
		IsPinned:  n.IsPinned,
	}
	if n.FolderID != nil {
		id := *n.FolderID
		s.FolderID = &id
	}
	return s
}

// Before reports whether a sorts ahead of b: pinned first, then newest first.
func Before(a, b Summary) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func SortSummaries(list []Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return Before(list[i], list[j])
	})
}
