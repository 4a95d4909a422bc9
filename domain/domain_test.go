package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestSortSummariesPinnedFirstThenNewest(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	list := []Summary{
		{ID: "a", CreatedAt: t1, IsPinned: true},
		{ID: "b", CreatedAt: t2},
		{ID: "c", CreatedAt: t3},
		{ID: "d", CreatedAt: t2, IsPinned: true},
	}
	SortSummaries(list)

	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"d", "a", "c", "b"}, ids)
}

func TestSummaryOf(t *testing.T) {
	folder := "f1"
	n := &Note{
		ID:       "n1",
		Title:    "Grocery List",
		Content:  json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"milk"}]}]}`),
		IsPinned: true,
		FolderID: &folder,
	}

	s := SummaryOf(n)
	assert.Equal(t, "Grocery List", s.Title)
	assert.Equal(t, "milk", s.Excerpt)
	assert.True(t, s.IsPinned)
	assert.Equal(t, "f1", *s.FolderID)

	folder = "changed"
	assert.Equal(t, "f1", *s.FolderID, "summary must not alias the note's folder id")

	n.Content = json.RawMessage(`{"type":"bogus"}`)
	assert.Equal(t, "", SummaryOf(n).Excerpt)
}

func TestNotePatchApply(t *testing.T) {
	n := &Note{ID: "n1", Title: "old", FolderID: ptr("f1")}

	NotePatch{Title: ptr("new"), IsPinned: ptr(true)}.Apply(n)
	assert.Equal(t, "new", n.Title)
	assert.True(t, n.IsPinned)
	assert.Equal(t, "f1", *n.FolderID)

	NotePatch{FolderID: ptr("f2")}.Apply(n)
	assert.Equal(t, "f2", *n.FolderID)

	NotePatch{FolderID: ptr("f3"), ClearFolder: true}.Apply(n)
	assert.Nil(t, n.FolderID)

	assert.True(t, NotePatch{}.Empty())
	assert.False(t, NotePatch{ClearFolder: true}.Empty())
}

func TestFolderName(t *testing.T) {
	name, err := FolderName("  Work ")
	assert.NoError(t, err)
	assert.Equal(t, "Work", name)

	_, err = FolderName("   ")
	assert.True(t, IsValidation(err))
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", NoteNotFound("n1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "note n1 not found")
}

func TestSameFolder(t *testing.T) {
	assert.True(t, SameFolder(nil, nil))
	assert.False(t, SameFolder(ptr("a"), nil))
	assert.True(t, SameFolder(ptr("a"), ptr("a")))
	assert.False(t, SameFolder(ptr("a"), ptr("b")))
}
