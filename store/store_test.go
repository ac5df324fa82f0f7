package store

import (
	"errors"
	"testing"

	"moodweaver-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, title, content string, tags ...string) *models.JournalEntry {
	return &models.JournalEntry{
		ID:        id,
		EntryType: models.EntryTypeText,
		UserTitle: title,
		Content:   content,
		Tags:      tags,
	}
}

func ids(entries []*models.JournalEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestVisibleWithNoFilterEqualsFullSet(t *testing.T) {
	s := NewSession(1, nil, nil)
	all := []*models.JournalEntry{
		entry("a", "Morning", "coffee", "work"),
		entry("b", "Evening", "walk", "health"),
		entry("c", "", "nothing"),
	}
	s.Replace(all)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Visible()))
}

func TestFilterTagsAreANDSemantics(t *testing.T) {
	all := []*models.JournalEntry{
		entry("a", "", "", "work", "travel"),
		entry("b", "", "", "work"),
		entry("c", "", "", "travel"),
	}
	got := FilterEntries(all, []string{"work", "travel"}, "")
	assert.Equal(t, []string{"a"}, ids(got))

	// Every visible entry's tag set is a superset of the filter.
	for _, e := range got {
		assert.True(t, e.HasTag("work"))
		assert.True(t, e.HasTag("travel"))
	}
}

func TestSearchIsORAcrossFields(t *testing.T) {
	all := []*models.JournalEntry{
		entry("title", "Beach day", ""),
		entry("content", "", "we went to the BEACH"),
		{ID: "item", EntryType: models.EntryTypeList, ListItems: []models.ListItem{{Text: "pack beach towel"}}},
		entry("tag", "", "", "beachlife"),
		entry("none", "Work notes", "meetings"),
	}
	got := FilterEntries(all, nil, "beach")
	assert.Equal(t, []string{"title", "content", "item", "tag"}, ids(got))
}

func TestFilterThenSearchPreservesOrderAndInput(t *testing.T) {
	all := []*models.JournalEntry{
		entry("a", "trip", "", "travel"),
		entry("b", "trip", "", "work"),
		entry("c", "groceries", "", "travel"),
	}
	got := FilterEntries(all, []string{"travel"}, "trip")
	assert.Equal(t, []string{"a"}, ids(got))
	// Input slice is untouched.
	assert.Len(t, all, 3)
}

func TestToggleFilterTagIsSymmetric(t *testing.T) {
	s := NewSession(1, nil, nil)
	s.ToggleFilterTag("Work")
	assert.Equal(t, []string{"work"}, s.ActiveFilterTags())
	s.ToggleFilterTag("work")
	assert.Empty(t, s.ActiveFilterTags())
}

func TestAvailableTagsUnionSorted(t *testing.T) {
	s := NewSession(1, []string{"Zeal", "work"}, nil)
	s.Replace([]*models.JournalEntry{entry("a", "", "", "beach")})
	got := s.AvailableTags()

	assert.True(t, sortedStrings(got), "available tags must be sorted: %v", got)
	assert.Contains(t, got, "beach")
	assert.Contains(t, got, "zeal")
	for _, d := range models.DefaultTags {
		assert.Contains(t, got, d)
	}
	// "work" is both a default and saved; the union holds it once.
	assert.Equal(t, 1, count(got, "work"))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func count(s []string, v string) int {
	n := 0
	for _, x := range s {
		if x == v {
			n++
		}
	}
	return n
}

func TestSessionCloseResetsStateOnce(t *testing.T) {
	closed := 0
	s := NewSession(1, []string{"saved"}, func() { closed++ })
	s.Replace([]*models.JournalEntry{entry("a", "", "", "work")})
	s.ToggleFilterTag("work")
	s.SetSearchQuery("x")

	s.Close()
	s.Close()
	require.Equal(t, 1, closed, "teardown must run exactly once")
	assert.Empty(t, s.Visible())
	assert.Empty(t, s.ActiveFilterTags())
	assert.Equal(t, "", s.SearchQuery())
	// After reset the picker falls back to the built-in defaults.
	assert.Equal(t, AvailableTagUnion(nil, nil), s.AvailableTags())
}

func TestSessionFailSurfacesError(t *testing.T) {
	s := NewSession(1, nil, nil)
	s.Fail(errors.New("permission revoked"))
	require.Error(t, s.Err())
	s.Replace(nil)
	assert.NoError(t, s.Err(), "a successful snapshot clears the error state")
}
