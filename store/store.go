// Package store holds the entry-lifecycle logic: a live per-user mirror of
// journal entries with a derived filtered view, and the multi-step mutation
// workflow that spans the document repository, object storage, and the AI
// analyzer with defined partial-failure behavior.
package store

import (
	"sort"
	"strings"
	"sync"

	"moodweaver-api/models"
)

// Session is a live mirror of one user's entries plus the view state the
// client is currently looking at. Snapshots are full-replace: every change
// notification swaps the whole entry set and re-derives tags and filters.
type Session struct {
	mu          sync.Mutex
	userID      int
	entries     []*models.JournalEntry
	savedTags   []string
	filterTags  []string
	searchQuery string
	err         error
	closeOnce   sync.Once
	onClose     func()
}

// NewSession starts a session for a user. savedTags are the explicitly
// saved available tags loaded at session start; onClose, if set, runs
// exactly once when the session ends (subscription teardown).
func NewSession(userID int, savedTags []string, onClose func()) *Session {
	return &Session{
		userID:    userID,
		savedTags: append([]string(nil), savedTags...),
		onClose:   onClose,
	}
}

func (s *Session) UserID() int { return s.userID }

// Replace swaps in a fresh snapshot of the user's entries. The slice is
// expected to already be ordered by recency (timestamp descending).
func (s *Session) Replace(entries []*models.JournalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]*models.JournalEntry(nil), entries...)
	s.err = nil
}

// SetSavedTags refreshes the explicitly saved tag list.
func (s *Session) SetSavedTags(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedTags = append([]string(nil), tags...)
}

// Fail records a subscription error. The session stops being "loading"
// and surfaces the error instead of hanging; there is no automatic retry.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Visible derives the displayed list: AND filter over the active tags,
// then case-insensitive OR search, preserving store order. It never
// mutates the underlying entry set.
func (s *Session) Visible() []*models.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterEntries(s.entries, s.filterTags, s.searchQuery)
}

// AvailableTags derives the tag-picker contents: the sorted union of the
// built-in defaults, every tag on a loaded entry, and explicitly saved tags.
func (s *Session) AvailableTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AvailableTagUnion(s.entries, s.savedTags)
}

// ToggleFilterTag adds the tag to the active filter set if absent,
// removes it if present.
func (s *Session) ToggleFilterTag(tag string) {
	tag = models.NormalizeTag(tag)
	if tag == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.filterTags {
		if t == tag {
			s.filterTags = append(s.filterTags[:i], s.filterTags[i+1:]...)
			return
		}
	}
	s.filterTags = append(s.filterTags, tag)
}

func (s *Session) ClearFilterTags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterTags = nil
}

func (s *Session) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = strings.TrimSpace(q)
}

func (s *Session) ClearSearchQuery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = ""
}

func (s *Session) ActiveFilterTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.filterTags...)
}

func (s *Session) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery
}

// Close tears the session down exactly once: the subscription is
// cancelled and all state resets to defaults, so a leaked reference
// cannot observe another user's data after logout.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.entries = nil
		s.savedTags = nil
		s.filterTags = nil
		s.searchQuery = ""
		s.err = nil
		onClose := s.onClose
		s.onClose = nil
		s.mu.Unlock()
		if onClose != nil {
			onClose()
		}
	})
}

// FilterEntries applies the active tag filter (entry must carry ALL tags)
// and then the free-text search (match in ANY of title, content, list-item
// text, or tags), preserving input order. Pure function.
func FilterEntries(entries []*models.JournalEntry, filterTags []string, searchQuery string) []*models.JournalEntry {
	out := make([]*models.JournalEntry, 0, len(entries))
	q := strings.ToLower(strings.TrimSpace(searchQuery))
	for _, e := range entries {
		if !hasAllTags(e, filterTags) {
			continue
		}
		if q != "" && !matchesSearch(e, q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasAllTags(e *models.JournalEntry, tags []string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

func matchesSearch(e *models.JournalEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.UserTitle), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Content), q) {
		return true
	}
	for _, it := range e.ListItems {
		if strings.Contains(strings.ToLower(it.Text), q) {
			return true
		}
	}
	for _, t := range e.Tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}

// AvailableTagUnion computes the sorted union of the built-in defaults,
// tags found on the given entries, and explicitly saved tags.
func AvailableTagUnion(entries []*models.JournalEntry, saved []string) []string {
	set := make(map[string]struct{})
	for _, t := range models.DefaultTags {
		set[models.NormalizeTag(t)] = struct{}{}
	}
	for _, e := range entries {
		for _, t := range e.Tags {
			set[models.NormalizeTag(t)] = struct{}{}
		}
	}
	for _, t := range saved {
		if n := models.NormalizeTag(t); n != "" {
			set[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
