package models

import (
	"strings"
	"time"
)

// Entry types. A text entry carries markdown in Content; a list entry
// carries ListItems. The inactive field is cleared on every write.
const (
	EntryTypeText = "text"
	EntryTypeList = "list"
)

type ListItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type JournalEntry struct {
	ID         string     `json:"id"`
	UserID     int        `json:"userId"`
	Timestamp  time.Time  `json:"timestamp"`
	EntryType  string     `json:"entryType"`
	UserTitle  string     `json:"userTitle,omitempty"`
	Content    string     `json:"content,omitempty"`
	ListItems  []ListItem `json:"listItems,omitempty"`
	Tags       []string   `json:"tags"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	MoodScore  int        `json:"moodScore"`
	LastEdited *time.Time `json:"lastEdited,omitempty"`

	AITitle             string     `json:"aiTitle,omitempty"`
	AIGreeting          string     `json:"aiGreeting,omitempty"`
	AIObservations      string     `json:"aiObservations,omitempty"`
	AISentimentAnalysis string     `json:"aiSentimentAnalysis,omitempty"`
	AIReflectivePrompt  string     `json:"aiReflectivePrompt,omitempty"`
	AITimestamp         *time.Time `json:"aiTimestamp,omitempty"`
	AIError             string     `json:"aiError,omitempty"`
	AIStatus            string     `json:"aiStatus"`
}

// AI enrichment status values derived from the insight fields.
const (
	AIStatusPending = "pending"
	AIStatusDone    = "done"
	AIStatusError   = "error"
)

// ComputeAIStatus derives the aiStatus field: pending until the first
// enrichment attempt stamps AITimestamp, then done or error.
func (e *JournalEntry) ComputeAIStatus() string {
	switch {
	case e.AITimestamp == nil:
		return AIStatusPending
	case e.AIError != "":
		return AIStatusError
	default:
		return AIStatusDone
	}
}

// AnalysisText returns the text handed to the AI analyzer: the markdown
// content for text entries, the joined item lines for list entries.
func (e *JournalEntry) AnalysisText() string {
	if e.EntryType == EntryTypeList {
		lines := make([]string, 0, len(e.ListItems))
		for _, it := range e.ListItems {
			if s := strings.TrimSpace(it.Text); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	}
	return strings.TrimSpace(e.Content)
}

// HasTag reports whether the entry carries the given normalized tag.
func (e *JournalEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EntryDraft is the client payload for creating an entry.
type EntryDraft struct {
	EntryType string     `json:"entryType"`
	UserTitle string     `json:"userTitle"`
	Content   string     `json:"content"`
	ListItems []ListItem `json:"listItems"`
	Tags      []string   `json:"tags"`
}

// EntryPatch is the client payload for updating an entry. Pointer fields
// distinguish "not provided" from "set to zero value"; only provided
// fields are touched.
type EntryPatch struct {
	EntryType *string     `json:"entryType"`
	UserTitle *string     `json:"userTitle"`
	Content   *string     `json:"content"`
	ListItems *[]ListItem `json:"listItems"`
	Tags      *[]string   `json:"tags"`
}

// EntryUpdate is the fully resolved set of fields written by an update:
// every field has a definite value, including the image outcome.
type EntryUpdate struct {
	EntryType  string
	UserTitle  string
	Content    string
	ListItems  []ListItem
	Tags       []string
	ImageURL   string
	MoodScore  int
	LastEdited time.Time
}

// NormalizeTags trims, lowercases, and de-duplicates a tag list while
// preserving first-seen order for display.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
