package models

// DefaultTags is the built-in tag list every account starts with. The
// available-tag set shown in the picker is the union of these, the tags
// found on the user's entries, and explicitly saved tags; a tag's
// normalized name is its identity.
var DefaultTags = []string{"gratitude", "work", "family", "health", "travel", "ideas"}
