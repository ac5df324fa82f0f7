package events

// Websocket event type names.
const (
	TypeSnapshot = "entries.snapshot"
	TypeError    = "entries.error"
)

// EntriesChanged is published on the in-process feed after every entry
// mutation (create, update, delete, AI enrichment). Changes should be
// additive; clients re-pull the full snapshot rather than diffing.
type EntriesChanged struct {
	Type   string `json:"type"`
	UserID int    `json:"userId"`
	// EntryID is the entry that triggered the notification, when known.
	EntryID string `json:"entryId,omitempty"`
}

// NewEntriesChanged builds the canonical change event.
func NewEntriesChanged(userID int, entryID string) EntriesChanged {
	return EntriesChanged{Type: "entries.changed", UserID: userID, EntryID: entryID}
}
