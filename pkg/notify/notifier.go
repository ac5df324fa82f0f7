package notify

import (
	"log/slog"
	"sync"

	"moodweaver-api/pkg/events"
)

// Notifier is the minimal interface mutation workflows use to announce
// entry changes. Implementations must never block the caller.
type Notifier interface {
	EntriesChanged(userID int, entryID string)
}

// Feed is an in-process, per-user change feed. Each websocket session
// subscribes to the owning user's stream and re-pulls a full snapshot on
// every event; the event itself carries no entry data.
type Feed struct {
	mu   sync.Mutex
	subs map[int]map[chan events.EntriesChanged]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]map[chan events.EntriesChanged]struct{})}
}

// Subscribe registers a listener for one user's changes. The returned
// cancel func must be called exactly once; it closes the channel.
func (f *Feed) Subscribe(userID int) (<-chan events.EntriesChanged, func()) {
	ch := make(chan events.EntriesChanged, 8)
	f.mu.Lock()
	set, ok := f.subs[userID]
	if !ok {
		set = make(map[chan events.EntriesChanged]struct{})
		f.subs[userID] = set
	}
	set[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if set, ok := f.subs[userID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(f.subs, userID)
				}
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// EntriesChanged publishes a change event to all of the user's listeners.
// Slow listeners are skipped rather than blocked on; they will catch up
// on their next delivered event since snapshots are full-replace.
func (f *Feed) EntriesChanged(userID int, entryID string) {
	ev := events.NewEntriesChanged(userID, entryID)
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[userID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping change event for slow subscriber", "userId", userID)
		}
	}
}
