package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"moodweaver-api/models"
	"moodweaver-api/pkg/events"
	"moodweaver-api/pkg/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	entries []*models.JournalEntry
	saved   []string
}

func (f *fakeSource) ListByUser(_ context.Context, _ int) ([]*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.JournalEntry(nil), f.entries...), nil
}

func (f *fakeSource) ListAvailableTags(_ context.Context, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.saved...), nil
}

func (f *fakeSource) setEntries(entries []*models.JournalEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func textEntry(id, content string, tags ...string) *models.JournalEntry {
	return &models.JournalEntry{
		ID:        id,
		UserID:    1,
		EntryType: models.EntryTypeText,
		Content:   content,
		Tags:      tags,
	}
}

func dialSession(t *testing.T, src *fakeSource, feed *notify.Feed) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := NewServer(src, src, feed)
	r.GET("/ws", func(c *gin.Context) {
		c.Set("userId", 1)
	}, srv.ServeWS())

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg snapshot
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, events.TypeSnapshot, msg.Type)
	return msg
}

func TestSessionSendsInitialSnapshot(t *testing.T) {
	src := &fakeSource{
		entries: []*models.JournalEntry{
			textEntry("e1", "morning pages", "work"),
			textEntry("e2", "weekend trip", "travel"),
		},
	}
	conn := dialSession(t, src, notify.NewFeed())

	msg := readSnapshot(t, conn)
	require.Len(t, msg.Entries, 2)
	assert.Contains(t, msg.AvailableTags, "work")
	assert.Contains(t, msg.AvailableTags, "travel")
	assert.Empty(t, msg.FilterTags)
}

func TestSessionAppliesFilterCommands(t *testing.T) {
	src := &fakeSource{
		entries: []*models.JournalEntry{
			textEntry("e1", "standup notes", "work"),
			textEntry("e2", "packing list", "travel"),
		},
	}
	conn := dialSession(t, src, notify.NewFeed())
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteJSON(command{Action: "toggleTag", Tag: "work"}))
	msg := readSnapshot(t, conn)
	require.Len(t, msg.Entries, 1)
	assert.Equal(t, "e1", msg.Entries[0].ID)
	assert.Equal(t, []string{"work"}, msg.FilterTags)

	require.NoError(t, conn.WriteJSON(command{Action: "clearFilters"}))
	msg = readSnapshot(t, conn)
	assert.Len(t, msg.Entries, 2)
	assert.Empty(t, msg.FilterTags)
}

func TestSessionAppliesSearchCommands(t *testing.T) {
	src := &fakeSource{
		entries: []*models.JournalEntry{
			textEntry("e1", "grateful for coffee"),
			textEntry("e2", "long run today"),
		},
	}
	conn := dialSession(t, src, notify.NewFeed())
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteJSON(command{Action: "setSearch", Query: "Coffee"}))
	msg := readSnapshot(t, conn)
	require.Len(t, msg.Entries, 1)
	assert.Equal(t, "e1", msg.Entries[0].ID)
	assert.Equal(t, "Coffee", msg.SearchQuery)

	require.NoError(t, conn.WriteJSON(command{Action: "clearSearch"}))
	msg = readSnapshot(t, conn)
	assert.Len(t, msg.Entries, 2)
	assert.Empty(t, msg.SearchQuery)
}

func TestSessionRefreshesOnFeedEvent(t *testing.T) {
	feed := notify.NewFeed()
	src := &fakeSource{
		entries: []*models.JournalEntry{textEntry("e1", "first")},
	}
	conn := dialSession(t, src, feed)
	readSnapshot(t, conn)

	src.setEntries([]*models.JournalEntry{
		textEntry("e1", "first"),
		textEntry("e2", "second"),
	})
	feed.EntriesChanged(1, "e2")

	msg := readSnapshot(t, conn)
	assert.Len(t, msg.Entries, 2)
}
