// Package websocket streams live entry snapshots to connected clients.
// Each connection owns a store.Session subscribed to the user's change
// feed; every mutation or view command pushes a fresh full snapshot.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"moodweaver-api/models"
	"moodweaver-api/pkg/events"
	"moodweaver-api/pkg/notify"
	"moodweaver-api/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	loadTimeout    = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EntrySource loads the data a session mirrors.
type EntrySource interface {
	ListByUser(ctx context.Context, userID int) ([]*models.JournalEntry, error)
}

// TagSource loads the user's explicitly saved tags.
type TagSource interface {
	ListAvailableTags(ctx context.Context, userID int) ([]string, error)
}

// Server upgrades authenticated requests and runs one session per connection.
type Server struct {
	entries EntrySource
	tags    TagSource
	feed    *notify.Feed
}

func NewServer(entries EntrySource, tags TagSource, feed *notify.Feed) *Server {
	return &Server{entries: entries, tags: tags, feed: feed}
}

// command is a client-sent view mutation. Actions without arguments
// ignore the extra fields.
type command struct {
	Action string `json:"action"`
	Tag    string `json:"tag,omitempty"`
	Query  string `json:"query,omitempty"`
}

// snapshot is the full-replace payload pushed after every change.
type snapshot struct {
	Type          string                 `json:"type"`
	Entries       []*models.JournalEntry `json:"entries"`
	AvailableTags []string               `json:"availableTags"`
	FilterTags    []string               `json:"filterTags"`
	SearchQuery   string                 `json:"searchQuery,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeWS upgrades the connection and runs the session loop. The caller
// must authenticate first and set userId in the gin context.
func (s *Server) ServeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("userId")
		if userID == 0 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "err", err)
			return
		}
		s.run(conn, userID)
	}
}

func (s *Server) run(conn *websocket.Conn, userID int) {
	changes, cancel := s.feed.Subscribe(userID)
	session := store.NewSession(userID, nil, cancel)
	defer session.Close()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	// Reader goroutine: client view commands plus pong bookkeeping.
	commands := make(chan command)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if err := json.Unmarshal(data, &cmd); err != nil {
				slog.Debug("ignoring malformed websocket command", "userId", userID, "err", err)
				continue
			}
			select {
			case commands <- cmd:
			case <-done:
				return
			}
		}
	}()

	if err := s.load(session); err != nil {
		session.Fail(err)
		s.writeError(conn, "Failed to load entries")
		slog.Error("initial snapshot load failed", "userId", userID, "err", err)
		return
	}
	if !s.writeSnapshot(conn, session) {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readerDone:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.load(session); err != nil {
				session.Fail(err)
				s.writeError(conn, "Failed to refresh entries")
				slog.Error("snapshot refresh failed", "userId", userID, "err", err)
				return
			}
			if !s.writeSnapshot(conn, session) {
				return
			}
		case cmd := <-commands:
			s.apply(session, cmd)
			if !s.writeSnapshot(conn, session) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// load re-pulls the full entry set and saved tags into the session.
func (s *Server) load(session *store.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	entries, err := s.entries.ListByUser(ctx, session.UserID())
	if err != nil {
		return err
	}
	saved, err := s.tags.ListAvailableTags(ctx, session.UserID())
	if err != nil {
		return err
	}
	session.Replace(entries)
	session.SetSavedTags(saved)
	return nil
}

func (s *Server) apply(session *store.Session, cmd command) {
	switch cmd.Action {
	case "toggleTag":
		session.ToggleFilterTag(cmd.Tag)
	case "clearFilters":
		session.ClearFilterTags()
	case "setSearch":
		session.SetSearchQuery(cmd.Query)
	case "clearSearch":
		session.ClearSearchQuery()
	default:
		slog.Debug("unknown websocket action", "action", cmd.Action)
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, session *store.Session) bool {
	msg := snapshot{
		Type:          events.TypeSnapshot,
		Entries:       session.Visible(),
		AvailableTags: session.AvailableTags(),
		FilterTags:    session.ActiveFilterTags(),
		SearchQuery:   session.SearchQuery(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("websocket write failed", "userId", session.UserID(), "err", err)
		return false
	}
	return true
}

func (s *Server) writeError(conn *websocket.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(errorMessage{Type: events.TypeError, Message: message})
}
