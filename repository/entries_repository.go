package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"moodweaver-api/models"
	"moodweaver-api/pkg/insights"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EntriesRepository stores journal entries in Postgres. All lookups are
// scoped by the owning user id; an entry is never visible outside its
// owner's scope.
type EntriesRepository struct {
	db *sql.DB
}

func NewEntriesRepository(db *sql.DB) *EntriesRepository {
	return &EntriesRepository{db: db}
}

const entryColumns = `
	id, user_id, entry_type, user_title, content, list_items, image_url,
	mood_score, created_at, last_edited,
	ai_title, ai_greeting, ai_observations, ai_sentiment_analysis,
	ai_reflective_prompt, ai_timestamp, ai_error`

func (r *EntriesRepository) Create(ctx context.Context, entry *models.JournalEntry) (*models.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	items, err := marshalListItems(entry.ListItems)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, user_id, entry_type, user_title, content, list_items,
		                     image_url, mood_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		id, entry.UserID, entry.EntryType, entry.UserTitle, entry.Content, items,
		entry.ImageURL, entry.MoodScore)
	if err != nil {
		return nil, err
	}

	if err := replaceEntryTags(ctx, tx, id, entry.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Get(ctx, entry.UserID, id)
}

func (r *EntriesRepository) Get(ctx context.Context, userID int, id string) (*models.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE id = $1 AND user_id = $2`, id, userID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tags, err := r.entryTags(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	entry.Tags = tags[id]
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}

func (r *EntriesRepository) Update(ctx context.Context, userID int, id string, upd models.EntryUpdate) (*models.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	items, err := marshalListItems(upd.ListItems)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE entries
		SET entry_type = $1, user_title = $2, content = $3, list_items = $4,
		    image_url = $5, mood_score = $6, last_edited = $7
		WHERE id = $8 AND user_id = $9`,
		upd.EntryType, upd.UserTitle, upd.Content, items,
		upd.ImageURL, upd.MoodScore, upd.LastEdited, id, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	if err := replaceEntryTags(ctx, tx, id, upd.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, id)
}

func (r *EntriesRepository) Delete(ctx context.Context, userID int, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM entries WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

// ListByUser returns all of the user's entries ordered by recency, the
// order the live snapshot mirrors.
func (r *EntriesRepository) ListByUser(ctx context.Context, userID int) ([]*models.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	var ids []string
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := r.entryTags(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		entry.Tags = tags[entry.ID]
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
	}
	return entries, nil
}

// SetInsights merges a successful analysis into the entry and clears any
// previous aiError.
func (r *EntriesRepository) SetInsights(ctx context.Context, userID int, id string, ins *insights.Insights, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries
		SET ai_title = $1, ai_greeting = $2, ai_observations = $3,
		    ai_sentiment_analysis = $4, ai_reflective_prompt = $5,
		    ai_timestamp = $6, ai_error = ''
		WHERE id = $7 AND user_id = $8`,
		ins.Title, ins.Greeting, ins.Observations, ins.SentimentAnalysis,
		ins.ReflectivePrompt, at, id, userID)
	return err
}

// SetInsightsError records a failed analysis attempt, clearing any insight
// fields a previous attempt wrote. aiError and the successful fields are
// mutually exclusive.
func (r *EntriesRepository) SetInsightsError(ctx context.Context, userID int, id string, message string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries
		SET ai_title = '', ai_greeting = '', ai_observations = '',
		    ai_sentiment_analysis = '', ai_reflective_prompt = '',
		    ai_timestamp = $1, ai_error = $2
		WHERE id = $3 AND user_id = $4`,
		at, message, id, userID)
	return err
}

func (r *EntriesRepository) entryTags(ctx context.Context, entryIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT et.entry_id, t.name
		FROM entry_to_tag et
		JOIN tag t ON t.id = et.tag_id
		WHERE et.entry_id = ANY($1)
		ORDER BY et.entry_id, et.position`, pq.Array(entryIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var entryID, name string
		if err := rows.Scan(&entryID, &name); err != nil {
			return nil, err
		}
		out[entryID] = append(out[entryID], name)
	}
	return out, rows.Err()
}

func replaceEntryTags(ctx context.Context, tx *sql.Tx, entryID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_to_tag WHERE entry_id = $1`, entryID); err != nil {
		return err
	}
	for i, name := range tags {
		var tagID int
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tag (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name).Scan(&tagID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entry_to_tag (entry_id, tag_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, entryID, tagID, i); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	var items []byte
	var lastEdited, aiTimestamp sql.NullTime
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.EntryType, &entry.UserTitle, &entry.Content,
		&items, &entry.ImageURL, &entry.MoodScore, &entry.Timestamp, &lastEdited,
		&entry.AITitle, &entry.AIGreeting, &entry.AIObservations,
		&entry.AISentimentAnalysis, &entry.AIReflectivePrompt, &aiTimestamp, &entry.AIError,
	)
	if err != nil {
		return nil, err
	}
	if lastEdited.Valid {
		t := lastEdited.Time
		entry.LastEdited = &t
	}
	if aiTimestamp.Valid {
		t := aiTimestamp.Time
		entry.AITimestamp = &t
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &entry.ListItems); err != nil {
			return nil, err
		}
	}
	entry.AIStatus = entry.ComputeAIStatus()
	return &entry, nil
}

func marshalListItems(items []models.ListItem) (interface{}, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
